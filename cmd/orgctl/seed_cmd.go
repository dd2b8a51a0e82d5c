package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexfofanov/company-structure/internal/seed"
	"github.com/alexfofanov/company-structure/internal/service"
	"github.com/alexfofanov/company-structure/internal/tree"
)

func newSeedCmd() *cobra.Command {
	var opts seed.Options
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "生成演示用的组织结构与员工",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()

			if !cmd.Flags().Changed("employees") {
				opts.Employees = e.cfg.Seed.Employees
			}
			if !cmd.Flags().Changed("batch-size") {
				opts.BatchSize = e.cfg.Seed.BatchSize
			}

			engine := service.NewTreeEngine(e.cfg, e.repo, e.logger)
			s := seed.New(engine, tree.NewQuery(e.repo.Department), e.repo.Employee, e.logger)

			start := time.Now()
			res, err := s.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			e.logger.Info("演示数据生成完成",
				zap.Int("departments", res.Departments),
				zap.Int64("employees", res.Employees),
				zap.Int64("skipped", res.Skipped),
				zap.Duration("elapsed", time.Since(start)),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "部门 %d 个，员工 %d 人\n", res.Departments, res.Employees)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Employees, "employees", 50000, "目标员工总数")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 5000, "每批写入行数")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "随机种子")
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "先删除全部现有部门与员工")
	return cmd
}

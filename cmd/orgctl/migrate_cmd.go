package main

import (
	"github.com/spf13/cobra"

	"github.com/alexfofanov/company-structure/pkg/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "数据库迁移",
	}
	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "执行全部未应用的迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()

			sqlDB, err := e.db.DB()
			if err != nil {
				return err
			}
			return database.RunMigrations(sqlDB, e.logger)
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "回滚迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()

			sqlDB, err := e.db.DB()
			if err != nil {
				return err
			}
			return database.RollbackMigrations(sqlDB, steps, e.logger)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "回滚的步数")
	return cmd
}

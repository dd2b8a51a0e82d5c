package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexfofanov/company-structure/internal/tree"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "校验全部部门树的嵌套集合坐标",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()

			if err := tree.Verify(cmd.Context(), e.repo.Department); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "部门树校验通过")
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexfofanov/company-structure/internal/dto"
	"github.com/alexfofanov/company-structure/internal/model"
	"github.com/alexfofanov/company-structure/internal/service"
	"github.com/alexfofanov/company-structure/pkg/jwt"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "后台账号管理",
	}
	cmd.AddCommand(newUserCreateCmd())
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var req dto.CreateUserRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "创建后台账号",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()

			auth := service.NewAuthService(e.cfg, e.repo, jwt.NewManager(&e.cfg.Auth), nil, e.logger)
			user, err := auth.CreateUser(cmd.Context(), &req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已创建账号 %s（%s），ID %s\n", user.Username, user.Role, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "用户名")
	cmd.Flags().StringVar(&req.Password, "password", "", "密码，至少 8 位")
	cmd.Flags().StringVar(&req.Role, "role", model.RoleAdmin, "角色: admin / viewer")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

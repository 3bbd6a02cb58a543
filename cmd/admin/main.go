package main

import (
	"context"
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"donor-registry/internal/bootstrap"
	"donor-registry/internal/core/config"
	"donor-registry/internal/domain"
	"donor-registry/internal/transport/http/handler"
	"donor-registry/internal/transport/http/router"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "admin",
		Short:         "donor registry admin service and tools",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default $CONFIG_PATH or ./configs/config.local.yaml)")

	load := func() (*bootstrap.Deps, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		return bootstrap.New(cfg)
	}

	root.AddCommand(newServeCmd(load), newCreateUserCmd(load))
	return root
}

// serve 启动管理端 HTTP（/admin/v1）
func newServeCmd(load func() (*bootstrap.Deps, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the admin HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := load()
			if err != nil {
				return err
			}
			defer d.Close()

			r := router.NewAdminEngine(d.Log, d.Users, d.Limits(), handler.NewUserHandler(d.Users, d.Log))
			return d.Run("admin api", d.Cfg.App.Admin.Host, d.Cfg.App.Admin.Port, r)
		},
	}
}

// create-user 直接写库建用户，用于初始化第一个管理员
func newCreateUserCmd(load func() (*bootstrap.Deps, error)) *cobra.Command {
	var (
		username  string
		password  string
		authority int
	)
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "create a user (bootstrap the first admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := load()
			if err != nil {
				return err
			}
			defer d.Close()

			u, err := d.Users.Create(context.Background(), username, password, domain.Authority(authority))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %q (id=%d, authority=%d)\n", u.Username, u.ID, u.Authority)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (min 6 characters)")
	cmd.Flags().IntVarP(&authority, "authority", "a", int(domain.AuthorityAdmin), "authority level: 1 read, 2 create, 4 admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rch/portal/internal/domain/identity"
	"github.com/rch/portal/internal/platform/auth"
	"github.com/rch/portal/internal/platform/db"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrator account management",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator, or promote an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ttl, _ := cfg.TokenTTL()

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := identity.NewService(identity.NewUserRepo(pool), auth.NewTokenIssuer(cfg.JWTSecret, ttl), nil,
				newMailManager(cfg, logger), logger)
			u, err := svc.BootstrapAdmin(ctx, name, email, password)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Printf("Administrator ready: %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("name", "Administrador", "Display name")
	createCmd.Flags().String("email", "", "Login email")
	createCmd.Flags().String("password", "", "Initial password")
	cmd.AddCommand(createCmd)

	return cmd
}

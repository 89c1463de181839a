package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"finance-tower/internal/auth"
	"finance-tower/internal/config"
	"finance-tower/internal/finance"
	"finance-tower/internal/identity"
	"finance-tower/internal/ledger"
)

func newMigrateCmd() *cobra.Command {
	var withIdentity bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create ledger tables and append-only triggers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, dialect, err := openLedger(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := ledger.Migrate(ctx, db, dialect); err != nil {
				return err
			}
			if withIdentity {
				if err := identity.Migrate(ctx, db); err != nil {
					return err
				}
			}
			slog.Info("migration complete", "dialect", string(dialect), "identity", withIdentity)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withIdentity, "identity", false, "Also create users and project_members tables (local runs)")
	return cmd
}

func newPayoutCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "payout",
		Short: "Pay every approved or scheduled disbursement of a project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireProject(); err != nil {
				return err
			}
			if actor == "" {
				return errors.New("--actor is required")
			}
			return withService(cmd.Context(), func(svc *finance.Service) error {
				p, err := svc.ApproveAllPending(cmd.Context(), flagProject, actor)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
	cmd.Flags().StringVarP(&flagProject, "project", "p", "", "Project id")
	cmd.Flags().StringVar(&actor, "actor", "", "User id recorded in the audit log")
	return cmd
}

func newOverviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Print budget usage, burn and runway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireProject(); err != nil {
				return err
			}
			return withService(cmd.Context(), func(svc *finance.Service) error {
				ov, err := svc.Overview(cmd.Context(), flagProject)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), ov)
			})
		},
	}
	cmd.Flags().StringVarP(&flagProject, "project", "p", "", "Project id")
	return cmd
}

func newForecastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Print monthly actuals and the three-month projection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireProject(); err != nil {
				return err
			}
			return withService(cmd.Context(), func(svc *finance.Service) error {
				res, err := svc.Forecast(cmd.Context(), flagProject)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVarP(&flagProject, "project", "p", "", "Project id")
	return cmd
}

func newAuditCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the newest audit log entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireProject(); err != nil {
				return err
			}
			return withService(cmd.Context(), func(svc *finance.Service) error {
				entries, err := svc.AuditLog(cmd.Context(), flagProject, limit)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				for _, e := range entries {
					who := e.ActorName
					if who == "" {
						who = e.ActorID
					}
					fmt.Fprintf(w, "%s  %-24s %12s  %-20s %s\n",
						e.CreatedAt.Format(time.RFC3339), e.Action, e.Amount.StringFixed(2), who, e.Note)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&flagProject, "project", "p", "", "Project id")
	cmd.Flags().IntVarP(&limit, "limit", "n", finance.DefaultAuditLimit, "Maximum entries to print")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user == "" {
				return errors.New("--user is required")
			}
			m, err := auth.NewManager(config.AuthConfig{
				JWTSecret:       os.Getenv("JWT_SECRET"),
				JWTIssuer:       os.Getenv("JWT_ISSUER"),
				JWTAudience:     os.Getenv("JWT_AUDIENCE"),
				AccessTokenTTL:  ttl,
				RefreshTokenTTL: 2 * ttl,
			})
			if err != nil {
				return err
			}
			pair, err := m.IssuePair(time.Now(), user)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"access_token":  pair.AccessToken,
				"refresh_token": pair.RefreshToken,
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User id to embed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Access token lifetime")
	return cmd
}

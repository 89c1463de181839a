// Command ledgerctl is the operator CLI for the finance ledger: schema
// migration, batch payouts and read-only reports.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"finance-tower/internal/finance"
	"finance-tower/internal/identity"
	"finance-tower/internal/ledger"
	"finance-tower/pkg/logger"
	"finance-tower/pkg/utils"
)

var (
	flagSQLite   string
	flagDSN      string
	flagRedis    string
	flagProject  string
	flagCurrency string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Finance ledger operator tool",
		Long:          "Migrate the ledger schema, run batch payouts and print budget reports.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logger.NewWithWriter(os.Getenv("APP_ENV"), cmd.ErrOrStderr()))
		},
	}

	root.PersistentFlags().StringVar(&flagSQLite, "sqlite", "", "Path to a SQLite ledger file (overrides --dsn)")
	root.PersistentFlags().StringVar(&flagDSN, "dsn", os.Getenv("DATABASE_URL"), "Postgres DSN")
	root.PersistentFlags().StringVar(&flagRedis, "redis", "", "Redis address for the payout guard (optional)")
	root.PersistentFlags().StringVar(&flagCurrency, "currency", finance.DefaultCurrency, "Currency for newly created budgets")

	root.AddCommand(
		newMigrateCmd(),
		newPayoutCmd(),
		newOverviewCmd(),
		newForecastCmd(),
		newAuditCmd(),
		newTokenCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openLedger opens the configured database and reports which DDL flavour it needs.
func openLedger(ctx context.Context) (*sql.DB, ledger.Dialect, error) {
	switch {
	case flagSQLite != "":
		db, err := utils.OpenSQLite(ctx, flagSQLite)
		return db, ledger.DialectSQLite, err
	case flagDSN != "":
		db, err := utils.OpenPostgres(ctx, flagDSN, utils.PostgresPoolConfig{MaxOpenConns: 4})
		return db, ledger.DialectPostgres, err
	default:
		return nil, "", errors.New("one of --sqlite or --dsn (DATABASE_URL) is required")
	}
}

// withService runs fn against a finance service bound to the configured
// database, closing every connection afterwards.
func withService(ctx context.Context, fn func(svc *finance.Service) error) error {
	db, _, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	var rdb *redis.Client
	if flagRedis != "" {
		rdb, err = utils.OpenRedis(ctx, utils.RedisConfig{Addr: flagRedis})
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	svc := finance.NewService(ledger.New(db), finance.Config{
		DefaultCurrency: flagCurrency,
		Directory:       identity.NewSQLDirectory(db),
		Guard:           utils.NewConcurrencyGuard(rdb, "finance:payout:", 30*time.Second),
	})
	return fn(svc)
}

func requireProject() error {
	if flagProject == "" {
		return errors.New("--project is required")
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

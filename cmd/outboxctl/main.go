// Command outboxctl is an operator CLI for inspecting and administering a
// live outbox table: whitelisting blocklisted entries, checking status
// counts, and running schema migrations.
//
// Grounded on the teacher's server/cmd/memoryctl/main.go cobra root command
// shape, adapted from an HTTP API client into a direct database client since
// the outbox engine has no REST surface of its own.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/txoutbox/txoutbox/internal/config"
	"github.com/txoutbox/txoutbox/internal/outbox"
	"github.com/txoutbox/txoutbox/internal/outbox/dialect/mysql"
	"github.com/txoutbox/txoutbox/internal/outbox/dialect/postgres"
	"github.com/txoutbox/txoutbox/internal/outbox/dialect/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "outboxctl",
	Short: "Operator CLI for the transactional outbox",
}

func main() {
	rootCmd.AddCommand(whitelistCmd(), statusCmd(), migrateCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openFromEnv() (*sql.DB, outbox.Dialect, *config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, nil, err
	}
	switch cfg.Dialect {
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		return db, postgres.New(), cfg, err
	case "mysql":
		db, err := mysql.Open(cfg.MySQLDSN)
		return db, mysql.New8(), cfg, err
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = ":memory:"
		}
		db, err := sqlite.Open(path)
		return db, sqlite.New(), cfg, err
	default:
		return nil, nil, nil, fmt.Errorf("unsupported dialect %q", cfg.Dialect)
	}
}

func whitelistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whitelist ENTRY_ID",
		Short: "Reset a blocklisted entry so the flusher retries it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, dialect, cfg, err := openFromEnv()
			if err != nil {
				return err
			}
			defer db.Close()

			persistor := outbox.NewPersistor(outbox.PersistorConfig{
				Dialect:   dialect,
				TableName: cfg.TableName,
			})
			ctx := context.Background()
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return err
			}
			changed, err := persistor.Whitelist(ctx, tx, args[0])
			if err != nil {
				_ = tx.Rollback()
				return err
			}
			if err := tx.Commit(); err != nil {
				return err
			}
			if changed {
				fmt.Fprintf(cmd.OutOrStdout(), "entry %s un-blocklisted\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "entry %s was not blocklisted; no change\n", args[0])
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print pending/blocklisted/processed row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, cfg, err := openFromEnv()
			if err != nil {
				return err
			}
			defer db.Close()

			counts := map[string]string{
				"pending":     fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE blocklisted=false AND processed=false", cfg.TableName),
				"blocklisted": fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE blocklisted=true", cfg.TableName),
				"processed":   fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE processed=true", cfg.TableName),
			}
			ctx := context.Background()
			for _, label := range []string{"pending", "blocklisted", "processed"} {
				var n int
				if err := db.QueryRowContext(ctx, counts[label]).Scan(&n); err != nil {
					return fmt.Errorf("count %s: %w", label, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %d\n", label, n)
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the outbox schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, dialect, cfg, err := openFromEnv()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := outbox.Migrate(context.Background(), db, dialect, cfg.TableName); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
			return nil
		},
	}
}

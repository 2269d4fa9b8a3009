package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/insurance-doc-router/internal/config"
	"github.com/kirillkom/insurance-doc-router/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/insurance-doc-router/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("audit-export", cfg.LogLevel))

	if err := rootCMD(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCMD(cfg config.Config) *cobra.Command {
	var (
		since  string
		days   int
		limit  int
		output string
		dsn    string
	)

	root := &cobra.Command{
		Use:   "audit-export",
		Short: "Export classification audit entries to an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := resolveSince(since, days, time.Now().UTC())
			if err != nil {
				return err
			}
			if dsn == "" {
				dsn = cfg.PostgresDSN
			}

			db, err := postgres.OpenDB(dsn)
			if err != nil {
				return fmt.Errorf("open postgres: %w", err)
			}
			defer db.Close()

			n, err := exportAudit(cmd.Context(), postgres.NewAuditRepository(db), from, limit, output)
			if err != nil {
				return err
			}
			slog.Info("audit_exported", "entries", n, "since", from, "output", output)
			return nil
		},
	}
	root.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD or RFC3339); overrides --days")
	root.Flags().IntVar(&days, "days", 7, "export entries of the last N days")
	root.Flags().IntVar(&limit, "limit", 10000, "maximum number of entries")
	root.Flags().StringVarP(&output, "output", "o", "classification-audit.xlsx", "output workbook path")
	root.Flags().StringVar(&dsn, "dsn", "", "postgres DSN (default POSTGRES_DSN)")
	return root
}

func resolveSince(since string, days int, now time.Time) (time.Time, error) {
	if since == "" {
		if days <= 0 {
			return time.Time{}, fmt.Errorf("--days must be positive")
		}
		return now.AddDate(0, 0, -days), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, since); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --since %q: want YYYY-MM-DD or RFC3339", since)
}

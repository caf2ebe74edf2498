package cli

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/telekom/leadform/pkg/config"
	"github.com/telekom/leadform/pkg/store/migrations"
	"github.com/telekom/leadform/pkg/store/sqlite"
)

// NewMigrateCommand prints the schema or applies it to the local SQLite database. The
// hosted Postgres schema is applied with the database's own tooling, so only printing
// is supported for it.
func NewMigrateCommand() *cobra.Command {
	var (
		dialect   string
		printOnly bool
		dsn       string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Print or apply the lead table schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !lo.Contains(migrations.Dialects, dialect) {
				return fmt.Errorf("unknown dialect %q, expected one of %v", dialect, migrations.Dialects)
			}
			if printOnly {
				ms, err := migrations.For(dialect)
				if err != nil {
					return err
				}
				for _, m := range ms {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "-- %s\n%s\n", m.Version, m.SQL)
				}
				return nil
			}
			if dialect != "sqlite" {
				return fmt.Errorf("%s migrations are applied by the hosted database, use --print to get the SQL", dialect)
			}

			opts := getOptions(cmd)
			if dsn == "" {
				cfg, err := config.Load(opts.ConfigPath)
				if err != nil {
					return err
				}
				dsn = cfg.Store.DSN
			}
			logger := SetupLogger(opts.Debug)
			defer func() { _ = logger.Sync() }()

			s, err := sqlite.Open(cmd.Context(), dsn, logger.Sugar())
			if err != nil {
				return fmt.Errorf("migrating %s: %w", dsn, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schema of %s is up to date\n", dsn)
			return s.Close()
		},
	}

	cmd.Flags().StringVar(&dialect, "dialect", "sqlite", "Schema dialect: sqlite or postgres")
	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the migrations instead of applying them")
	cmd.Flags().StringVar(&dsn, "dsn", "", "SQLite database file (default: store.dsn from the config)")

	return cmd
}

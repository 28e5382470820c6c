package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fekuna/omnipos-inventory-ledger/migrations"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|version|force N]",
		Short: "Apply or roll back database migrations",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			appLogger := newLogger(cfg)
			defer appLogger.Sync()

			src, err := iofs.New(migrations.FS, migrations.Dir)
			if err != nil {
				return fmt.Errorf("open embedded migrations: %w", err)
			}
			m, err := migrate.NewWithSourceInstance("iofs", src, postgresConfig(cfg).DSN("pgx5"))
			if err != nil {
				return fmt.Errorf("init migrate: %w", err)
			}
			defer m.Close()

			switch args[0] {
			case "up":
				err = m.Up()
			case "down":
				err = m.Steps(-1)
			case "force":
				if len(args) != 2 {
					return errors.New("force needs a version")
				}
				v, convErr := strconv.Atoi(args[1])
				if convErr != nil {
					return fmt.Errorf("invalid version %q: %w", args[1], convErr)
				}
				err = m.Force(v)
			case "version":
				v, dirty, verr := m.Version()
				if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
					return verr
				}
				appLogger.Info("Migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
				return nil
			default:
				return fmt.Errorf("unknown migrate command %q", args[0])
			}

			if errors.Is(err, migrate.ErrNoChange) {
				appLogger.Info("No migrations to apply")
				return nil
			}
			if err != nil {
				return err
			}
			appLogger.Info("Migrations applied", zap.String("direction", args[0]))
			return nil
		},
	}
	return cmd
}

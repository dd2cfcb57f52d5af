package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotauth/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "driver", config.Database.Driver)

	db, err := r.openDatabase(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()

	versions, err := shared.AppliedVersions(ctx, db)
	if err != nil {
		return err
	}

	r.logger.Info("setup complete", "migrations", len(versions))
	return r.writePlain("%s database ready (%d migrations applied)\n", r.palette.OK("✓"), len(versions))
}

// SetupRollback rolls back the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	version, err := shared.RollbackMigration(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to rollback: %w", err)
	}

	r.logger.Info("rolled back migration", "version", version)
	return r.writePlain("%s rolled back migration %04d\n", r.palette.OK("✓"), version)
}

// SetupConfig writes the configuration template to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		return fmt.Errorf("%w: --config", shared.ErrMissingArgument)
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("%s wrote %s\n", r.palette.OK("✓"), path)
	return r.writePlain("%s\n", r.palette.Help("Set client_id and client_secret, or export CLIENT_ID and CLIENT_SECRET."))
}

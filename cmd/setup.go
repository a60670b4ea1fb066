package main

import (
	"context"

	"github.com/tunegraph/tunegraph/internal/shared"
	"github.com/urfave/cli/v3"
)

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create a config file and initialize the database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.toml",
				Usage:   "Path for the generated config file",
			},
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recent migration instead of applying",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return r.setup(cmd.String("config"), cmd.Bool("rollback"))
		},
	}
}

// setup generates the config file when absent and brings the database schema
// to the latest version (or back one, with --rollback).
func (r *Runner) setup(configPath string, rollback bool) error {
	if err := shared.CreateConfigFile(configPath); err != nil {
		r.logger.Warn("config file not created", "path", configPath, "err", err)
	} else {
		if err := r.writePlain("created %s\n", configPath); err != nil {
			return err
		}
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if rollback {
		if err := shared.RollbackMigration(db); err != nil {
			return err
		}
		return r.writePlain("rolled back most recent migration\n")
	}

	if err := shared.RunMigrations(db); err != nil {
		return err
	}
	return r.writePlain("database ready at %s\n", r.config.Database.Path)
}

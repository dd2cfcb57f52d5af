// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

const defaultConfigPath = "config.toml"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   defaultConfigPath,
	}
}

// serveCommand runs the authorization service
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve /login, /callback and /refresh_token",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides config and PORT)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open /login in the system browser once the server is up",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles database and configuration setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupRollback,
			},
			{
				Name:   "config",
				Usage:  "Write a configuration template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
		},
	}
}

// credentialsCommand inspects stored credential records
func credentialsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "credentials",
		Aliases: []string{"creds"},
		Usage:   "Inspect stored credentials",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stored credentials with truncated tokens",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "spotify-id",
						Usage: "Only show credentials for this Spotify user",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of credentials to show (0 for all)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
						Value: true,
					},
				},
				Action: r.CredentialsList,
			},
		},
	}
}

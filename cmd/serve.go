package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/desertthunder/spotauth/internal/repositories"
	"github.com/desertthunder/spotauth/internal/server"
	"github.com/desertthunder/spotauth/internal/services"
	"github.com/desertthunder/spotauth/internal/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
)

// Serve runs the authorization service until the context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if port := int(cmd.Int("port")); port > 0 {
		config.Server.Port = port
	}

	if err := config.Validate(); err != nil {
		return err
	}

	service, err := services.NewSpotifyService(services.SpotifyOptionsFromConfig(config.Credentials.Spotify))
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	db, err := r.openDatabase(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()

	var registry *prometheus.Registry
	if config.Server.Metrics {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	srv := server.New(server.Options{
		Config:   config.Server,
		Service:  service,
		Store:    repositories.NewCredentialRepository(db),
		DB:       db,
		Logger:   r.logger,
		Registry: registry,
	})

	if cmd.Bool("open") {
		go r.openLogin(ctx, config.Server)
	}

	return srv.Run(ctx)
}

// openLogin opens /login in the system browser after the listener has had a moment to start.
func (r *Runner) openLogin(ctx context.Context, cfg shared.ServerConfig) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(100 * time.Millisecond):
	}

	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	loginURL := "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Port)) + "/login"

	if err := shared.OpenBrowser(loginURL); err != nil {
		r.logger.Warn("failed to open browser automatically", "error", err)
		r.writePlain("%s\n%s\n", r.palette.Warn("Could not open browser automatically. Open this URL:"), loginURL)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tunegraph/tunegraph/internal/query"
	"github.com/tunegraph/tunegraph/internal/repositories"
	"github.com/tunegraph/tunegraph/internal/server"
	"github.com/tunegraph/tunegraph/internal/shared"
	"github.com/tunegraph/tunegraph/internal/spotify"
	"github.com/urfave/cli/v3"
)

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a config.toml file",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Override the configured port",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := r.loadConfig(cmd); err != nil {
				return err
			}
			if port := cmd.Int("port"); port != 0 {
				r.config.Server.Port = port
			}
			return r.serve(ctx)
		},
	}
}

// serve wires the full service and runs it until the context is cancelled or
// an interrupt arrives.
func (r *Runner) serve(ctx context.Context) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: spotify.DefaultTimeout}
	if seconds := r.config.Credentials.Spotify.TimeoutSeconds; seconds > 0 {
		httpClient.Timeout = time.Duration(seconds) * time.Second
	}

	exchanger, err := spotify.NewExchanger(r.config.Credentials.Spotify, httpClient)
	if err != nil {
		return err
	}

	client := spotify.NewClient(httpClient, "")
	profiles := repositories.NewProfileRepository(db)
	queries := query.NewQueries(client, exchanger, profiles, r.logger)

	router := server.NewBasicRouter()
	router.Use(
		server.RequestID(),
		server.Logging(r.logger),
		server.Recovery(r.logger),
		server.CORS(r.config.Server.AllowedOrigin),
		server.RateLimit(r.config.Server.RateLimit, r.config.Server.RateBurst),
	)
	router.Handler(server.NewAuthHandler(exchanger, r.config.Server, r.logger))
	router.Handler(server.NewQueryHandler(queries, r.logger))

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		r.logger.Info("server listening", "addr", addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

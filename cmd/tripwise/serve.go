package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/tripwise/internal/cli"
	httpadapter "github.com/aretw0/tripwise/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Serves plan sessions, their event streams and metrics over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		streams := httpadapter.NewStreamManager()
		app, err := cli.NewApp(cfg, cli.WithHooks(streams.Hooks()))
		if err != nil {
			return err
		}
		defer app.Close()
		logger := app.Logger

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err = app.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}

		handler := httpadapter.NewHandler(app.Sessions,
			httpadapter.WithLogger(logger),
			httpadapter.WithStreams(streams),
			httpadapter.WithGraph(app.Pipeline.Describe()),
			httpadapter.WithMetricsHandler(promhttp.HandlerFor(app.Gatherer, promhttp.HandlerOpts{})),
		)

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting Tripwise Server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil

		case sig := <-shutdown:
			logger.Info("Start shutdown", "signal", sig.String())

			// Runs can take minutes; give them a generous deadline.
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("Error killing server", "err", err)
				}
			}
			logger.Info("Tripwise Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}

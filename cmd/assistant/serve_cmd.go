package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flotatrack/fleet-assistant/pkg/httpapi"
	"github.com/flotatrack/fleet-assistant/pkg/logging"
	"github.com/flotatrack/fleet-assistant/pkg/metrics"
	"github.com/flotatrack/fleet-assistant/pkg/middleware"
	"github.com/flotatrack/fleet-assistant/pkg/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, opts, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			conf := rt.conf
			logger := conf.Logger()
			if conf.OpenTelemetry.Enabled {
				cleanup := logging.SetupTracing(context.Background(), conf.OpenTelemetry.ServiceName, conf.OpenTelemetry.TempoURL)
				defer cleanup()
				logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
			}

			logOpts := middleware.DefaultLoggerOptions()
			logOpts.RequestIDHeader = conf.RequestIDHeader
			rt.app.RegisterMiddleware(middleware.WithLogger(logger, logOpts))
			if conf.Prometheus.Enabled {
				rt.app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
			}

			notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
			})
			srv := server.NewHTTPServer(rt.app, notFound, nil, conf.Origin)
			logger.WithField("addr", conf.SocketAddress).Info("assistant API listening")
			return srv.Serve(ctx, conf.SocketAddress, shutdownTimeout)
		},
	}
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "Graceful shutdown timeout")
	return cmd
}

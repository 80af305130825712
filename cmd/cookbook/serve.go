package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/cookbook/internal/metrics"
	"github.com/arthur-debert/cookbook/server"
)

// serverOptions translates the configuration into server options
func (a *app) serverOptions() ([]server.Option, func() error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)

	limits := a.cfg.Server.RateLimit
	opts := []server.Option{
		server.WithLogger(a.logger),
		server.WithGatherer(reg),
		server.WithRateLimit(limits.RPS, limits.Burst),
	}

	closer := func() error { return nil }
	if limits.Redis {
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		opts = append(opts, server.WithRedisRateLimit(client, limits.Window))
		closer = client.Close
	}
	return opts, closer
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Long: `Serve every collection under /api/:collection, with /healthz and /metrics.
Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, closeLimiter := a.serverOptions()
			defer func() { _ = closeLimiter() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.New(a.registry, opts...).ListenAndServe(ctx, a.cfg.Server.Addr)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default :8080)")
	_ = a.viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

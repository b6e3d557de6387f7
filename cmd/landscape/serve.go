package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/FranksOps/landscape/internal/metrics"
	"github.com/FranksOps/landscape/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analyze API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := build(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := c.Close(); err != nil {
					a.logger.Warn("close failed", "error", err)
				}
			}()

			mc := a.cfg.Metrics
			if mc.Enabled && mc.Addr != "" {
				ms := metrics.Start(mc.Addr, a.logger)
				defer func() { _ = ms.Stop(context.Background()) }()
				a.logger.Info("metrics listening", "addr", mc.Addr)
			}

			srv := server.New(server.Config{
				Analyzer:       c.analyzer,
				Logger:         a.logger,
				RequestTimeout: a.cfg.Server.RequestTimeout,
				ExposeMetrics:  mc.Enabled && mc.Addr == "",
			})
			return srv.ListenAndServe(ctx, a.cfg.Server.Addr, a.cfg.Server.ShutdownTimeout)
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	_ = a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

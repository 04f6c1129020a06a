package main

import (
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/server"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the assessment HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			normalizer := newNormalizer(cfg)
			service, err := newService(cfg, normalizer)
			if err != nil {
				return err
			}
			srv, err := server.New(service, server.WithMaxUploadBytes(cfg.Audio.MaxUploadBytes))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.RetentionTTL() > 0 {
				go normalizer.Store().RunSweeper(ctx, cfg.SweepInterval(), cfg.RetentionTTL())
			} else {
				logging.NewLogger(ctx).Warn("audio retention disabled; scratch directory grows without bound")
			}

			return srv.Run(ctx, net.JoinHostPort(cfg.HTTP.Bind, strconv.Itoa(cfg.HTTP.Port)))
		},
	}
}

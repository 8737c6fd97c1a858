package main

import (
	"github.com/casualjim/recall/server"
	"github.com/spf13/cobra"
)

func NewStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Serve voice tutor sessions over websockets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
				cfg.ListenAddr = addr
			}

			b, closeBroker, err := connectBroker(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeBroker()

			worker, err := newWorker(cfg, logger, b, true)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("dev-tokens") {
				cfg.DevTokens, _ = cmd.Flags().GetBool("dev-tokens")
			}
			if cfg.DevTokens {
				logger.WarnContext(ctx, "serving unauthenticated room tokens on POST /token")
			}
			srv, err := server.New(worker, server.NewTokens(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret),
				server.WithDevTokens(cfg.DevTokens))
			if err != nil {
				return err
			}
			return ignoreCanceled(srv.ListenAndServe(ctx, cfg.ListenAddr))
		},
	}
	cmd.Flags().String("listen", "", "Address to listen on, overrides LISTEN_ADDR")
	cmd.Flags().Bool("dev-tokens", false, "Serve POST /token for local testing, overrides DEV_TOKENS")
	return cmd
}

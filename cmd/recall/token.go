package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/casualjim/recall/server"
	"github.com/spf13/cobra"
)

func NewTokenCommand() *cobra.Command {
	var room, identity string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed token for joining a room",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.LiveKitAPIKey == "" || cfg.LiveKitAPISecret == "" {
				return errors.New("LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required to sign tokens")
			}

			token, err := server.NewTokens(cfg.LiveKitAPIKey, cfg.LiveKitAPISecret).Issue(room, identity)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, token)
			fmt.Fprintf(out, "%s/rooms/%s?token=%s\n", strings.TrimSuffix(cfg.LiveKitURL, "/"), url.PathEscape(room), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "Room to grant access to")
	cmd.Flags().StringVar(&identity, "identity", "learner", "Participant identity")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

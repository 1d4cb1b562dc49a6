package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AhmedrAshraf/filepizza/internal/signaling"
)

func newICECmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ice",
		Short: "print the ICE servers the relay hands to browsers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := root.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := root.requestContext(cmd.Context())
			defer cancel()
			servers, err := c.RTCConfig(ctx)
			if err != nil {
				return fmt.Errorf("rtcConfig: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(signaling.RTCConfigReply{ICEServers: servers})
		},
	}
}

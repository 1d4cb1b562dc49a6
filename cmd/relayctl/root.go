package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AhmedrAshraf/filepizza/internal/client"
	"github.com/AhmedrAshraf/filepizza/internal/signaling"
)

const defaultRelayURL = "ws://localhost:3000" + signaling.SocketPath

type rootOptions struct {
	relayURL string
	timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "relayctl",
		Short:         "inspect and exercise a filepizza relay",
		Long:          `relayctl speaks the relay's WebSocket signaling protocol: register uploads, resolve tokens and fetch ICE configuration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	relayDefault := os.Getenv("FILEPIZZA_RELAY_URL")
	if relayDefault == "" {
		relayDefault = defaultRelayURL
	}
	cmd.PersistentFlags().StringVar(&opts.relayURL, "relay", relayDefault, "relay socket URL (env FILEPIZZA_RELAY_URL)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "timeout for dialing and each request")

	cmd.AddCommand(newUploadCmd(opts))
	cmd.AddCommand(newLookupCmd(opts))
	cmd.AddCommand(newICECmd(opts))
	return cmd
}

func (o *rootOptions) dial(ctx context.Context) (*client.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return client.Dial(dialCtx, o.relayURL, nil)
}

func (o *rootOptions) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.timeout)
}

// webBaseURL guesses the web app address from the relay socket URL, for when
// --base-url is not given.
func webBaseURL(relayURL string) (string, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("relay url %q must use ws or wss", relayURL)
	}
	u.Path = strings.TrimSuffix(u.Path, signaling.SocketPath)
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

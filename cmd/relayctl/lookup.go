package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNotFound = errors.New("no upload matches that token")

func newLookupCmd(root *rootOptions) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "lookup token",
		Short: "resolve a token like a downloader would",
		Long: `lookup sends requestDownload for a token (or, with --short, a short token) and prints the file metadata.
The uploader sees this connection's address appear in its downloader list.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, shortToken := args[0], ""
			if short {
				token, shortToken = "", args[0]
			}

			c, err := root.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := root.requestContext(cmd.Context())
			defer cancel()
			file, err := c.RequestDownload(ctx, token, shortToken)
			if err != nil {
				return fmt.Errorf("requestDownload: %w", err)
			}
			if file == nil {
				return errNotFound
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(file)
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "treat the argument as a short token")
	return cmd
}

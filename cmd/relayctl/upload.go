package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AhmedrAshraf/filepizza/internal/session"
	"github.com/AhmedrAshraf/filepizza/internal/share"
)

type uploadOptions struct {
	baseURL string
	name    string
	size    int64
	typ     string
	noQR    bool
	wait    bool
}

func newUploadCmd(root *rootOptions) *cobra.Command {
	opts := &uploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload [path/to/file]",
		Short: "register an upload and watch for downloaders",
		Long: `upload registers a file's metadata with the relay, prints its tokens, share links and a QR code,
then prints the downloader list each time it changes. The session lives until relayctl exits.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := opts.fileInfo(args)
			if err != nil {
				return err
			}
			base := opts.baseURL
			if base == "" {
				if base, err = webBaseURL(root.relayURL); err != nil {
					return err
				}
			}

			c, err := root.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := root.requestContext(cmd.Context())
			tokens, err := c.Upload(ctx, file)
			cancel()
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}
			links, err := share.LinksFor(base, tokens.Token, tokens.ShortToken)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file:        %s (%d bytes, %s)\n", file.Name, file.Size, file.Type)
			fmt.Fprintf(out, "token:       %s\n", tokens.Token)
			fmt.Fprintf(out, "short token: %s\n", tokens.ShortToken)
			fmt.Fprintf(out, "link:        %s\n", links.Long)
			fmt.Fprintf(out, "short link:  %s\n", links.Short)
			if !opts.noQR {
				qr, err := share.TerminalQRCode(links.Short)
				if err != nil {
					return fmt.Errorf("render qr code: %w", err)
				}
				fmt.Fprint(out, qr)
			}
			if !opts.wait {
				return nil
			}

			fmt.Fprintln(out, "waiting for downloaders (ctrl-c to stop)")
			for {
				select {
				case list := <-c.Downloaders():
					ips := make([]string, len(list))
					for i, d := range list {
						ips[i] = d.IP
					}
					fmt.Fprintf(out, "downloaders: %d [%s]\n", len(list), strings.Join(ips, ", "))
				case <-c.Done():
					return fmt.Errorf("relay connection closed: %w", c.Err())
				case <-cmd.Context().Done():
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "web app address used in share links (default derived from --relay)")
	cmd.Flags().StringVar(&opts.name, "name", "", "file name (default: base name of the path)")
	cmd.Flags().Int64Var(&opts.size, "size", -1, "file size in bytes (default: size of the path)")
	cmd.Flags().StringVar(&opts.typ, "type", "", "MIME type (default: guessed from the extension)")
	cmd.Flags().BoolVar(&opts.noQR, "no-qr", false, "do not print a QR code")
	cmd.Flags().BoolVar(&opts.wait, "wait", true, "keep the session open and print downloader updates")
	return cmd
}

func (o *uploadOptions) fileInfo(args []string) (session.FileInfo, error) {
	file := session.FileInfo{Name: o.name, Size: o.size, Type: o.typ}

	if len(args) == 1 {
		st, err := os.Stat(args[0])
		if err != nil {
			return session.FileInfo{}, err
		}
		if st.IsDir() {
			return session.FileInfo{}, fmt.Errorf("%s is a directory", args[0])
		}
		if file.Name == "" {
			file.Name = filepath.Base(args[0])
		}
		if file.Size < 0 {
			file.Size = st.Size()
		}
	}

	if file.Name == "" {
		return session.FileInfo{}, fmt.Errorf("a path or --name is required")
	}
	if file.Size < 0 {
		return session.FileInfo{}, fmt.Errorf("a path or --size is required")
	}
	if file.Type == "" {
		file.Type = mime.TypeByExtension(filepath.Ext(file.Name))
		if file.Type == "" {
			file.Type = "application/octet-stream"
		}
	}
	return file, nil
}

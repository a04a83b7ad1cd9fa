package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"github.com/wacli/wacli/internal/out"
	"golang.org/x/term"
)

func newAuthCmd(flags *rootFlags) *cobra.Command {
	var qrFile string
	var logout bool

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Pair this device via QR code, or log out",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, lk, err := newApp(ctx, flags, true, true)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			if err := a.OpenWA(); err != nil {
				return err
			}

			if logout {
				if !a.WA().IsAuthed() {
					if flags.asJSON {
						return out.WriteJSON(os.Stdout, map[string]any{"authenticated": false})
					}
					fmt.Fprintln(os.Stdout, "Not authenticated.")
					return nil
				}
				if err := a.WA().Logout(ctx); err != nil {
					return err
				}
				if flags.asJSON {
					return out.WriteJSON(os.Stdout, map[string]any{"authenticated": false})
				}
				fmt.Fprintln(os.Stdout, "Logged out.")
				return nil
			}

			if a.WA().IsAuthed() {
				if flags.asJSON {
					return out.WriteJSON(os.Stdout, map[string]any{"authenticated": true})
				}
				fmt.Fprintln(os.Stdout, "Already authenticated.")
				return nil
			}

			var onQR func(string)
			if qrFile != "" {
				onQR = func(code string) {
					if err := qrcode.WriteFile(code, qrcode.Medium, 256, qrFile); err != nil {
						fmt.Fprintf(os.Stderr, "failed to write QR code to %s: %v\n", qrFile, err)
						return
					}
					fmt.Fprintf(os.Stderr, "QR code written to %s; scan it from WhatsApp > Linked devices.\n", qrFile)
				}
			} else if !term.IsTerminal(int(os.Stdout.Fd())) {
				fmt.Fprintln(os.Stderr, "stdout is not a terminal; pass --qr-file to save the QR code as a PNG instead.")
			} else {
				fmt.Fprintln(os.Stderr, "Scan this QR code from WhatsApp > Linked devices:")
			}

			if err := a.Connect(ctx, true, onQR); err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, map[string]any{"authenticated": a.WA().IsAuthed()})
			}
			fmt.Fprintln(os.Stdout, "Paired successfully.")
			return nil
		},
	}

	cmd.Flags().StringVar(&qrFile, "qr-file", "", "write the pairing QR code to this PNG file instead of the terminal")
	cmd.Flags().BoolVar(&logout, "logout", false, "log out and forget this device's session")
	return cmd
}

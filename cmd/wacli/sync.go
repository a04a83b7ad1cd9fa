package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/wacli/wacli/internal/app"
	"github.com/wacli/wacli/internal/out"
)

func newSyncCmd(flags *rootFlags) *cobra.Command {
	var follow bool
	var once bool
	var downloadMedia bool
	var refreshContacts bool
	var refreshGroups bool
	var idleExit int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Stream (or bootstrap) messages from WhatsApp into the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, lk, err := newApp(ctx, flags, true, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			mode := app.SyncModeBootstrap
			if follow {
				mode = app.SyncModeFollow
			} else if once {
				mode = app.SyncModeOnce
			}

			res, err := a.Sync(ctx, app.SyncOptions{
				Mode:            mode,
				AllowQR:         false,
				DownloadMedia:   downloadMedia,
				RefreshContacts: refreshContacts,
				RefreshGroups:   refreshGroups,
				IdleExit:        time.Duration(idleExit) * time.Second,
			})
			if err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, map[string]any{
					"messages_stored":    res.MessagesStored,
					"media_jobs_dropped": res.MediaJobsDropped,
				})
			}

			fmt.Fprintf(os.Stdout, "Synced %d messages.\n", res.MessagesStored)
			if res.MediaJobsDropped > 0 {
				fmt.Fprintf(os.Stdout, "Dropped %d media jobs (queue overflow).\n", res.MediaJobsDropped)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&follow, "follow", false, "run indefinitely, reconnecting on disconnect")
	cmd.Flags().BoolVar(&once, "once", false, "run a single bootstrap pass, then exit after going idle")
	cmd.Flags().BoolVar(&downloadMedia, "download-media", false, "download media referenced by synced messages")
	cmd.Flags().BoolVar(&refreshContacts, "refresh-contacts", false, "bulk-refresh the local contact mirror on connect")
	cmd.Flags().BoolVar(&refreshGroups, "refresh-groups", false, "bulk-refresh joined groups and rosters on connect")
	cmd.Flags().IntVar(&idleExit, "idle-exit", 30, "seconds of inactivity before exiting (bootstrap/once modes)")
	return cmd
}

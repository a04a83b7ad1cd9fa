package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/wacli/wacli/internal/lock"
	"github.com/wacli/wacli/internal/out"
	"golang.org/x/term"
)

func newDoctorCmd(flags *rootFlags) *cobra.Command {
	var connect bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Report store, lock, and authentication health",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, false, true)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			lockHeld, lockInfo := lock.Probe(a.StoreDir())

			if err := a.OpenWA(); err != nil {
				return err
			}
			authenticated := a.WA().IsAuthed()

			connected := false
			if connect && authenticated {
				if err := a.Connect(ctx, false, nil); err == nil {
					connected = a.WA().IsConnected()
				}
			}

			result := struct {
				StoreDir      string `json:"store_dir"`
				LockHeld      bool   `json:"lock_held"`
				LockInfo      string `json:"lock_info,omitempty"`
				Authenticated bool   `json:"authenticated"`
				Connected     bool   `json:"connected"`
				FTSEnabled    bool   `json:"fts_enabled"`
			}{
				StoreDir:      a.StoreDir(),
				LockHeld:      lockHeld,
				LockInfo:      lockInfo,
				Authenticated: authenticated,
				Connected:     connected,
				FTSEnabled:    a.DB().HasFTS(),
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, result)
			}

			colorize := isatty.IsTerminal(os.Stdout.Fd()) && term.IsTerminal(int(os.Stdout.Fd()))
			w := tabwriter.NewWriter(colorable.NewColorableStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Store dir\t%s\n", result.StoreDir)
			fmt.Fprintf(w, "Lock held\t%s\n", yesNo(result.LockHeld, colorize))
			if result.LockInfo != "" {
				fmt.Fprintf(w, "Lock holder\t%s\n", humanizeLockInfo(result.LockInfo))
			}
			fmt.Fprintf(w, "Authenticated\t%s\n", yesNo(result.Authenticated, colorize))
			fmt.Fprintf(w, "Connected\t%s\n", yesNo(result.Connected, colorize))
			fmt.Fprintf(w, "FTS enabled\t%s\n", yesNo(result.FTSEnabled, colorize))
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&connect, "connect", false, "attempt a live connection as part of the check")
	return cmd
}

func yesNo(b bool, colorize bool) string {
	if !colorize {
		if b {
			return "yes"
		}
		return "no"
	}
	if b {
		return "\033[32myes\033[0m"
	}
	return "\033[31mno\033[0m"
}

// humanizeLockInfo appends a human-readable age to the lock file's
// "acquired_at=<RFC3339>" owner hint, when present.
func humanizeLockInfo(hint string) string {
	const marker = "acquired_at="
	idx := strings.Index(hint, marker)
	if idx < 0 {
		return hint
	}
	ts := hint[idx+len(marker):]
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return hint
	}
	return fmt.Sprintf("%s (%s)", hint, humanize.Time(t))
}

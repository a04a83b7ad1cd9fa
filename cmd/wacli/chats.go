package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/wacli/wacli/internal/errs"
	"github.com/wacli/wacli/internal/out"
)

func newChatsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List chats (DMs, groups, broadcast lists) from the local store",
	}
	cmd.AddCommand(newChatsListCmd(flags))
	cmd.AddCommand(newChatsShowCmd(flags))
	return cmd
}

func newChatsListCmd(flags *rootFlags) *cobra.Command {
	var query string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List chats, most recently active first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, false, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			chats, err := a.DB().ListChats(query, limit)
			if err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, chats)
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JID\tKIND\tNAME\tLAST ACTIVITY")
			for _, c := range chats {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					truncate(c.JID, 28),
					c.Kind,
					truncate(c.Name, 30),
					formatLastActivity(c.LastMessageTS),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "filter by name or JID substring")
	cmd.Flags().IntVar(&limit, "limit", 50, "limit results")
	return cmd
}

func newChatsShowCmd(flags *rootFlags) *cobra.Command {
	var jid string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a single chat's stored metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jid == "" {
				return errs.New(errs.InvalidArgument, "--jid is required")
			}

			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, false, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			chat, err := a.DB().GetChat(jid)
			if err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, chat)
			}

			fmt.Fprintf(os.Stdout, "JID:           %s\n", chat.JID)
			fmt.Fprintf(os.Stdout, "Kind:          %s\n", chat.Kind)
			fmt.Fprintf(os.Stdout, "Name:          %s\n", chat.Name)
			fmt.Fprintf(os.Stdout, "Last activity: %s\n", formatLastActivity(chat.LastMessageTS))
			return nil
		},
	}

	cmd.Flags().StringVar(&jid, "jid", "", "chat JID")
	return cmd
}

func formatLastActivity(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format(time.RFC3339)
}

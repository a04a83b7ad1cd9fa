package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/wacli/wacli/internal/app"
	"github.com/wacli/wacli/internal/errs"
	"github.com/wacli/wacli/internal/out"
)

func newContactsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "List and manage local contacts",
	}
	cmd.AddCommand(newContactsListCmd(flags))
	cmd.AddCommand(newContactsShowCmd(flags))
	cmd.AddCommand(newContactsRefreshCmd(flags))
	cmd.AddCommand(newContactsAliasCmd(flags))
	cmd.AddCommand(newContactsTagsCmd(flags))
	return cmd
}

func newContactsListCmd(flags *rootFlags) *cobra.Command {
	var query string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Search contacts by name, alias, phone, or JID",
		RunE: func(cmd *cobra.Command, args []string) error {
			if query == "" {
				return errs.New(errs.InvalidArgument, "--query is required")
			}

			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, false, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			contacts, err := a.DB().SearchContacts(query, limit)
			if err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, contacts)
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JID\tNAME\tALIAS\tPHONE\tTAGS")
			for _, c := range contacts {
				tags, _ := a.DB().ListTags(c.JID)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					truncate(c.JID, 28),
					truncate(c.Name, 24),
					truncate(c.Alias, 18),
					truncate(c.Phone, 16),
					truncate(strings.Join(tags, ","), 24),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "search term")
	cmd.Flags().IntVar(&limit, "limit", 50, "limit results")
	return cmd
}

func newContactsShowCmd(flags *rootFlags) *cobra.Command {
	var jid string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a single contact's stored metadata",
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

			c, err := a.DB().GetContact(jid)
			if err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, c)
			}

			fmt.Fprintf(os.Stdout, "JID:         %s\n", c.JID)
			fmt.Fprintf(os.Stdout, "Name:        %s\n", c.Name)
			fmt.Fprintf(os.Stdout, "Alias:       %s\n", c.Alias)
			fmt.Fprintf(os.Stdout, "Phone:       %s\n", c.Phone)
			fmt.Fprintf(os.Stdout, "Tags:        %s\n", strings.Join(c.Tags, ", "))
			fmt.Fprintf(os.Stdout, "Updated:     %s\n", formatLastActivity(c.UpdatedAt))
			return nil
		},
	}

	cmd.Flags().StringVar(&jid, "jid", "", "contact JID")
	return cmd
}

func newContactsRefreshCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the local contact book from the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, true, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			if err := a.EnsureAuthed(); err != nil {
				return err
			}
			if err := a.Connect(ctx, false, nil); err != nil {
				return err
			}

			res, err := a.Sync(ctx, app.SyncOptions{
				Mode:            app.SyncModeOnce,
				RefreshContacts: true,
				IdleExit:        5 * time.Second,
			})
			if err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, map[string]any{"messages_stored": res.MessagesStored})
			}
			fmt.Fprintln(os.Stdout, "Contacts refreshed.")
			return nil
		},
	}
	return cmd
}

func newContactsAliasCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Set or clear a contact's alias",
	}
	cmd.AddCommand(newContactsAliasSetCmd(flags))
	cmd.AddCommand(newContactsAliasRmCmd(flags))
	return cmd
}

func newContactsAliasSetCmd(flags *rootFlags) *cobra.Command {
	var jid string
	var alias string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set a contact's alias",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jid == "" {
				return errs.New(errs.InvalidArgument, "--jid is required")
			}

			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, true, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			if err := a.DB().SetAlias(jid, alias); err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, map[string]any{"jid": jid, "alias": alias})
			}
			fmt.Fprintln(os.Stdout, "OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&jid, "jid", "", "contact JID")
	cmd.Flags().StringVar(&alias, "alias", "", "alias to set")
	return cmd
}

func newContactsAliasRmCmd(flags *rootFlags) *cobra.Command {
	var jid string

	cmd := &cobra.Command{
		Use:   "rm",
		Short: "Clear a contact's alias",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jid == "" {
				return errs.New(errs.InvalidArgument, "--jid is required")
			}

			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, true, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			if err := a.DB().RemoveAlias(jid); err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, map[string]any{"jid": jid, "removed": true})
			}
			fmt.Fprintln(os.Stdout, "OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&jid, "jid", "", "contact JID")
	return cmd
}

func newContactsTagsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Add or remove tags on a contact",
	}
	cmd.AddCommand(newContactsTagsAddCmd(flags))
	cmd.AddCommand(newContactsTagsRmCmd(flags))
	return cmd
}

func newContactsTagsAddCmd(flags *rootFlags) *cobra.Command {
	var jid string
	var tag string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a tag to a contact",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jid == "" || tag == "" {
				return errs.New(errs.InvalidArgument, "--jid and --tag are required")
			}

			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, true, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			if err := a.DB().AddTag(jid, tag); err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, map[string]any{"jid": jid, "tag": tag})
			}
			fmt.Fprintln(os.Stdout, "OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&jid, "jid", "", "contact JID")
	cmd.Flags().StringVar(&tag, "tag", "", "tag")
	return cmd
}

func newContactsTagsRmCmd(flags *rootFlags) *cobra.Command {
	var jid string
	var tag string

	cmd := &cobra.Command{
		Use:   "rm",
		Short: "Remove a tag from a contact",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jid == "" || tag == "" {
				return errs.New(errs.InvalidArgument, "--jid and --tag are required")
			}

			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, true, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			if err := a.DB().RemoveTag(jid, tag); err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, map[string]any{"jid": jid, "tag": tag, "removed": true})
			}
			fmt.Fprintln(os.Stdout, "OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&jid, "jid", "", "contact JID")
	cmd.Flags().StringVar(&tag, "tag", "", "tag")
	return cmd
}

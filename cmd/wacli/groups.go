package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/wacli/wacli/internal/app"
	"github.com/wacli/wacli/internal/errs"
	"github.com/wacli/wacli/internal/out"
	"github.com/wacli/wacli/internal/wa"
	"go.mau.fi/whatsmeow/types"
)

func newGroupsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List and manage joined groups",
	}
	cmd.AddCommand(newGroupsListCmd(flags))
	cmd.AddCommand(newGroupsRefreshCmd(flags))
	cmd.AddCommand(newGroupsInfoCmd(flags))
	cmd.AddCommand(newGroupsRenameCmd(flags))
	cmd.AddCommand(newGroupsLeaveCmd(flags))
	cmd.AddCommand(newGroupsParticipantsCmd(flags))
	cmd.AddCommand(newGroupsInviteCmd(flags))
	cmd.AddCommand(newGroupsJoinCmd(flags))
	return cmd
}

func newGroupsListCmd(flags *rootFlags) *cobra.Command {
	var query string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List groups from the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, false, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			groups, err := a.DB().ListGroups(query, limit)
			if err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, groups)
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JID\tNAME\tOWNER\tCREATED")
			for _, g := range groups {
				created := "-"
				if !g.CreatedAt.IsZero() {
					created = g.CreatedAt.Local().Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", truncate(g.JID, 28), truncate(g.Name, 30), truncate(g.OwnerJID, 24), created)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "filter by name or JID substring")
	cmd.Flags().IntVar(&limit, "limit", 50, "limit results")
	return cmd
}

func newGroupsRefreshCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh joined groups and their rosters from the server",
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
				Mode:          app.SyncModeOnce,
				RefreshGroups: true,
				IdleExit:      5 * time.Second,
			})
			if err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, map[string]any{"messages_stored": res.MessagesStored})
			}
			fmt.Fprintln(os.Stdout, "Groups refreshed.")
			return nil
		},
	}
}

func newGroupsInfoCmd(flags *rootFlags) *cobra.Command {
	var jid string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show a group and its participant roster",
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

			groups, err := a.DB().ListGroups(jid, 1)
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				return fmt.Errorf("group not found: %s", jid)
			}
			g := groups[0]

			participants, err := a.DB().ListGroupParticipants(jid)
			if err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, map[string]any{
					"group":        g,
					"participants": participants,
				})
			}

			fmt.Fprintf(os.Stdout, "Group: %s\nJID: %s\nOwner: %s\n\n", g.Name, g.JID, g.OwnerJID)
			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tROLE")
			for _, p := range participants {
				fmt.Fprintf(w, "%s\t%s\n", truncate(p.UserJID, 28), p.Role)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&jid, "jid", "", "group JID")
	return cmd
}

func newGroupsRenameCmd(flags *rootFlags) *cobra.Command {
	var jid string
	var name string

	cmd := &cobra.Command{
		Use:   "rename",
		Short: "Rename a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jid == "" || name == "" {
				return errs.New(errs.InvalidArgument, "--jid and --name are required")
			}

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

			groupJID, err := parseGroupJID(jid)
			if err != nil {
				return err
			}
			if err := a.WA().SetGroupName(ctx, groupJID, name); err != nil {
				return err
			}
			_ = a.DB().UpsertGroup(jid, name, "", time.Time{})

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, map[string]any{"jid": jid, "name": name})
			}
			fmt.Fprintln(os.Stdout, "OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&jid, "jid", "", "group JID")
	cmd.Flags().StringVar(&name, "name", "", "new group name")
	return cmd
}

func newGroupsLeaveCmd(flags *rootFlags) *cobra.Command {
	var jid string

	cmd := &cobra.Command{
		Use:   "leave",
		Short: "Leave a group",
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

			if err := a.EnsureAuthed(); err != nil {
				return err
			}
			if err := a.Connect(ctx, false, nil); err != nil {
				return err
			}

			groupJID, err := parseGroupJID(jid)
			if err != nil {
				return err
			}
			if err := a.WA().LeaveGroup(ctx, groupJID); err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, map[string]any{"jid": jid, "left": true})
			}
			fmt.Fprintln(os.Stdout, "Left group.")
			return nil
		},
	}

	cmd.Flags().StringVar(&jid, "jid", "", "group JID")
	return cmd
}

func newGroupsParticipantsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participants",
		Short: "Add, remove, promote, or demote group participants",
	}
	for _, action := range []wa.GroupParticipantAction{
		wa.GroupParticipantAdd, wa.GroupParticipantRemove, wa.GroupParticipantPromote, wa.GroupParticipantDemote,
	} {
		cmd.AddCommand(newGroupsParticipantsActionCmd(flags, action))
	}
	return cmd
}

func newGroupsParticipantsActionCmd(flags *rootFlags, action wa.GroupParticipantAction) *cobra.Command {
	var jid string
	var users []string

	cmd := &cobra.Command{
		Use:   string(action),
		Short: fmt.Sprintf("%s participants in a group", action),
		RunE: func(cmd *cobra.Command, args []string) error {
			if jid == "" || len(users) == 0 {
				return errs.New(errs.InvalidArgument, "--jid and at least one --user are required")
			}

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

			groupJID, err := parseGroupJID(jid)
			if err != nil {
				return err
			}
			userJIDs := make([]types.JID, 0, len(users))
			for _, u := range users {
				uj, err := wa.ParseUserOrJID(u)
				if err != nil {
					return err
				}
				userJIDs = append(userJIDs, uj)
			}

			result, err := a.WA().UpdateGroupParticipants(ctx, groupJID, userJIDs, action)
			if err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, result)
			}
			fmt.Fprintf(os.Stdout, "Updated %d participants.\n", len(result))
			return nil
		},
	}

	cmd.Flags().StringVar(&jid, "jid", "", "group JID")
	cmd.Flags().StringArrayVar(&users, "user", nil, "participant JID or phone number (repeatable)")
	return cmd
}

func newGroupsInviteCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Get or revoke a group's invite link",
	}
	cmd.AddCommand(newGroupsInviteLinkCmd(flags))
	return cmd
}

func newGroupsInviteLinkCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Get or revoke a group's invite link",
	}
	cmd.AddCommand(newGroupsInviteLinkActionCmd(flags, "get", false))
	cmd.AddCommand(newGroupsInviteLinkActionCmd(flags, "revoke", true))
	return cmd
}

func newGroupsInviteLinkActionCmd(flags *rootFlags, use string, reset bool) *cobra.Command {
	var jid string

	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("%s the group's invite link", use),
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

			if err := a.EnsureAuthed(); err != nil {
				return err
			}
			if err := a.Connect(ctx, false, nil); err != nil {
				return err
			}

			groupJID, err := parseGroupJID(jid)
			if err != nil {
				return err
			}
			link, err := a.WA().GetGroupInviteLink(ctx, groupJID, reset)
			if err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, map[string]any{"jid": jid, "link": link})
			}
			fmt.Fprintln(os.Stdout, link)
			return nil
		},
	}

	cmd.Flags().StringVar(&jid, "jid", "", "group JID")
	return cmd
}

func newGroupsJoinCmd(flags *rootFlags) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a group via its invite code",
		RunE: func(cmd *cobra.Command, args []string) error {
			if code == "" {
				return errs.New(errs.InvalidArgument, "--code is required")
			}

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

			groupJID, err := a.WA().JoinGroupWithLink(ctx, code)
			if err != nil {
				return err
			}

			if flags.asJSON {
				return out.WriteJSON(os.Stdout, map[string]any{"jid": groupJID.String()})
			}
			fmt.Fprintf(os.Stdout, "Joined %s.\n", groupJID.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "invite code (from the invite link)")
	return cmd
}

func parseGroupJID(s string) (types.JID, error) {
	jid, err := wa.ParseUserOrJID(s)
	if err != nil {
		return types.JID{}, err
	}
	if jid.Server != types.GroupServer {
		jid.Server = types.GroupServer
	}
	return jid, nil
}

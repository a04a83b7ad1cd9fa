package main

import (
	"testing"

	"github.com/wacli/wacli/internal/wa"
)

func TestGroupsInfoCmd_RequiresJID(t *testing.T) {
	cmd := newGroupsInfoCmd(&rootFlags{})
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error when --jid is missing")
	}
}

func TestGroupsRenameCmd_RequiresJIDAndName(t *testing.T) {
	cmd := newGroupsRenameCmd(&rootFlags{})
	cmd.SetArgs([]string{"--jid", "1111@g.us"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error when --name is missing")
	}
}

func TestGroupsLeaveCmd_RequiresJID(t *testing.T) {
	cmd := newGroupsLeaveCmd(&rootFlags{})
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error when --jid is missing")
	}
}

func TestGroupsParticipantsActionCmd_RequiresJIDAndUser(t *testing.T) {
	cmd := newGroupsParticipantsActionCmd(&rootFlags{}, wa.GroupParticipantAdd)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error when --jid and --user are missing")
	}
}

func TestGroupsInviteLinkActionCmd_RequiresJID(t *testing.T) {
	cmd := newGroupsInviteLinkActionCmd(&rootFlags{}, "get", false)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error when --jid is missing")
	}
}

func TestGroupsJoinCmd_RequiresCode(t *testing.T) {
	cmd := newGroupsJoinCmd(&rootFlags{})
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error when --code is missing")
	}
}

func TestGroupsListCmd_JSON(t *testing.T) {
	dir := newTestStoreDir(t)
	flags := &rootFlags{storeDir: dir, asJSON: true}
	cmd := newGroupsListCmd(flags)
	cmd.SetArgs([]string{})

	out, err := captureStdout(t, func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("groups list: %v", err)
	}
	if out != "null\n" && out != "[]\n" {
		t.Errorf("unexpected output for an empty group list: %q", out)
	}
}

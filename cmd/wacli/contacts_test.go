package main

import (
	"encoding/json"
	"testing"

	"github.com/wacli/wacli/internal/store"
)

func seedContact(t *testing.T, dir, jid, phone, pushName string) {
	t.Helper()
	db, err := store.Open(dir + "/wacli.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()
	if err := db.UpsertContact(jid, phone, pushName, "", "", ""); err != nil {
		t.Fatalf("seed contact: %v", err)
	}
}

func TestContactsListCmd_RequiresQuery(t *testing.T) {
	cmd := newContactsListCmd(&rootFlags{})
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error when --query is missing")
	}
}

func TestContactsShowCmd_RequiresJID(t *testing.T) {
	cmd := newContactsShowCmd(&rootFlags{})
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error when --jid is missing")
	}
}

func TestContactsShowCmd_JSON(t *testing.T) {
	dir := newTestStoreDir(t)
	seedContact(t, dir, "1111@s.whatsapp.net", "1111", "Alice")

	flags := &rootFlags{storeDir: dir, asJSON: true}
	cmd := newContactsShowCmd(flags)
	cmd.SetArgs([]string{"--jid", "1111@s.whatsapp.net"})

	out, err := captureStdout(t, func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("contacts show: %v", err)
	}

	var c store.Contact
	if err := json.Unmarshal([]byte(out), &c); err != nil {
		t.Fatalf("decode JSON %q: %v", out, err)
	}
	if c.Name != "Alice" {
		t.Errorf("name = %q, want Alice", c.Name)
	}
}

func TestContactsAliasSetAndRmCmd_RequireJID(t *testing.T) {
	setCmd := newContactsAliasSetCmd(&rootFlags{})
	setCmd.SetArgs([]string{})
	if err := setCmd.Execute(); err == nil {
		t.Fatal("expected an error from 'alias set' when --jid is missing")
	}
	rmCmd := newContactsAliasRmCmd(&rootFlags{})
	rmCmd.SetArgs([]string{})
	if err := rmCmd.Execute(); err == nil {
		t.Fatal("expected an error from 'alias rm' when --jid is missing")
	}
}

func TestContactsAliasSetThenRm(t *testing.T) {
	dir := newTestStoreDir(t)
	seedContact(t, dir, "1111@s.whatsapp.net", "1111", "Alice")
	flags := &rootFlags{storeDir: dir, asJSON: true}

	setCmd := newContactsAliasSetCmd(flags)
	setCmd.SetArgs([]string{"--jid", "1111@s.whatsapp.net", "--alias", "Ally"})
	if _, err := captureStdout(t, func() error { return setCmd.Execute() }); err != nil {
		t.Fatalf("alias set: %v", err)
	}

	db, err := store.Open(dir + "/wacli.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	c, err := db.GetContact("1111@s.whatsapp.net")
	db.Close()
	if err != nil {
		t.Fatalf("get contact: %v", err)
	}
	if c.Alias != "Ally" {
		t.Fatalf("alias = %q, want Ally", c.Alias)
	}

	rmCmd := newContactsAliasRmCmd(flags)
	rmCmd.SetArgs([]string{"--jid", "1111@s.whatsapp.net"})
	if _, err := captureStdout(t, func() error { return rmCmd.Execute() }); err != nil {
		t.Fatalf("alias rm: %v", err)
	}

	db, err = store.Open(dir + "/wacli.db")
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	c, err = db.GetContact("1111@s.whatsapp.net")
	db.Close()
	if err != nil {
		t.Fatalf("get contact after rm: %v", err)
	}
	if c.Alias != "" {
		t.Fatalf("alias = %q after rm, want empty", c.Alias)
	}
}

func TestContactsTagsAddAndRmCmd_RequireJIDAndTag(t *testing.T) {
	addCmd := newContactsTagsAddCmd(&rootFlags{})
	addCmd.SetArgs([]string{})
	if err := addCmd.Execute(); err == nil {
		t.Fatal("expected an error from 'tags add' when --jid/--tag are missing")
	}
	rmCmd := newContactsTagsRmCmd(&rootFlags{})
	rmCmd.SetArgs([]string{})
	if err := rmCmd.Execute(); err == nil {
		t.Fatal("expected an error from 'tags rm' when --jid/--tag are missing")
	}
}

func TestContactsTagsAddThenRm(t *testing.T) {
	dir := newTestStoreDir(t)
	seedContact(t, dir, "1111@s.whatsapp.net", "1111", "Alice")
	flags := &rootFlags{storeDir: dir, asJSON: true}

	addCmd := newContactsTagsAddCmd(flags)
	addCmd.SetArgs([]string{"--jid", "1111@s.whatsapp.net", "--tag", "vip"})
	if _, err := captureStdout(t, func() error { return addCmd.Execute() }); err != nil {
		t.Fatalf("tags add: %v", err)
	}

	db, err := store.Open(dir + "/wacli.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	tags, err := db.ListTags("1111@s.whatsapp.net")
	db.Close()
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "vip" {
		t.Fatalf("tags = %v, want [vip]", tags)
	}

	rmCmd := newContactsTagsRmCmd(flags)
	rmCmd.SetArgs([]string{"--jid", "1111@s.whatsapp.net", "--tag", "vip"})
	if _, err := captureStdout(t, func() error { return rmCmd.Execute() }); err != nil {
		t.Fatalf("tags rm: %v", err)
	}

	db, err = store.Open(dir + "/wacli.db")
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	tags, err = db.ListTags("1111@s.whatsapp.net")
	db.Close()
	if err != nil {
		t.Fatalf("list tags after rm: %v", err)
	}
	if len(tags) != 0 {
		t.Fatalf("tags = %v after rm, want empty", tags)
	}
}

package main

import "testing"

func TestSyncCmd_Flags(t *testing.T) {
	cmd := newSyncCmd(&rootFlags{})

	for _, name := range []string{"follow", "once", "download-media", "refresh-contacts", "refresh-groups", "idle-exit"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected a --%s flag", name)
		}
	}

	idleExit := cmd.Flags().Lookup("idle-exit")
	if idleExit.DefValue != "30" {
		t.Errorf("--idle-exit default = %s, want 30", idleExit.DefValue)
	}
}

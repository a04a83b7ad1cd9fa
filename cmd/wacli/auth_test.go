package main

import "testing"

func TestAuthCmd_Flags(t *testing.T) {
	cmd := newAuthCmd(&rootFlags{})

	qrFile := cmd.Flags().Lookup("qr-file")
	if qrFile == nil {
		t.Fatal("expected a --qr-file flag")
	}
	if qrFile.DefValue != "" {
		t.Errorf("--qr-file default = %q, want empty", qrFile.DefValue)
	}

	logout := cmd.Flags().Lookup("logout")
	if logout == nil {
		t.Fatal("expected a --logout flag")
	}
	if logout.DefValue != "false" {
		t.Errorf("--logout default = %s, want false", logout.DefValue)
	}
}

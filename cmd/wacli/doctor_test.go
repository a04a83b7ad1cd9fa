package main

import (
	"encoding/json"
	"testing"
)

func TestDoctorCmd_JSONReportsFreshStore(t *testing.T) {
	dir := newTestStoreDir(t)
	flags := &rootFlags{storeDir: dir, asJSON: true}

	cmd := newDoctorCmd(flags)
	cmd.SetArgs([]string{})

	out, err := captureStdout(t, func() error { return cmd.Execute() })
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode JSON %q: %v", out, err)
	}
	if result["store_dir"] != dir {
		t.Errorf("store_dir = %v, want %s", result["store_dir"], dir)
	}
	if result["lock_held"] != false {
		t.Errorf("lock_held = %v, want false on a fresh store", result["lock_held"])
	}
	if result["authenticated"] != false {
		t.Errorf("authenticated = %v, want false on a fresh store", result["authenticated"])
	}
}

func TestDoctorCmd_ConnectFlagDefaultsOff(t *testing.T) {
	cmd := newDoctorCmd(&rootFlags{})
	f := cmd.Flags().Lookup("connect")
	if f == nil {
		t.Fatal("expected a --connect flag")
	}
	if f.DefValue != "false" {
		t.Errorf("--connect default = %s, want false", f.DefValue)
	}
}

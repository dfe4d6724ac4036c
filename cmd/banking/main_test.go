package main

import (
	"errors"
	"testing"

	"github.com/spf13/pflag"
)

func TestParseFlags(t *testing.T) {
	f, err := parseFlags([]string{"--env-file", "a.env", "--env-file=b.env", "--migrate-only"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(f.envFiles) != 2 || f.envFiles[0] != "a.env" || f.envFiles[1] != "b.env" || !f.migrateOnly {
		t.Fatalf("unexpected flags %+v", f)
	}

	f, err = parseFlags(nil)
	if err != nil || len(f.envFiles) != 0 || f.migrateOnly {
		t.Fatalf("unexpected defaults %+v %v", f, err)
	}

	if _, err := parseFlags([]string{"serve"}); err == nil {
		t.Fatal("expected error for positional argument")
	}
	if _, err := parseFlags([]string{"--help"}); !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
}

package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProbeCommand_Run(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		var buf bytes.Buffer
		cmd := NewProbeCommand()
		cmd.Stdout = &buf
		if err := cmd.Run(context.Background(), []string{"gini"}); err != nil {
			t.Fatal(err)
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("unexpected output: %q", buf.String())
		} else if got, want := lines[0], "gini: bv uf quantifiers models cores interpolants stacks"; got != want {
			t.Fatalf("unexpected capabilities: %q", got)
		} else if !strings.HasPrefix(lines[1], "gini: ok (") {
			t.Fatalf("unexpected result: %q", lines[1])
		}
	})

	t.Run("Config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "smt.yaml")
		if err := os.WriteFile(path, []byte("timeout: 10s\n"), 0666); err != nil {
			t.Fatal(err)
		}

		var buf bytes.Buffer
		cmd := NewProbeCommand()
		cmd.Stdout = &buf
		if err := cmd.Run(context.Background(), []string{"-config", path, "gini"}); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("ErrUnknownBackend", func(t *testing.T) {
		cmd := NewProbeCommand()
		cmd.Stdout = &bytes.Buffer{}
		if err := cmd.Run(context.Background(), []string{"cvc5"}); err == nil || err.Error() != "unknown backend: cvc5" {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestRun_UnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"generate"}); err == nil || err.Error() != "smt generate: unknown command" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRun_Help(t *testing.T) {
	t.Run("Command", func(t *testing.T) {
		if err := run(context.Background(), []string{"help", "probe"}); err != flag.ErrHelp {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ErrUnknownCommand", func(t *testing.T) {
		if err := run(context.Background(), []string{"help", "generate"}); err == nil || err.Error() != "smt help generate: unknown command" {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

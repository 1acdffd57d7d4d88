package smt_test

import (
	"bytes"
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/benbjohnson/smt"
	"github.com/benbjohnson/smt/gini"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestParseConfig(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		config, err := smt.ParseConfig([]byte(`
verbose: true
timeout: 1m30s
random_seed: 42
options:
  smt.arith.solver: "2"
  proof: "false"
`))
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(smt.Config{
			Verbose:    true,
			Timeout:    90 * time.Second,
			RandomSeed: 42,
			Options:    map[string]string{"smt.arith.solver": "2", "proof": "false"},
		}, config); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if config, err := smt.ParseConfig(nil); err != nil {
			t.Fatal(err)
		} else if config.Options == nil {
			t.Fatal("expected options map")
		} else if config.Timeout != 0 {
			t.Fatalf("unexpected timeout: %s", config.Timeout)
		}
	})

	t.Run("ErrNegativeTimeout", func(t *testing.T) {
		if _, err := smt.ParseConfig([]byte("timeout: -1s\n")); err == nil || err.Error() != "parse config: negative timeout: -1s" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ErrSyntax", func(t *testing.T) {
		if _, err := smt.ParseConfig([]byte("timeout: [")); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestConfig_Log(t *testing.T) {
	t.Run("Discard", func(t *testing.T) {
		config := smt.NewConfig()
		if w := config.Log().Writer(); w != io.Discard {
			t.Fatalf("unexpected writer: %T", w)
		}
	})

	// Solver and prover lifecycle events are written to the configured logger.
	t.Run("Logger", func(t *testing.T) {
		var buf bytes.Buffer
		config := smt.NewConfig()
		config.Logger = log.New(&buf, "", 0)
		config.Options["unknown"] = "1"

		s := gini.NewSolver(config)
		p, err := s.NewProver(smt.ProverOptions{})
		if err != nil {
			t.Fatal(err)
		} else if err := s.Close(); err != nil {
			t.Fatal(err)
		}

		for _, want := range []string{
			"[solver] open: backend=gini\n",
			"[gini] ignoring option: unknown=1\n",
			"[prover " + p.ID() + "] open: models=false core=false interpolants=false\n",
			"[prover " + p.ID() + "] close\n",
			"[solver] close: backend=gini\n",
		} {
			if !bytes.Contains(buf.Bytes(), []byte(want)) {
				t.Fatalf("missing log line %q in:\n%s", want, buf.String())
			}
		}
	})
}

// A configured timeout interrupts checks which would not finish in time.
func TestConfig_Timeout(t *testing.T) {
	config := smt.NewConfig()
	config.Timeout = time.Nanosecond
	s := gini.NewSolver(config)
	defer s.Close()

	p := MustNewProver(t, s, smt.ProverOptions{})
	bv := s.Bitvectors()
	x, y := MustBV(bv.MakeVariable(32, "x")), MustBV(bv.MakeVariable(32, "y"))
	MustAdd(t, p, MustBool(bv.Equal(MustBV(bv.Multiply(x, y)), MustBV(bv.MakeInt64(32, 1000003)))))

	if _, err := p.IsUnsat(context.Background()); !errors.Is(err, smt.ErrInterrupted) {
		t.Fatalf("unexpected error: %v", err)
	}
}

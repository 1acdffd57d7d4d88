package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/smt"
	"github.com/benbjohnson/smt/gini"
	"github.com/benbjohnson/smt/z3"
	"github.com/pkg/errors"
)

// backends maps a backend name to its constructor.
var backends = map[string]func(smt.Config) (*smt.Solver, error){
	"gini": func(config smt.Config) (*smt.Solver, error) { return gini.NewSolver(config), nil },
	"z3":   z3.NewSolver,
}

// ProbeCommand represents a command for checking solver backends.
type ProbeCommand struct {
	Stdout io.Writer
}

// NewProbeCommand returns a new instance of ProbeCommand.
func NewProbeCommand() *ProbeCommand {
	return &ProbeCommand{Stdout: os.Stdout}
}

// Run executes the "probe" subcommand.
func (cmd *ProbeCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("smt-probe", flag.ContinueOnError)
	verbose := fs.Bool("v", false, "verbose")
	configPath := fs.String("config", "", "config path")
	timeout := fs.Duration("timeout", 0, "timeout per check")
	fs.Usage = cmd.usage
	if err := fs.Parse(args); err != nil {
		return err
	}

	config := smt.NewConfig()
	if *configPath != "" {
		buf, err := os.ReadFile(*configPath)
		if err != nil {
			return err
		} else if config, err = smt.ParseConfig(buf); err != nil {
			return err
		}
	}
	if *verbose {
		config.Verbose = true
	}
	if *timeout > 0 {
		config.Timeout = *timeout
	}
	config.Logger = config.Log()

	names := fs.Args()
	if len(names) == 0 {
		for name := range backends {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	for _, name := range names {
		newSolver, ok := backends[name]
		if !ok {
			return fmt.Errorf("unknown backend: %s", name)
		}
		if err := cmd.probe(ctx, name, newSolver, config); err != nil {
			return errors.Wrapf(err, "%s", name)
		}
	}
	return nil
}

// probe opens a solver and runs a push/pop round trip over a bitvector.
func (cmd *ProbeCommand) probe(ctx context.Context, name string, newSolver func(smt.Config) (*smt.Solver, error), config smt.Config) error {
	config.Logger.Printf("[begin] %s", name)
	defer config.Logger.Printf("[end] %s", name)

	s, err := newSolver(config)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintf(cmd.Stdout, "%s: %s\n", name, formatCapabilities(s.Capabilities()))

	bm := s.Bitvectors()
	x, err := bm.MakeVariable(8, "x")
	if err != nil {
		return err
	}
	lo, err := bm.MakeInt64(8, 10)
	if err != nil {
		return err
	}
	hi, err := bm.MakeInt64(8, 12)
	if err != nil {
		return err
	}
	gt, err := bm.GreaterThan(x, lo, false)
	if err != nil {
		return err
	}
	lt, err := bm.LessThan(x, hi, false)
	if err != nil {
		return err
	}
	eq, err := bm.Equal(x, lo)
	if err != nil {
		return err
	}
	f, err := s.Booleans().And(gt, lt)
	if err != nil {
		return err
	}

	p, err := s.NewProver(smt.ProverOptions{GenerateModels: true})
	if err != nil {
		return err
	}
	defer p.Close()

	t := time.Now()
	if _, err := p.AddConstraint(f); err != nil {
		return err
	} else if unsat, err := p.IsUnsat(ctx); err != nil {
		return err
	} else if unsat {
		return errors.Wrapf(smt.ErrSolverFailure, "unexpected unsat: %s", f)
	}

	m, err := p.Model()
	if err != nil {
		return err
	}
	v, err := m.Bitvector(x)
	if err != nil {
		return err
	} else if err := m.Close(); err != nil {
		return err
	} else if v.Int64() != 11 {
		return errors.Wrapf(smt.ErrSolverFailure, "unexpected model: x=%s", v)
	}

	if _, err := p.PushFormula(eq); err != nil {
		return err
	} else if unsat, err := p.IsUnsat(ctx); err != nil {
		return err
	} else if !unsat {
		return errors.Wrapf(smt.ErrSolverFailure, "unexpected sat: %s", eq)
	} else if err := p.Pop(); err != nil {
		return err
	}

	dump, err := s.Dump(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Stdout, "%s: ok (%s)\n", name, time.Since(t).Round(time.Microsecond))
	config.Logger.Print(dump)
	return nil
}

// formatCapabilities returns the names of the enabled capabilities.
func formatCapabilities(caps smt.Capabilities) string {
	var a []string
	for _, c := range []struct {
		name string
		ok   bool
	}{
		{"int", caps.Integers},
		{"real", caps.Rationals},
		{"bv", caps.Bitvectors},
		{"array", caps.Arrays},
		{"uf", caps.UF},
		{"quantifiers", caps.Quantifiers},
		{"sl", caps.SeparationLogic},
		{"models", caps.Models},
		{"cores", caps.UnsatCore},
		{"interpolants", caps.Interpolation},
		{"stacks", caps.MultipleStacks},
	} {
		if c.ok {
			a = append(a, c.name)
		}
	}
	return strings.Join(a, " ")
}

func (cmd *ProbeCommand) usage() {
	fmt.Fprintln(os.Stderr, `
usage: smt probe [arguments] [backend...]

Probes every backend when none is given.

Arguments:

	-config PATH
	    Read solver settings from a YAML file.
	-timeout DURATION
	    Abort a single check after DURATION.
	-v
	    Enable verbose logging.
`[1:])
}

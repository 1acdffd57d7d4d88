package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

// command is a subcommand of the smt tool.
type command struct {
	name    string
	summary string
	usage   func()
	run     func(ctx context.Context, args []string) error
}

var commands = []command{
	{
		name:    "probe",
		summary: "report capabilities and run a self-check per backend",
		usage:   NewProbeCommand().usage,
		run:     func(ctx context.Context, args []string) error { return NewProbeCommand().Run(ctx, args) },
	},
}

func main() {
	if err := run(context.Background(), os.Args[1:]); err == flag.ErrHelp {
		os.Exit(1)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var name string
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}

	switch name {
	case "", "-h", "--help":
		usage()
		return flag.ErrHelp
	case "help":
		return help(args)
	}

	cmd, ok := lookup(name)
	if !ok {
		return fmt.Errorf(`smt %s: unknown command`, name)
	}
	return cmd.run(ctx, args)
}

// help prints the usage of the named command, or the overview.
func help(args []string) error {
	if len(args) == 0 {
		usage()
		return flag.ErrHelp
	}
	cmd, ok := lookup(args[0])
	if !ok {
		return fmt.Errorf(`smt help %s: unknown command`, args[0])
	}
	cmd.usage()
	return flag.ErrHelp
}

func lookup(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func usage() {
	fmt.Fprintln(os.Stderr, `
Smt inspects the solver backends available to this build.

Usage:

	smt <command> [arguments]

The commands are:
`[1:])
	for _, cmd := range commands {
		fmt.Fprintf(os.Stderr, "\t%-11s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(os.Stderr, `
Use "smt help <command>" for more information about a command.`)
}

// Command vrctl runs named demonstration scenarios against the in-memory
// driver, printing colorized replica status transitions as they happen.
// It has no production deployment counterpart (spec §1 excludes a real
// network transport) — it exists to drive the engine end to end without
// an embedder providing one.
package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

func main() {
	var parser = flags.NewParser(nil, flags.HelpFlag|flags.PassDoubleDash)

	addCmd(parser, "run", "Run a named demonstration scenario", `
Runs one of vrctl's built-in scenarios against an in-memory replica group
and prints each replica's status as it changes.
`, &cmdRun{})

	addCmd(parser, "list", "List available scenarios", `
Prints the name and one-line description of every scenario "run" accepts.
`, &cmdList{})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addCmd(to interface {
	AddCommand(string, string, string, interface{}) (*flags.Command, error)
}, name, short, long string, iface interface{}) *flags.Command {
	var cmd, err = to.AddCommand(name, short, long, iface)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to add command:", err)
		os.Exit(1)
	}
	return cmd
}

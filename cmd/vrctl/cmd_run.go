package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

type cmdRun struct {
	Args struct {
		Scenario string `positional-arg-name:"scenario" required:"true"`
	} `positional-args:"yes"`
}

func (cmd *cmdRun) Execute(_ []string) error {
	var s, ok = findScenario(cmd.Args.Scenario)
	if !ok {
		return fmt.Errorf("no such scenario %q (see vrctl list)", cmd.Args.Scenario)
	}
	color.New(color.FgCyan, color.Bold).Fprintf(os.Stdout, "running %s: %s\n", s.name, s.describe)
	return s.run(os.Stdout)
}

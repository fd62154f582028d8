package main

import (
	"fmt"
	"os"
)

type cmdList struct{}

func (cmd *cmdList) Execute(_ []string) error {
	for _, s := range scenarios {
		fmt.Fprintf(os.Stdout, "%-32s %s\n", s.name, s.describe)
	}
	return nil
}

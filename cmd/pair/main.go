// Package main provides the entry point for the pair CLI.
package main

import (
	"fmt"
	"os"

	"github.com/pair-run/pair/cmd/pair/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

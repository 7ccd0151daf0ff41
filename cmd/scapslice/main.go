// Package main is the entry point for the scapslice command.
package main

import (
	"os"

	"github.com/gyaneshwarpardhi/scapslice/cmd/scapslice/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main is the entry point for the relayctl CLI.
// The CLI is the terminal tool for driving the cirelay controller API.
package main

import (
	"os"

	"cirelay/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main provides the entry point for the planview CLI.
package main

import (
	"os"

	"github.com/randalmurphal/planview/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

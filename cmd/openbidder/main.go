// Package main is the entry point for the openbidder CLI.
package main

import (
	"os"

	"github.com/patrickwarner/openbidder/cmd/openbidder/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

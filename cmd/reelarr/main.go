// Package main is the entry point for the reelarr application.
package main

import (
	"os"

	"github.com/jmylchreest/reelarr/cmd/reelarr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

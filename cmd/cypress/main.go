// Package main provides the cypress CLI.
package main

import (
	"os"

	"github.com/mesh-intelligence/cypress/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

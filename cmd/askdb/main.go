// Package main is the entrypoint for the askdb CLI.
package main

import (
	"os"

	"github.com/askdb-labs/askdb/internal/cli"
)

func main() {
	os.Exit(cli.New().Execute())
}

package main

import (
	"os"

	"github.com/wisetech/rras/cmd/rras/commands"
)

// main is the entry point for the RRAS CLI: go run ./cmd/rras [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

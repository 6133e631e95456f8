package main

import (
	"os"

	"github.com/expreql/expreql/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

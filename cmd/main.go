package main

import (
	"os"

	"ghostwriter/cmd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

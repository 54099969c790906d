package main

import (
	"os"

	"devicekeys/cmd/devicekeys/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

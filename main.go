package main

import (
	"os"

	"github.com/slopify/slopify/packages/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/pt-nexus/webgate/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

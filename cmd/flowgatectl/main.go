package main

import (
	"os"

	"github.com/flowgate-systems/flowgate/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

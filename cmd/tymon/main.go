package main

import (
	"os"

	"github.com/tymonhq/tymon/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

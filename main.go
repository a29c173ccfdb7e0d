package main

import (
	"os"

	"github.com/nh3bh3/cuthttp/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

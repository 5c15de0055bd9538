package main

import (
	"os"

	"github.com/rustyeddy/trendtrader/cmd/trendtrader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/unkn0wn-root/snapcache/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

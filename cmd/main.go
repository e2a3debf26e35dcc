package main

import (
	"os"

	"github.com/narratex/narratex/cmd/narratex"
)

func main() {
	if err := narratex.Execute(); err != nil {
		os.Exit(1)
	}
}

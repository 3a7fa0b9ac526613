package main

import (
	"os"

	"github.com/ephysio/kwikstore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

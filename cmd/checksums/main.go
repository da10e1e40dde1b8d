// Package main provides the entry point for the checksums CLI.
package main

import (
	"errors"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		if errors.Is(err, errUnclean) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

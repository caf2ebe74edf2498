package main

import (
	"fmt"
	"os"

	"github.com/telekom/leadform/pkg/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "leadform:", err)
		os.Exit(1)
	}
}

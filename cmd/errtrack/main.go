// Package main is the entrypoint for the errtrack CLI.
package main

import (
	"fmt"
	"os"

	"github.com/kiranshivaraju/errtrack/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/danieljhkim/hostconf/internal/cli"
)

var version = "dev"

func main() {
	cli.SetVersion(version)

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.ErrorMessage(err))
		os.Exit(cli.ExitCode(err))
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/roach88/savetray/internal/cli"
)

func main() {
	if err := mainInner(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}

func mainInner() error {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

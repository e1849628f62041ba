package main

import (
	"errors"
	"fmt"
	"os"

	"vitals_backend/core"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the command line and maps the outcome to an exit code.
func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

// exitCode is core.ExitCodeFor plus failed startup checks, which count as
// configuration errors.
func exitCode(err error) int {
	if errors.Is(err, errChecksFailed) {
		return core.ExitCodeConfig
	}
	return core.ExitCodeFor(err)
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/zendsl/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		code := cli.GetExitCode(err)
		// Errors cobra raises itself (unknown or missing flags, wrong
		// argument count, invalid --format) carry no exit code: they are
		// command errors.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			code = cli.ExitCommandError
		}
		// Traceback and parse diagnostics are already on stderr; only
		// surface errors that carry no diagnostics of their own.
		if code == cli.ExitCommandError {
			fmt.Fprintf(os.Stderr, "zendsl: %v\n", err)
		}
		os.Exit(code)
	}
}

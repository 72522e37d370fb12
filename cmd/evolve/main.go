// Command evolve compiles schema resolution grammars.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/evolve/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands report through their formatter; only print errors that
		// never reached one, such as flag parsing failures.
		if _, ok := err.(*cli.ExitError); !ok {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}

// Command rulebridge runs rule engine sessions against host objects.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/rulebridge/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

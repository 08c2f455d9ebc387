// Command chainfile reads files published as singleton-chain messages.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/chainfile/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

// Command funny-fifo runs randomized verification of asynchronous FIFO
// models. See "funny-fifo --help".
package main

import (
	"fmt"
	"os"

	"github.com/LukasVik/funny-fifo/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}

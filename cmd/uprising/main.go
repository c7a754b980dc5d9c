// Command uprising runs the civil violence simulator.
package main

import (
	"fmt"
	"os"

	"github.com/talgya/uprising/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

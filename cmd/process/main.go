// Command process is the surrogate that stands in for one simulated process.
// It is started by allocate as `process <name>` and talks to it over stdin and
// stdout.
package main

import (
	"fmt"
	"os"

	"github.com/sarchlab/procsim/worker"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: process <name>")
		os.Exit(2)
	}

	if err := worker.Serve(os.Args[1], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "process %s: %s\n", os.Args[1], err)
		os.Exit(1)
	}
}

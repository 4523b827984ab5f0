// Command allocate simulates how an operating system admits processes to
// memory and schedules them on a single CPU. Every simulated process is
// backed by a real surrogate child process.
package main

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/procsim/config"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

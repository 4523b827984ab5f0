//go:build !linux

package worker

import (
	"errors"
	"io"
	"os"
)

var errUnsupported = errors.New("workers are only supported on linux")

func pending(*os.File) (int, error) { return 0, errUnsupported }

// Serve reports that workers cannot run on this platform.
func Serve(string, *os.File, io.Writer) error { return errUnsupported }

//go:build !linux

package surrogate

import (
	"errors"
	"io"
)

var errUnsupported = errors.New("OS surrogates are only supported on linux")

type osControl struct {
	path string
	args []string
	env  []string
}

func (c *osControl) start() (io.WriteCloser, io.ReadCloser, error) {
	return nil, nil, errUnsupported
}

func (c *osControl) stop() error { return errUnsupported }
func (c *osControl) cont() error { return errUnsupported }
func (c *osControl) terminate() error { return errUnsupported }
func (c *osControl) usage() (Usage, error) { return Usage{}, errUnsupported }
func (c *osControl) reap() error { return errUnsupported }
func (c *osControl) kill() error { return errUnsupported }
func (c *osControl) pid() int { return 0 }

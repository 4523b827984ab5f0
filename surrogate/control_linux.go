//go:build linux

package surrogate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	psprocess "github.com/shirou/gopsutil/process"
	"golang.org/x/sys/unix"
)

type osControl struct {
	path string
	args []string
	env  []string

	cmd *exec.Cmd

	// reaped is set once Wait4 has collected the exit status. The pid must
	// not be signaled or waited on after that.
	reaped bool
}

func (c *osControl) start() (io.WriteCloser, io.ReadCloser, error) {
	cmd := exec.Command(c.path, c.args...)
	cmd.Args[0] = "process"
	cmd.Env = c.env
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: unix.SIGHUP}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	c.cmd = cmd

	return stdin, stdout, nil
}

func (c *osControl) pid() int {
	return c.cmd.Process.Pid
}

func (c *osControl) stop() error {
	if err := unix.Kill(c.pid(), unix.SIGTSTP); err != nil {
		return fmt.Errorf("sending SIGTSTP: %w", err)
	}

	for {
		var ws unix.WaitStatus

		_, err := unix.Wait4(c.pid(), &ws, unix.WUNTRACED, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}

		if err != nil {
			return fmt.Errorf("waiting for stop: %w", err)
		}

		if ws.Stopped() {
			return nil
		}

		if ws.Exited() || ws.Signaled() {
			c.reaped = true
			return ErrSurrogateExited
		}
	}
}

func (c *osControl) cont() error {
	if err := unix.Kill(c.pid(), unix.SIGCONT); err != nil {
		return fmt.Errorf("sending SIGCONT: %w", err)
	}

	return nil
}

func (c *osControl) terminate() error {
	if err := unix.Kill(c.pid(), unix.SIGTERM); err != nil {
		return fmt.Errorf("sending SIGTERM: %w", err)
	}

	return nil
}

func (c *osControl) usage() (Usage, error) {
	p, err := psprocess.NewProcess(int32(c.pid()))
	if err != nil {
		return Usage{}, err
	}

	times, err := p.Times()
	if err != nil {
		return Usage{}, err
	}

	mem, err := p.MemoryInfo()
	if err != nil {
		return Usage{}, err
	}

	cpu := time.Duration((times.User + times.System) * float64(time.Second))

	return Usage{CPUTime: cpu, RSS: mem.RSS}, nil
}

func (c *osControl) kill() error {
	if c.reaped {
		return nil
	}

	err := c.cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}

	return nil
}

// reap waits for the child to exit. A child ended by a signal is expected.
func (c *osControl) reap() error {
	if c.reaped {
		return c.cmd.Process.Release()
	}

	err := c.cmd.Wait()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}

	return err
}

package surrogate

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/sarchlab/procsim/timing"
)

// processControl is the OS side of a surrogate. It owns the child process
// while the handle owns the protocol spoken over the pipes.
type processControl interface {
	start() (stdin io.WriteCloser, stdout io.ReadCloser, err error)
	stop() error
	cont() error
	terminate() error
	usage() (Usage, error)
	reap() error
	kill() error
	pid() int
}

type handleState int

const (
	unspawned handleState = iota
	running
	stopped
	terminated
)

func (s handleState) String() string {
	switch s {
	case unspawned:
		return "unspawned"
	case running:
		return "running"
	case stopped:
		return "stopped"
	case terminated:
		return "terminated"
	default:
		return fmt.Sprintf("handleState(%d)", int(s))
	}
}

type handle struct {
	name   string
	ctl    processControl
	logger *zap.Logger

	state  handleState
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func newHandle(name string, ctl processControl, logger *zap.Logger) *handle {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &handle{
		name:   name,
		ctl:    ctl,
		logger: logger.With(zap.String("process", name)),
		state:  unspawned,
	}
}

func (h *handle) PID() int {
	if h.state == unspawned {
		return 0
	}

	return h.ctl.pid()
}

func (h *handle) Spawn(now timing.VTimeInCycle) error {
	if err := h.expect("spawn", unspawned); err != nil {
		return err
	}

	stdin, stdout, err := h.ctl.start()
	if err != nil {
		return fmt.Errorf("surrogate %s: spawn: %w", h.name, err)
	}

	h.stdin, h.stdout = stdin, stdout
	h.state = running

	h.logger.Debug("surrogate spawned",
		zap.Int("pid", h.ctl.pid()), zap.Uint32("time", uint32(now)))

	if err := h.sendTime("spawn", now); err != nil {
		return err
	}

	return h.awaitAck("spawn", now)
}

func (h *handle) Suspend(now timing.VTimeInCycle) error {
	if err := h.expect("suspend", running); err != nil {
		return err
	}

	if err := h.sendTime("suspend", now); err != nil {
		return err
	}

	if err := h.ctl.stop(); err != nil {
		return fmt.Errorf("surrogate %s: suspend: %w", h.name, err)
	}

	h.state = stopped
	h.logger.Debug("surrogate stopped", zap.Uint32("time", uint32(now)))

	return nil
}

func (h *handle) Resume(now timing.VTimeInCycle) error {
	if err := h.expect("resume", running, stopped); err != nil {
		return err
	}

	if err := h.sendTime("resume", now); err != nil {
		return err
	}

	if err := h.ctl.cont(); err != nil {
		return fmt.Errorf("surrogate %s: resume: %w", h.name, err)
	}

	h.state = running

	return h.awaitAck("resume", now)
}

func (h *handle) Terminate(now timing.VTimeInCycle) (Exit, error) {
	if err := h.expect("terminate", running, stopped); err != nil {
		return Exit{}, err
	}

	if err := h.sendTime("terminate", now); err != nil {
		return Exit{}, err
	}

	if err := h.closeStdin(); err != nil {
		return Exit{}, fmt.Errorf("surrogate %s: terminate: %w", h.name, err)
	}

	usage, err := h.ctl.usage()
	if err != nil {
		h.logger.Warn("cannot sample surrogate usage", zap.Error(err))
	}

	if err := h.ctl.terminate(); err != nil {
		return Exit{}, fmt.Errorf("surrogate %s: terminate: %w", h.name, err)
	}

	digest := make([]byte, DigestLength)
	n, err := io.ReadFull(h.stdout, digest)
	if err != nil {
		return Exit{}, &ProtocolError{
			Op:       "terminate",
			Received: digest[:n],
			Err:      err,
		}
	}

	h.state = terminated

	if err := h.closeStdout(); err != nil {
		return Exit{}, fmt.Errorf("surrogate %s: terminate: %w", h.name, err)
	}

	if err := h.ctl.reap(); err != nil {
		return Exit{}, fmt.Errorf("surrogate %s: reap: %w", h.name, err)
	}

	h.logger.Debug("surrogate terminated",
		zap.Uint32("time", uint32(now)),
		zap.ByteString("digest", digest),
		zap.Duration("cpu", usage.CPUTime),
		zap.Uint64("rss", usage.RSS))

	return Exit{Digest: string(digest), Usage: usage}, nil
}

func (h *handle) Abort() error {
	if h.state == unspawned || h.state == terminated {
		return nil
	}

	h.state = terminated
	h.logger.Debug("aborting surrogate")

	var errs []error
	if err := h.closeStdin(); err != nil {
		errs = append(errs, err)
	}

	if err := h.ctl.kill(); err != nil {
		errs = append(errs, err)
	}

	if err := h.closeStdout(); err != nil {
		errs = append(errs, err)
	}

	if err := h.ctl.reap(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// closeStdin closes the write side once. Later calls are no-ops.
func (h *handle) closeStdin() error {
	if h.stdin == nil {
		return nil
	}

	err := h.stdin.Close()
	h.stdin = nil

	return err
}

func (h *handle) closeStdout() error {
	if h.stdout == nil {
		return nil
	}

	err := h.stdout.Close()
	h.stdout = nil

	return err
}

func (h *handle) expect(op string, allowed ...handleState) error {
	for _, s := range allowed {
		if h.state == s {
			return nil
		}
	}

	return fmt.Errorf("surrogate %s: cannot %s when %s: %w",
		h.name, op, h.state, ErrInvalidTransition)
}

func (h *handle) sendTime(op string, now timing.VTimeInCycle) error {
	if h.stdin == nil {
		return fmt.Errorf("surrogate %s: cannot %s after input is closed: %w",
			h.name, op, ErrInvalidTransition)
	}

	b := EncodeTime(now)
	if _, err := h.stdin.Write(b[:]); err != nil {
		return fmt.Errorf("surrogate %s: %s: sending time: %w", h.name, op, err)
	}

	return nil
}

func (h *handle) awaitAck(op string, now timing.VTimeInCycle) error {
	var ack [1]byte

	sent := AckByte(now)
	if _, err := io.ReadFull(h.stdout, ack[:]); err != nil {
		return &ProtocolError{Op: op, Sent: []byte{sent}, Err: err}
	}

	if ack[0] != sent {
		return &ProtocolError{
			Op:       op,
			Sent:     []byte{sent},
			Received: ack[:],
		}
	}

	return nil
}

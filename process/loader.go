package process

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/sarchlab/procsim/timing"
)

// Load reads process records from r. Each record is
//
//	arrival-time name service-time memory-requirement
//
// separated by white space. Loading stops at the end of the input or at the
// first malformed record. The processes are returned in arrival order; ties
// keep their order in the input.
func Load(r io.Reader, logger *zap.Logger) ([]*Process, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)

	var (
		procs []*Process
		names = make(map[string]bool)
	)

	for record := 1; ; record++ {
		fields, complete := nextFields(scanner, 4)
		if !complete {
			if len(fields) > 0 {
				logger.Warn("ignoring truncated record",
					zap.Int("record", record), zap.Strings("fields", fields))
			}
			break
		}

		p, err := parseRecord(fields)
		if err != nil {
			logger.Warn("stop loading at malformed record",
				zap.Int("record", record), zap.Error(err))
			break
		}

		if names[p.Name] {
			return nil, fmt.Errorf("record %d: duplicated process name %q",
				record, p.Name)
		}
		names[p.Name] = true

		logger.Debug("process loaded", zap.Stringer("process", p))
		procs = append(procs, p)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading processes: %w", err)
	}

	slices.SortStableFunc(procs, func(a, b *Process) int {
		return cmp.Compare(a.ArrivalTime, b.ArrivalTime)
	})

	return procs, nil
}

func nextFields(scanner *bufio.Scanner, n int) ([]string, bool) {
	fields := make([]string, 0, n)
	for len(fields) < n && scanner.Scan() {
		fields = append(fields, scanner.Text())
	}

	return fields, len(fields) == n
}

func parseRecord(fields []string) (*Process, error) {
	arrival, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("arrival time: %w", err)
	}

	name := fields[1]
	if len(name) > MaxNameLen {
		return nil, fmt.Errorf("name %q longer than %d bytes", name, MaxNameLen)
	}

	service, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("service time: %w", err)
	}

	if service == 0 {
		return nil, fmt.Errorf("process %s: service time must be positive", name)
	}

	mem, err := strconv.Atoi(fields[3])
	if err != nil {
		return nil, fmt.Errorf("memory requirement: %w", err)
	}

	if mem <= 0 {
		return nil, fmt.Errorf("process %s: memory requirement must be positive",
			name)
	}

	return New(name,
		timing.VTimeInCycle(arrival),
		timing.VTimeInCycle(service),
		mem,
	), nil
}

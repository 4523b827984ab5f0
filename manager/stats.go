package manager

import (
	"math"

	"github.com/sarchlab/procsim/process"
	"github.com/sarchlab/procsim/timing"
)

type statistics struct {
	numFinished     int
	totalTurnaround uint64
	totalOverhead   float64
	maxOverhead     float64
}

func (s *statistics) fold(p *process.Process) {
	overhead := p.TimeOverhead()

	s.numFinished++
	s.totalTurnaround += uint64(p.TurnaroundTime())
	s.totalOverhead += overhead

	if overhead > s.maxOverhead {
		s.maxOverhead = overhead
	}
}

func (s *statistics) summarize(makespan timing.VTimeInCycle) Summary {
	summary := Summary{
		NumProcesses: s.numFinished,
		Makespan:     makespan,
	}

	if s.numFinished == 0 {
		return summary
	}

	n := uint64(s.numFinished)
	summary.AverageTurnaround = (s.totalTurnaround + n - 1) / n
	summary.MaxOverhead = roundToHundredths(s.maxOverhead)
	summary.AverageOverhead = roundToHundredths(
		s.totalOverhead / float64(s.numFinished))

	return summary
}

func roundToHundredths(v float64) float64 {
	return math.Round(v*100) / 100
}

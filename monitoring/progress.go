package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/procsim/hooking"
	"github.com/sarchlab/procsim/manager"
)

// A ProgressBar is a tracker of the progress
type ProgressBar struct {
	sync.Mutex
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

type progressBarRsp struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

func (b *ProgressBar) snapshot() progressBarRsp {
	b.Lock()
	defer b.Unlock()

	return progressBarRsp{
		ID:         b.ID,
		Name:       b.Name,
		StartTime:  b.StartTime,
		Total:      b.Total,
		Finished:   b.Finished,
		InProgress: b.InProgress,
	}
}

// IncrementInProgress adds the number of in-progress element.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress += amount
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// MoveInProgressToFinished reduces the number of in progress item by a certain
// amount and increase the finished item by the same amount.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress -= amount
	b.Finished += amount
}

// ProgressHook advances a progress bar as processes start running and
// finish under a manager.
type ProgressHook struct {
	bar     *ProgressBar
	started map[string]bool
}

// NewProgressHook creates a hook that drives bar.
func NewProgressHook(bar *ProgressBar) *ProgressHook {
	return &ProgressHook{
		bar:     bar,
		started: make(map[string]bool),
	}
}

// Func updates the bar.
func (h *ProgressHook) Func(ctx hooking.HookCtx) {
	evt, ok := ctx.Item.(manager.Event)
	if !ok {
		return
	}

	switch ctx.Pos {
	case manager.HookPosProcessRunning:
		if !h.started[evt.Process] {
			h.started[evt.Process] = true
			h.bar.IncrementInProgress(1)
		}
	case manager.HookPosProcessFinished:
		h.bar.MoveInProgressToFinished(1)
	}
}

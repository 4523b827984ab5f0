package manager

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/procsim/hooking"
	"github.com/sarchlab/procsim/memory"
	"github.com/sarchlab/procsim/process"
	"github.com/sarchlab/procsim/scheduling"
	"github.com/sarchlab/procsim/surrogate"
	"github.com/sarchlab/procsim/timing"
)

type eventRecorder struct {
	events  []Event
	summary *Summary
}

func (r *eventRecorder) Func(ctx hooking.HookCtx) {
	switch item := ctx.Item.(type) {
	case Event:
		r.events = append(r.events, item)
	case Summary:
		r.summary = &item
	}
}

func t(v uint32) timing.VTimeInCycle {
	return timing.VTimeInCycle(v)
}

var _ = Describe("Manager", func() {
	var (
		mockCtrl *gomock.Controller
		launcher *MockLauncher
		engine   *timing.SerialEngine
		recorder *eventRecorder
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		launcher = NewMockLauncher(mockCtrl)
		engine = timing.NewSerialEngine()
		recorder = &eventRecorder{}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	newSurrogate := func(name string) *MockSurrogate {
		s := NewMockSurrogate(mockCtrl)
		s.EXPECT().PID().Return(100).AnyTimes()
		launcher.EXPECT().Launch(name).Return(s)

		return s
	}

	build := func(
		sched scheduling.Scheduler,
		mem memory.Strategy,
		quantum timing.VTimeInCycle,
		procs ...*process.Process,
	) *Manager {
		m, err := MakeBuilder().
			WithEngine(engine).
			WithQuantum(quantum).
			WithScheduler(sched).
			WithMemoryStrategy(mem).
			WithLauncher(launcher).
			Build(procs)
		Expect(err).NotTo(HaveOccurred())

		m.AcceptHook(recorder)

		return m
	}

	It("should run shortest jobs first with best-fit memory", func() {
		sa := newSurrogate("a")
		sb := newSurrogate("b")

		gomock.InOrder(
			sa.EXPECT().Spawn(t(0)),
			sa.EXPECT().Resume(t(5)),
			sa.EXPECT().Terminate(t(10)).
				Return(surrogate.Exit{Digest: "digest-a"}, nil),
			sb.EXPECT().Spawn(t(10)),
			sb.EXPECT().Resume(t(15)),
			sb.EXPECT().Terminate(t(20)).
				Return(surrogate.Exit{Digest: "digest-b"}, nil),
		)

		m := build(scheduling.ShortestJobFirst{}, memory.NewBestFit(2048), 5,
			process.New("b", 0, 10, 100),
			process.New("a", 0, 10, 200),
		)

		Expect(m.Run()).To(Succeed())

		Expect(recorder.events).To(Equal([]Event{
			{Time: 0, Kind: EventReady, Process: "b", AssignedAt: 0},
			{Time: 0, Kind: EventReady, Process: "a", AssignedAt: 100},
			{Time: 0, Kind: EventRunning, Process: "a", RemainingTime: 10},
			{Time: 10, Kind: EventFinished, Process: "a", Waiting: 1},
			{Time: 10, Kind: EventFinishedProcess, Process: "a",
				Digest: "digest-a"},
			{Time: 10, Kind: EventRunning, Process: "b", RemainingTime: 10},
			{Time: 20, Kind: EventFinished, Process: "b", Waiting: 0},
			{Time: 20, Kind: EventFinishedProcess, Process: "b",
				Digest: "digest-b"},
		}))

		Expect(recorder.summary).To(Equal(&Summary{
			NumProcesses:      2,
			AverageTurnaround: 15,
			MaxOverhead:       2,
			AverageOverhead:   1.5,
			Makespan:          20,
		}))
		Expect(engine.CurrentTime()).To(Equal(t(20)))

		summary, ok := m.Summary()
		Expect(ok).To(BeTrue())
		Expect(summary).To(Equal(*recorder.summary))
	})

	It("should preempt with round robin and infinite memory", func() {
		sa := newSurrogate("a")
		sb := newSurrogate("b")

		gomock.InOrder(
			sa.EXPECT().Spawn(t(0)),
			sa.EXPECT().Suspend(t(1)),
			sb.EXPECT().Spawn(t(1)),
			sb.EXPECT().Terminate(t(2)).
				Return(surrogate.Exit{Digest: "digest-b"}, nil),
			sa.EXPECT().Resume(t(2)),
			sa.EXPECT().Terminate(t(3)).
				Return(surrogate.Exit{Digest: "digest-a"}, nil),
		)

		m := build(scheduling.RoundRobin{}, memory.NewInfinite(), 1,
			process.New("a", 0, 2, 4096),
			process.New("b", 0, 1, 4096),
		)

		Expect(m.Run()).To(Succeed())

		Expect(recorder.events).To(Equal([]Event{
			{Time: 0, Kind: EventRunning, Process: "a", RemainingTime: 2},
			{Time: 1, Kind: EventRunning, Process: "b", RemainingTime: 1},
			{Time: 2, Kind: EventFinished, Process: "b", Waiting: 1},
			{Time: 2, Kind: EventFinishedProcess, Process: "b",
				Digest: "digest-b"},
			{Time: 2, Kind: EventRunning, Process: "a", RemainingTime: 1},
			{Time: 3, Kind: EventFinished, Process: "a", Waiting: 0},
			{Time: 3, Kind: EventFinishedProcess, Process: "a",
				Digest: "digest-a"},
		}))

		Expect(recorder.summary).To(Equal(&Summary{
			NumProcesses:      2,
			AverageTurnaround: 3,
			MaxOverhead:       2,
			AverageOverhead:   1.75,
			Makespan:          3,
		}))
	})

	It("should keep a process waiting until memory is freed", func() {
		sa := newSurrogate("a")
		sb := newSurrogate("b")

		gomock.InOrder(
			sa.EXPECT().Spawn(t(0)),
			sa.EXPECT().Resume(t(1)),
			sa.EXPECT().Terminate(t(2)).Return(surrogate.Exit{}, nil),
			sb.EXPECT().Spawn(t(2)),
			sb.EXPECT().Terminate(t(3)).Return(surrogate.Exit{}, nil),
		)

		m := build(scheduling.ShortestJobFirst{}, memory.NewBestFit(100), 1,
			process.New("a", 0, 2, 100),
			process.New("b", 0, 1, 60),
		)

		Expect(m.Run()).To(Succeed())

		Expect(recorder.events).To(ContainElements(
			Event{Time: 0, Kind: EventReady, Process: "a", AssignedAt: 0},
			Event{Time: 2, Kind: EventFinished, Process: "a", Waiting: 1},
			Event{Time: 2, Kind: EventReady, Process: "b", AssignedAt: 0},
		))
		Expect(recorder.summary.Makespan).To(Equal(t(3)))
	})

	It("should stop without advancing time on a mismatched ack", func() {
		sa := newSurrogate("a")
		mismatch := &surrogate.ProtocolError{
			Op:       "resume",
			Sent:     []byte{1},
			Received: []byte{2},
		}

		gomock.InOrder(
			sa.EXPECT().Spawn(t(0)),
			sa.EXPECT().Resume(t(1)).Return(mismatch),
			sa.EXPECT().Abort(),
		)

		m := build(scheduling.ShortestJobFirst{}, memory.NewInfinite(), 1,
			process.New("a", 0, 3, 1),
		)

		err := m.Run()
		Expect(err).To(MatchError(surrogate.ErrProtocol))
		Expect(engine.CurrentTime()).To(Equal(t(1)))
		Expect(engine.Pending()).To(Equal(0))
		Expect(recorder.summary).To(BeNil())

		_, ok := m.Summary()
		Expect(ok).To(BeFalse())
	})

	It("should abort every live surrogate when a spawn fails", func() {
		sa := newSurrogate("a")
		sb := newSurrogate("b")
		spawnErr := errors.New("exec format error")

		gomock.InOrder(
			sa.EXPECT().Spawn(t(0)),
			sa.EXPECT().Suspend(t(1)),
			sb.EXPECT().Spawn(t(1)).Return(spawnErr),
		)
		sa.EXPECT().Abort()
		sb.EXPECT().Abort()

		m := build(scheduling.RoundRobin{}, memory.NewInfinite(), 1,
			process.New("a", 0, 5, 1),
			process.New("b", 1, 5, 1),
		)

		Expect(m.Run()).To(MatchError(spawnErr))
		Expect(engine.CurrentTime()).To(Equal(t(1)))
	})

	It("should report overflow of the clock", func() {
		sa := newSurrogate("a")
		quantum := timing.MaxTime/2 + 1

		gomock.InOrder(
			sa.EXPECT().Spawn(t(0)),
			sa.EXPECT().Resume(quantum),
			sa.EXPECT().Abort(),
		)

		m := build(scheduling.ShortestJobFirst{}, memory.NewInfinite(), quantum,
			process.New("a", 0, timing.MaxTime, 1),
		)

		Expect(m.Run()).To(MatchError(timing.ErrTimeOverflow))
	})

	It("should end immediately without processes", func() {
		m := build(scheduling.RoundRobin{}, memory.NewBestFit(2048), 3)

		Expect(m.Run()).To(Succeed())
		Expect(recorder.events).To(BeEmpty())
		Expect(recorder.summary).To(Equal(&Summary{}))
	})

	It("should take snapshots", func() {
		m := build(scheduling.ShortestJobFirst{}, memory.NewBestFit(2048), 2,
			process.New("a", 0, 3, 1),
			process.New("b", 4, 3, 1),
		)

		s := m.Snapshot()
		Expect(s.Scheduler).To(Equal("SJF"))
		Expect(s.Memory).To(Equal("best-fit"))
		Expect(s.Quantum).To(Equal(t(2)))
		Expect(s.Unsubmitted).To(Equal([]string{"a", "b"}))
		Expect(s.Running).To(BeEmpty())
		Expect(s.Regions).To(Equal([]memory.Region{
			{Kind: memory.Hole, Start: 0, Length: 2048},
		}))
	})
})

var _ = Describe("Builder", func() {
	base := func() Builder {
		return MakeBuilder().
			WithScheduler(scheduling.RoundRobin{}).
			WithMemoryStrategy(memory.NewBestFit(2048))
	}

	It("should reject a zero quantum", func() {
		_, err := base().WithQuantum(0).Build(nil)
		Expect(err).To(HaveOccurred())
	})

	It("should require strategies", func() {
		_, err := MakeBuilder().
			WithMemoryStrategy(memory.NewInfinite()).
			Build(nil)
		Expect(err).To(HaveOccurred())

		_, err = MakeBuilder().
			WithScheduler(scheduling.RoundRobin{}).
			Build(nil)
		Expect(err).To(HaveOccurred())
	})

	It("should reject processes that can never fit", func() {
		_, err := base().Build([]*process.Process{
			process.New("huge", 0, 1, 2049),
		})
		Expect(err).To(MatchError(ErrProcessTooLarge))

		_, err = base().
			WithMemoryStrategy(memory.NewInfinite()).
			Build([]*process.Process{process.New("huge", 0, 1, 2049)})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject processes out of arrival order", func() {
		_, err := base().Build([]*process.Process{
			process.New("late", 5, 1, 1),
			process.New("early", 1, 1, 1),
		})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("statistics", func() {
	It("should round the average turnaround up", func() {
		s := statistics{}
		for _, finish := range []timing.VTimeInCycle{3, 4} {
			p := process.New("p", 0, 3, 1)
			p.MarkReady()
			p.MarkRunning()
			p.MarkFinished(finish)
			s.fold(p)
		}

		summary := s.summarize(4)
		Expect(summary.AverageTurnaround).To(Equal(uint64(4)))
		Expect(summary.MaxOverhead).To(Equal(1.33))
		Expect(summary.AverageOverhead).To(Equal(1.17))
	})
})

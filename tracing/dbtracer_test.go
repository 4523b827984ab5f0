package tracing

import (
	"database/sql"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/procsim/datarecording"
	"github.com/sarchlab/procsim/hooking"
	"github.com/sarchlab/procsim/manager"
	"github.com/sarchlab/procsim/surrogate"
)

var _ = Describe("DBTracer", func() {
	var (
		mockCtrl *gomock.Controller
		backend  *MockDataRecorder
		tracer   *DBTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		backend = NewMockDataRecorder(mockCtrl)

		backend.EXPECT().CreateTable(TranscriptTable, transcriptEntry{})
		backend.EXPECT().CreateTable(UsageTable, usageEntry{})
		backend.EXPECT().CreateTable(SummaryTable, summaryEntry{})

		tracer = NewDBTracer(backend)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should record a running event", func() {
		backend.EXPECT().InsertData(TranscriptTable, transcriptEntry{
			RunID:   tracer.RunID(),
			Time:    4,
			Event:   "RUNNING",
			Process: "p1",
			Field:   "remaining_time",
			Value:   "12",
		})

		tracer.Func(hooking.HookCtx{
			Pos: manager.HookPosProcessRunning,
			Item: manager.Event{
				Time: 4, Kind: manager.EventRunning, Process: "p1",
				RemainingTime: 12,
			},
		})
	})

	It("should record the usage of a finished surrogate", func() {
		backend.EXPECT().InsertData(TranscriptTable, gomock.Any())
		backend.EXPECT().InsertData(UsageTable, usageEntry{
			RunID:      tracer.RunID(),
			Process:    "p1",
			Time:       9,
			CPUSeconds: 1.5,
			RSS:        4096,
			Digest:     "ff",
		})

		tracer.Func(hooking.HookCtx{
			Pos: manager.HookPosSurrogateFinished,
			Item: manager.Event{
				Time: 9, Kind: manager.EventFinishedProcess, Process: "p1",
				Digest: "ff",
				Usage: surrogate.Usage{
					CPUTime: 1500 * time.Millisecond,
					RSS:     4096,
				},
			},
		})
	})

	It("should record the summary and flush", func() {
		gomock.InOrder(
			backend.EXPECT().InsertData(SummaryTable, summaryEntry{
				RunID:             tracer.RunID(),
				Processes:         2,
				AverageTurnaround: 7,
				MaxOverhead:       1.5,
				AverageOverhead:   1.25,
				Makespan:          12,
			}),
			backend.EXPECT().Flush(),
		)

		tracer.Func(hooking.HookCtx{
			Pos: manager.HookPosSimulationEnd,
			Item: manager.Summary{
				NumProcesses:      2,
				AverageTurnaround: 7,
				MaxOverhead:       1.5,
				AverageOverhead:   1.25,
				Makespan:          12,
			},
		})
	})
})

var _ = Describe("DBTracer with SQLite", func() {
	It("should write the transcript table", func() {
		path := filepath.Join(GinkgoT().TempDir(), "trace")
		recorder, err := datarecording.New(path)
		Expect(err).NotTo(HaveOccurred())
		defer recorder.Close()

		tracer := NewDBTracer(recorder)

		tracer.Func(hooking.HookCtx{
			Pos: manager.HookPosProcessReady,
			Item: manager.Event{
				Time: 0, Kind: manager.EventReady, Process: "p1",
				AssignedAt: 128,
			},
		})
		tracer.Func(hooking.HookCtx{
			Pos:  manager.HookPosSimulationEnd,
			Item: manager.Summary{Makespan: 3},
		})

		db, err := sql.Open("sqlite3", path+".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()

		var field, value string
		err = db.QueryRow("SELECT Field, Value FROM transcript").
			Scan(&field, &value)
		Expect(err).NotTo(HaveOccurred())
		Expect(field).To(Equal("assigned_at"))
		Expect(value).To(Equal("128"))

		var makespan uint32
		err = db.QueryRow("SELECT Makespan FROM summary").Scan(&makespan)
		Expect(err).NotTo(HaveOccurred())
		Expect(makespan).To(Equal(uint32(3)))
	})
})

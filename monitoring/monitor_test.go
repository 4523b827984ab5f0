package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/procsim/hooking"
	"github.com/sarchlab/procsim/manager"
	"github.com/sarchlab/procsim/memory"
	"github.com/sarchlab/procsim/timing"
)

type fixedSource struct {
	snapshot manager.Snapshot
}

func (s fixedSource) Snapshot() manager.Snapshot {
	return s.snapshot
}

var _ = Describe("Monitor", func() {
	var (
		engine  *timing.SerialEngine
		monitor *Monitor
		router  http.Handler
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		monitor = NewMonitor()
		monitor.RegisterEngine(engine)
		monitor.RegisterStateSource(fixedSource{snapshot: manager.Snapshot{
			Time:      7,
			Scheduler: "RR",
			Memory:    "best-fit",
			Quantum:   2,
			Ready:     []string{"a", "b"},
			Running:   "c",
			Regions: []memory.Region{
				{Kind: memory.Occupied, Start: 0, Length: 100},
				{Kind: memory.Hole, Start: 100, Length: 1948},
			},
		}})
		router = monitor.Router()
	})

	It("should report the current time", func() {
		rec := get("/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"now":0}`))
	})

	It("should pause and continue the engine", func() {
		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))
	})

	It("should describe the memory layout", func() {
		rec := get("/api/memory")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{
			"strategy": "best-fit",
			"capacity": 2048,
			"regions": [
				{"kind": "occupied", "start": 0, "length": 100},
				{"kind": "hole", "start": 100, "length": 1948}
			]
		}`))
	})

	It("should serialize the state", func() {
		rec := get("/api/state")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should serialize a single field", func() {
		rec := get("/api/field/" + url.PathEscape(`{"field_name":"Ready"}`))

		Expect(rec.Code).NotTo(Equal(http.StatusBadRequest))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should reject a malformed field request", func() {
		rec := get("/api/field/" + url.PathEscape(`not-json`))

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should list progress bars", func() {
		bar := monitor.CreateProgressBar("Processes", 3)
		bar.IncrementInProgress(2)
		bar.MoveInProgressToFinished(1)

		rec := get("/api/progress")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var bars []progressBarRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].ID).To(Equal(bar.ID))
		Expect(bars[0].Total).To(Equal(uint64(3)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))
		Expect(bars[0].Finished).To(Equal(uint64(1)))

		monitor.CompleteProgressBar(bar)

		rec = get("/api/progress")
		Expect(rec.Body.String()).To(MatchJSON(`[]`))
	})

	It("should report resource usage", func() {
		rec := get("/api/resource")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp resourceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve the page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("<html"))
	})

	It("should replace a reserved port with a random one", func() {
		monitor.WithPortNumber(80)

		Expect(monitor.portNumber).To(Equal(0))
	})
})

var _ = Describe("ProgressHook", func() {
	It("should count each process once", func() {
		bar := &ProgressBar{Total: 2}
		hook := NewProgressHook(bar)

		fire := func(pos *hooking.HookPos, name string) {
			hook.Func(hooking.HookCtx{
				Pos:  pos,
				Item: manager.Event{Process: name},
			})
		}

		fire(manager.HookPosProcessRunning, "a")
		fire(manager.HookPosProcessRunning, "b")
		fire(manager.HookPosProcessRunning, "a")
		Expect(bar.InProgress).To(Equal(uint64(2)))

		fire(manager.HookPosProcessFinished, "a")
		Expect(bar.InProgress).To(Equal(uint64(1)))
		Expect(bar.Finished).To(Equal(uint64(1)))
	})

	It("should ignore hooks without events", func() {
		bar := &ProgressBar{}
		hook := NewProgressHook(bar)

		hook.Func(hooking.HookCtx{
			Pos:  manager.HookPosSimulationEnd,
			Item: manager.Summary{},
		})

		Expect(bar.InProgress).To(BeZero())
	})
})

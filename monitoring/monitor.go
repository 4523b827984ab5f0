// Package monitoring turns a running simulation into a web server that can be
// watched and paused from a browser.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/rs/xid"
	psprocess "github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
	"go.uber.org/zap"

	"github.com/sarchlab/procsim/manager"
	"github.com/sarchlab/procsim/monitoring/web"
	"github.com/sarchlab/procsim/timing"
)

// StateSource provides snapshots of the simulation state.
type StateSource interface {
	Snapshot() manager.Snapshot
}

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	engine     timing.Engine
	source     StateSource
	portNumber int
	logger     *zap.Logger

	profileDuration time.Duration

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		logger:          zap.NewNop(),
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn("port number not allowed, using a random port",
			zap.Int("port", portNumber))

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(logger *zap.Logger) *Monitor {
	m.logger = logger
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e timing.Engine) {
	m.engine = e
}

// RegisterStateSource registers what provides the simulation state.
func (m *Monitor) RegisterStateSource(s StateSource) {
	m.source = s
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the page.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the routes served by the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/state", m.state)
	r.HandleFunc("/api/field/{json}", m.field)
	r.HandleFunc("/api/memory", m.memory)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background and returns the URL of the
// monitor.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", m.portNumber))
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("monitor stopped", zap.Error(err))
		}
	}()

	return url, nil
}

// StopServer stops the server started by StartServer.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, map[string]timing.VTimeInCycle{
		"now": m.engine.CurrentTime(),
	})
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	snapshot := m.source.Snapshot()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(2)

	if err := serializer.Serialize(w); err != nil {
		m.fail(w, err)
	}
}

type fieldReq struct {
	FieldName string `json:"field_name,omitempty"`
}

// field serializes one field of the snapshot, selected by a dot-separated
// path such as "Ready" or "Regions.0".
func (m *Monitor) field(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}
	if err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	snapshot := m.source.Snapshot()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(1)

	if err := serializer.SetEntryPoint(strings.Split(req.FieldName, ".")); err != nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	if err := serializer.Serialize(w); err != nil {
		m.fail(w, err)
	}
}

type regionRsp struct {
	Kind   string `json:"kind"`
	Start  int    `json:"start"`
	Length int    `json:"length"`
}

type memoryRsp struct {
	Strategy string      `json:"strategy"`
	Capacity int         `json:"capacity"`
	Regions  []regionRsp `json:"regions"`
}

func (m *Monitor) memory(w http.ResponseWriter, _ *http.Request) {
	snapshot := m.source.Snapshot()

	rsp := memoryRsp{
		Strategy: snapshot.Memory,
		Regions:  []regionRsp{},
	}

	for _, region := range snapshot.Regions {
		rsp.Regions = append(rsp.Regions, regionRsp{
			Kind:   region.Kind.String(),
			Start:  region.Start,
			Length: region.Length,
		})

		if region.End() > rsp.Capacity {
			rsp.Capacity = region.End()
		}
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	p, err := psprocess.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.fail(w, err)
		return
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		m.fail(w, err)
		return
	}

	memoryInfo, err := p.MemoryInfo()
	if err != nil {
		m.fail(w, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		m.fail(w, err)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.fail(w, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.Warn("cannot write response", zap.Error(err))
	}
}

func (m *Monitor) fail(w http.ResponseWriter, err error) {
	m.logger.Warn("monitor request failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

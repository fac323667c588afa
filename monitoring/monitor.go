// Package monitoring serves an initialized physical page table over HTTP so
// that it can be inspected.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/sarchlab/pmem/mem/memmap"
	"github.com/sarchlab/pmem/mem/pagetable"
	"github.com/sarchlab/pmem/mem/pmem"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
	"go.uber.org/zap"
)

// Monitor turns an initialized page table into a server that can be queried.
type Monitor struct {
	table      pagetable.Table
	memoryMap  memmap.Map
	portNumber int
	logger     *zap.Logger

	server *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		logger:    zap.NewNop(),
		memoryMap: memmap.Regions{},
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn("port number is not allowed, using a random port",
			zap.Int("port", portNumber))
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger of the monitor.
func (m *Monitor) WithLogger(l *zap.Logger) *Monitor {
	m.logger = l
	return m
}

// RegisterPageTable registers the table to serve.
func (m *Monitor) RegisterPageTable(t pagetable.Table) {
	m.table = t
}

// RegisterMemoryMap registers the memory map that the table was built from.
func (m *Monitor) RegisterMemoryMap(mm memmap.Map) {
	m.memoryMap = mm
}

// Router returns the request router of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/summary", m.summary)
	r.HandleFunc("/api/runs", m.runs)
	r.HandleFunc("/api/regions", m.regions)
	r.HandleFunc("/api/page/{index}", m.page)
	r.HandleFunc("/api/field/{field}", m.field)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts serving in the background and returns the URL of the
// server.
func (m *Monitor) StartServer() (string, error) {
	if m.table == nil {
		return "", errors.New("page table is not registered")
	}

	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.logger.Info("monitoring page table", zap.String("url", url))

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("monitoring server stopped", zap.Error(err))
		}
	}()

	return url, nil
}

// Shutdown stops the server.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) summary(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, pagetable.Summarize(m.table))
}

func (m *Monitor) runs(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("perm")

	runs := []pagetable.Run{}
	for run := range pagetable.Runs(m.table) {
		if filter != "" && run.Perm.String() != filter {
			continue
		}

		runs = append(runs, run)
	}

	m.writeJSON(w, runs)
}

func (m *Monitor) regions(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, memmap.Collect(m.memoryMap))
}

type pageRsp struct {
	Index     uint64 `json:"index"`
	Address   string `json:"address"`
	Perm      string `json:"perm"`
	Usable    bool   `json:"usable"`
	Allocated bool   `json:"allocated"`
}

func (m *Monitor) page(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(mux.Vars(r)["index"], 0, 64)
	if err != nil {
		http.Error(w, "invalid page index", http.StatusBadRequest)
		return
	}

	if index >= m.table.NumPages() {
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}

	perm := m.table.Perm(index)
	m.writeJSON(w, pageRsp{
		Index:     index,
		Address:   fmt.Sprintf("%#x", index*pmem.PageSize),
		Perm:      perm.String(),
		Usable:    perm.IsUsable(),
		Allocated: m.table.IsAllocated(index),
	})
}

type memoryMapView struct {
	NumPages uint64
	Regions  memmap.Regions
}

// field serializes a field of the memory map view, addressed by a
// dot-separated path such as "Regions.0". A single dot selects the whole view.
func (m *Monitor) field(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["field"]

	view := &memoryMapView{
		NumPages: m.table.NumPages(),
		Regions:  memmap.Collect(m.memoryMap),
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(view)
	serializer.SetMaxDepth(3)

	if path != "." {
		err := serializer.SetEntryPoint(strings.Split(path, "."))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	buf := bytes.NewBuffer(nil)

	err := serializer.Serialize(buf)
	if err != nil {
		m.fail(w, err)
		return
	}

	_, err = w.Write(buf.Bytes())
	m.logWriteErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()

	process, err := process.NewProcess(int32(pid))
	if err != nil {
		m.fail(w, err)
		return
	}

	cpuPercent, err := process.CPUPercent()
	if err != nil {
		m.fail(w, err)
		return
	}

	memorySize, err := process.MemoryInfo()
	if err != nil {
		m.fail(w, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		m.fail(w, err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.fail(w, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(data)
	m.logWriteErr(err)
}

func (m *Monitor) fail(w http.ResponseWriter, err error) {
	m.logger.Error("monitoring request failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (m *Monitor) logWriteErr(err error) {
	if err != nil {
		m.logger.Warn("failed to write response", zap.Error(err))
	}
}

package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"

	"vrtos/internal/sched"
)

// Target is the scheduler as seen by the monitor.
type Target interface {
	Now() uint64
	Live() int
	FreeStack() int
	BootID() string
	Snapshot() []sched.TaskInfo
	Lookup(id sched.TaskID) (sched.TaskInfo, error)
	Terminate(id sched.TaskID) error
}

// Monitor turns a running scheduler into an HTTP server for inspection and
// external task control.
type Monitor struct {
	target          Target
	log             *slog.Logger
	profileDuration time.Duration
}

func New(target Target, logger *slog.Logger) *Monitor {
	return &Monitor{
		target:          target,
		log:             logger.With("component", "monitor"),
		profileDuration: time.Second,
	}
}

// WithProfileDuration sets how long /api/profile samples the CPU.
func (m *Monitor) WithProfileDuration(d time.Duration) *Monitor {
	m.profileDuration = d
	return m
}

// Handler routes the monitor API.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/now", m.now).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks", m.listTasks).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{id:[0-9]+}", m.taskDetails).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{id:[0-9]+}", m.terminateTask).Methods(http.MethodDelete)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)
	return r
}

// StartServer listens on addr (":0" picks a free port) and serves until ctx
// is done. It returns the address actually bound.
func (m *Monitor) StartServer(ctx context.Context, addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("monitor listen: %w", err)
	}
	srv := &http.Server{Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error("monitor server stopped", "err", err)
		}
	}()

	bound := listener.Addr().String()
	m.log.Info("monitoring scheduler", "url", "http://"+bound)
	return bound, nil
}

type nowRsp struct {
	Tick      uint64 `json:"tick"`
	Live      int    `json:"live_tasks"`
	FreeStack int    `json:"free_stack_bytes"`
	BootID    string `json:"boot_id"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, http.StatusOK, nowRsp{
		Tick:      m.target.Now(),
		Live:      m.target.Live(),
		FreeStack: m.target.FreeStack(),
		BootID:    m.target.BootID(),
	})
}

func (m *Monitor) listTasks(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, http.StatusOK, m.target.Snapshot())
}

func (m *Monitor) taskDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := m.taskID(w, r)
	if !ok {
		return
	}
	info, err := m.target.Lookup(id)
	if err != nil {
		m.writeError(w, err)
		return
	}
	m.writeJSON(w, http.StatusOK, info)
}

func (m *Monitor) terminateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := m.taskID(w, r)
	if !ok {
		return
	}
	if err := m.target.Terminate(id); err != nil {
		m.writeError(w, err)
		return
	}
	m.log.Info("task terminated over http", "task_id", uint64(id))
	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) taskID(w http.ResponseWriter, r *http.Request) (sched.TaskID, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "bad task id", http.StatusBadRequest)
		return 0, false
	}
	return sched.TaskID(id), true
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.writeError(w, err)
		return
	}
	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		m.writeError(w, err)
		return
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		m.writeError(w, err)
		return
	}

	m.writeJSON(w, http.StatusOK, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	buf := bytes.NewBuffer(nil)
	if err := pprof.StartCPUProfile(buf); err != nil {
		m.writeError(w, err)
		return
	}

	select {
	case <-time.After(m.profileDuration):
	case <-r.Context().Done():
	}
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.writeError(w, err)
		return
	}
	m.writeJSON(w, http.StatusOK, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.log.Warn("write response", "err", err)
	}
}

func (m *Monitor) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sched.ErrInvalidHandle):
		status = http.StatusNotFound
	case errors.Is(err, sched.ErrStopped):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}

package monitor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrtos/internal/logging"
	"vrtos/internal/sched"
)

func newTestTarget(t *testing.T) (*sched.Scheduler, sched.TaskID) {
	t.Helper()
	s, err := sched.New(sched.DefaultConfig(),
		sched.WithTimer(sched.NewStepTimer()),
		sched.WithLogger(logging.Discard()))
	require.NoError(t, err)
	id, err := s.Spawn("blinker", func(t *sched.Task) {}, 1, 4096)
	require.NoError(t, err)
	return s, id
}

func get(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func del(t *testing.T, url string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func TestNowAndTasks(t *testing.T) {
	s, id := newTestTarget(t)
	ts := httptest.NewServer(New(s, logging.Discard()).Handler())
	defer ts.Close()

	var now nowRsp
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/now", &now))
	assert.Zero(t, now.Tick)
	assert.Equal(t, 1, now.Live)
	assert.Equal(t, s.BootID(), now.BootID)

	var tasks []sched.TaskInfo
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/tasks", &tasks))
	require.Len(t, tasks, 2)
	assert.Equal(t, "IDLE", tasks[0].Name)
	assert.Equal(t, "blinker", tasks[1].Name)
	assert.Equal(t, 4096, tasks[1].StackBytes)

	var info sched.TaskInfo
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/tasks/1", &info))
	assert.Equal(t, id, info.ID)
	assert.Equal(t, "Ready", info.State)

	assert.Equal(t, http.StatusNotFound, get(t, ts.URL+"/api/tasks/99", nil))
	assert.Equal(t, http.StatusNotFound, get(t, ts.URL+"/api/tasks/abc", nil))
}

func TestTerminateTask(t *testing.T) {
	s, id := newTestTarget(t)
	ts := httptest.NewServer(New(s, logging.Discard()).Handler())
	defer ts.Close()

	free := s.FreeStack()
	assert.Equal(t, http.StatusNoContent, del(t, ts.URL+"/api/tasks/1"))
	assert.Zero(t, s.Live())
	assert.Equal(t, free+4096, s.FreeStack())

	assert.Equal(t, http.StatusNotFound, del(t, ts.URL+"/api/tasks/1"))
	assert.Equal(t, http.StatusNotFound, del(t, ts.URL+"/api/tasks/0"), "idle cannot be terminated")

	_, err := s.Lookup(id)
	assert.ErrorIs(t, err, sched.ErrInvalidHandle)
}

func TestResource(t *testing.T) {
	s, _ := newTestTarget(t)
	ts := httptest.NewServer(New(s, logging.Discard()).Handler())
	defer ts.Close()

	var rsp resourceRsp
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/resource", &rsp))
	assert.Positive(t, rsp.MemorySize)
}

func TestProfile(t *testing.T) {
	s, _ := newTestTarget(t)
	m := New(s, logging.Discard()).WithProfileDuration(20 * time.Millisecond)
	ts := httptest.NewServer(m.Handler())
	defer ts.Close()

	var prof map[string]any
	require.Equal(t, http.StatusOK, get(t, ts.URL+"/api/profile", &prof))
	assert.Contains(t, prof, "SampleType")
}

func TestStartServer(t *testing.T) {
	s, _ := newTestTarget(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, err := New(s, logging.Discard()).StartServer(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	var now nowRsp
	assert.Equal(t, http.StatusOK, get(t, "http://"+addr+"/api/now", &now))
}

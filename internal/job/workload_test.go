package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrtos/internal/sched"
)

const sampleWorkload = `
task "blinker" {
  priority   = 1
  stack_size = 4096
  period_ms  = 1000
  message    = "blink"
}

task "cruncher" {
  priority   = 2
  burn_ticks = 25
}
`

func TestParseWorkload(t *testing.T) {
	w, err := ParseWorkload([]byte(sampleWorkload), "sample.hcl")
	require.NoError(t, err)
	require.Len(t, w.Tasks, 2)
	assert.Equal(t, TaskSpec{Name: "blinker", Priority: 1, StackSize: 4096, PeriodMS: 1000, Message: "blink"}, w.Tasks[0])
	assert.Equal(t, TaskSpec{Name: "cruncher", Priority: 2, BurnTicks: 25}, w.Tasks[1])
}

func TestParseWorkloadErrors(t *testing.T) {
	tests := map[string]string{
		"syntax":           `task "a" {`,
		"missing priority": `task "a" { stack_size = 256 }`,
		"unknown attr":     "task \"a\" {\n priority = 1\n colour = \"red\"\n}",
		"duplicate":        "task \"a\" { priority = 1 }\ntask \"a\" { priority = 2 }",
		"negative":         "task \"a\" {\n priority = 1\n count = -1\n}",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseWorkload([]byte(src), "bad.hcl")
			assert.Error(t, err)
		})
	}
}

func TestLoadWorkload(t *testing.T) {
	w, err := LoadWorkload(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkload(), w)

	path := filepath.Join(t.TempDir(), "workload.hcl")
	require.NoError(t, os.WriteFile(path, []byte(sampleWorkload), 0o644))
	w, err = LoadWorkload(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, w.Tasks, 2)

	_, err = LoadWorkload(context.Background(), filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}

type fakeSpawner struct {
	names []string
	fail  string
}

func (f *fakeSpawner) Spawn(name string, entry sched.EntryFunc, priority, stackSize int) (sched.TaskID, error) {
	if name == f.fail {
		return 0, sched.ErrOutOfMemory
	}
	f.names = append(f.names, name)
	return sched.TaskID(len(f.names)), nil
}

func TestWorkloadSpawnStopsAtFirstFailure(t *testing.T) {
	w, err := ParseWorkload([]byte(sampleWorkload), "sample.hcl")
	require.NoError(t, err)

	sp := &fakeSpawner{}
	ids, err := w.Spawn(sp, sched.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, []sched.TaskID{1, 2}, ids)

	sp = &fakeSpawner{fail: "blinker"}
	ids, err = w.Spawn(sp, sched.DefaultConfig())
	assert.True(t, errors.Is(err, sched.ErrOutOfMemory))
	assert.Empty(t, ids)
	assert.Empty(t, sp.names)
}

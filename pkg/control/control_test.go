package control

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	calls     []Method
	status    string
	failCall  bool
	failStat  bool
	activeSeq []bool
	seqIdx    int
}

func (b *fakeBus) Call(_ context.Context, m Method, _ string) error {
	b.calls = append(b.calls, m)
	if b.failCall {
		return &DbusFailure{Method: m, Err: assert.AnError}
	}
	return nil
}

func (b *fakeBus) Status(_ context.Context, _ string) (string, error) {
	if b.failStat {
		return "", &DbusFailure{Err: assert.AnError}
	}
	if len(b.activeSeq) > 0 {
		idx := b.seqIdx
		if idx >= len(b.activeSeq) {
			idx = len(b.activeSeq) - 1
		}
		b.seqIdx++
		if b.activeSeq[idx] {
			return "Active: active (running)", nil
		}
		return "Active: inactive (dead)", nil
	}
	return b.status, nil
}

func TestHandleLifecycle(t *testing.T) {
	bus := &fakeBus{status: "Active: active (running)"}
	h := NewHandle("myunit", bus)

	require.NoError(t, h.Start(context.Background()))
	require.NoError(t, h.Stop(context.Background()))
	require.NoError(t, h.Enable(context.Background()))
	require.NoError(t, h.Disable(context.Background()))
	assert.Equal(t, []Method{StartUnit, StopUnit, EnableUnitFiles, DisableUnitFiles}, bus.calls)

	active, err := h.Active(context.Background())
	require.NoError(t, err)
	assert.True(t, active)
}

func TestHandleActiveFalseWhenNotActiveSubstring(t *testing.T) {
	bus := &fakeBus{status: "Active: inactive (dead)"}
	h := NewHandle("myunit", bus)
	active, err := h.Active(context.Background())
	require.NoError(t, err)
	assert.False(t, active)
}

func TestHandleCallFailureIsDbusFailure(t *testing.T) {
	bus := &fakeBus{failCall: true}
	h := NewHandle("myunit", bus)
	err := h.Start(context.Background())
	require.Error(t, err)
	var dbusErr *DbusFailure
	require.ErrorAs(t, err, &dbusErr)
}

func TestFifoSendFramesSingleByteCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cmd.fifo")
	// OpenFile with O_WRONLY on a plain file stands in for the fifo in
	// tests; framing behavior is identical.
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	require.NoError(t, ReloadTrust(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{'1', '\n'}, data)

	require.NoError(t, FlushCache(path))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{'2', '\n'}, data)
}

func TestParseCountPct(t *testing.T) {
	v, err := parseCountPct("12 (34%)")
	require.NoError(t, err)
	assert.Equal(t, countPct{Count: 12, Percent: 34}, v)
}

func TestParseStats(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fapolicyd.state")
	content := `Permissive:0
q_size:50
Inter-thread max queue depth:5
Allowed accesses:100
Denied accesses:3
Trust database max pages:2048
Trust database pages in use:10 (5%)
Subject cache size:500
Subject slots in use:20 (4%)
Subject hits:90
Subject misses:10
Subject evictions:1 (0%)
Object cache size:500
Object slots in use:15 (3%)
Object hits:80
Object misses:5
Object evictions:0 (0%)
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rec, err := ParseStats(path)
	require.NoError(t, err)
	assert.False(t, rec.Permissive)
	assert.Equal(t, 50, rec.QSize)
	assert.Equal(t, 100, rec.AllowedAccesses)
	assert.Equal(t, countPct{Count: 10, Percent: 5}, rec.TrustDBPagesInUse)
	assert.Equal(t, 90, rec.SubjectHits)
}

func TestParseStatsMalformedFieldErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fapolicyd.state")
	require.NoError(t, os.WriteFile(path, []byte("q_size:not-a-number\n"), 0o600))

	_, err := ParseStats(path)
	require.Error(t, err)
	var perr *ParseStatsError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "q_size", perr.Field)
}

func TestStatsDBPruneAndAvg(t *testing.T) {
	db := NewStatsDB()
	now := time.Now()
	db.Insert(now.Add(-5*time.Second), StatRec{QSize: 10, AllowedAccesses: 100})
	db.Insert(now.Add(-1*time.Second), StatRec{QSize: 20, AllowedAccesses: 200})
	db.Insert(now.Add(-1*time.Hour), StatRec{QSize: 999, AllowedAccesses: 999})

	db.Prune(now, 10*time.Second)
	assert.Equal(t, 2, db.Len())

	avg := db.Avg(now, 10*time.Second)
	assert.Equal(t, 15, avg.QSize)
	assert.Equal(t, 150, avg.AllowedAccesses)
}

func TestStatsDBAvgEmptyWindowIsZero(t *testing.T) {
	db := NewStatsDB()
	avg := db.Avg(time.Now(), time.Second)
	assert.Equal(t, StatRec{}, avg)
}

// unitStateBus tracks per-unit active state, updated by Start/Stop calls,
// for exercising Profiler's multi-unit transitions.
type unitStateBus struct {
	active map[string]bool
}

func newUnitStateBus() *unitStateBus {
	return &unitStateBus{active: map[string]bool{}}
}

func (b *unitStateBus) Call(_ context.Context, m Method, unit string) error {
	switch m {
	case StartUnit:
		b.active[unit] = true
	case StopUnit:
		b.active[unit] = false
	}
	return nil
}

func (b *unitStateBus) Status(_ context.Context, unit string) (string, error) {
	if b.active[unit] {
		return "Active: active (running)", nil
	}
	return "Active: inactive (dead)", nil
}

func TestProfilerActivateStopsDaemonAndStartsProfiler(t *testing.T) {
	profilerUnitDir = t.TempDir()
	bus := newUnitStateBus()
	bus.active["fapolicyd"] = true

	p := NewProfiler(bus)
	active, err := p.Activate(context.Background(), time.Second)
	require.NoError(t, err)
	assert.False(t, active) // daemon was stopped to make way for the profiler

	assert.True(t, bus.active["fapolicyp"])
	assert.False(t, bus.active["fapolicyd"])
	if _, err := os.Stat(profilerUnitPath()); err != nil {
		t.Fatalf("expected drop-in unit file to exist: %v", err)
	}
}

func TestProfilerActivateIsIdempotent(t *testing.T) {
	profilerUnitDir = t.TempDir()
	bus := newUnitStateBus()
	bus.active["fapolicyp"] = true
	bus.active["fapolicyd"] = false

	p := NewProfiler(bus)
	active, err := p.Activate(context.Background(), time.Second)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestProfilerDeactivateRestoresPriorDaemonState(t *testing.T) {
	profilerUnitDir = t.TempDir()
	bus := newUnitStateBus()
	bus.active["fapolicyd"] = true

	p := NewProfiler(bus)
	_, err := p.Activate(context.Background(), time.Second)
	require.NoError(t, err)

	active, err := p.Deactivate(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, active)
	assert.False(t, bus.active["fapolicyp"])
	assert.True(t, bus.active["fapolicyd"])
	if _, err := os.Stat(profilerUnitPath()); !os.IsNotExist(err) {
		t.Fatalf("expected drop-in unit file to be removed, stat err=%v", err)
	}
}

func TestProfilerRollbackIsDeactivate(t *testing.T) {
	profilerUnitDir = t.TempDir()
	bus := newUnitStateBus()
	bus.active["fapolicyd"] = false

	p := NewProfiler(bus)
	_, err := p.Activate(context.Background(), time.Second)
	require.NoError(t, err)

	active, err := p.Rollback(context.Background(), time.Second)
	require.NoError(t, err)
	assert.False(t, active)
}

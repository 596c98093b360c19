package control

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ctc-oss/fapolicy-toolkit/pkg/logger"
)

// countPct is an (N, P%) pair as reported by several stats fields.
type countPct struct {
	Count   int
	Percent int
}

// StatRec is one parsed snapshot of the enforcer's statistics file.
type StatRec struct {
	Permissive               bool
	QSize                    int
	InterThreadMaxQueueDepth int
	AllowedAccesses          int
	DeniedAccesses           int
	TrustDBMaxPages          int
	TrustDBPagesInUse        countPct
	SubjectCacheSize         int
	SubjectSlotsInUse        countPct
	SubjectHits              int
	SubjectMisses            int
	SubjectEvictions         countPct
	ObjectCacheSize          int
	ObjectSlotsInUse         countPct
	ObjectHits               int
	ObjectMisses             int
	ObjectEvictions          countPct
}

// ParseStatsError reports a stats-file field whose value could not be
// parsed as the expected shape.
type ParseStatsError struct {
	Field string
	Err   error
}

func (e *ParseStatsError) Error() string {
	return fmt.Sprintf("control: parse stats field %q: %v", e.Field, e.Err)
}

func (e *ParseStatsError) Unwrap() error { return e.Err }

// ParseStats parses the key:value stats file at path into a StatRec.
// Unrecognized keys are ignored.
func ParseStats(path string) (StatRec, error) {
	f, err := os.Open(path)
	if err != nil {
		return StatRec{}, fmt.Errorf("control: open stats file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var rec StatRec
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)

		var perr error
		switch k {
		case "Permissive":
			rec.Permissive, perr = parseBool(v)
		case "q_size":
			rec.QSize, perr = strconv.Atoi(v)
		case "Inter-thread max queue depth":
			rec.InterThreadMaxQueueDepth, perr = strconv.Atoi(v)
		case "Allowed accesses":
			rec.AllowedAccesses, perr = strconv.Atoi(v)
		case "Denied accesses":
			rec.DeniedAccesses, perr = strconv.Atoi(v)
		case "Trust database max pages":
			rec.TrustDBMaxPages, perr = strconv.Atoi(v)
		case "Trust database pages in use":
			rec.TrustDBPagesInUse, perr = parseCountPct(v)
		case "Subject cache size":
			rec.SubjectCacheSize, perr = strconv.Atoi(v)
		case "Subject slots in use":
			rec.SubjectSlotsInUse, perr = parseCountPct(v)
		case "Subject hits":
			rec.SubjectHits, perr = strconv.Atoi(v)
		case "Subject misses":
			rec.SubjectMisses, perr = strconv.Atoi(v)
		case "Subject evictions":
			rec.SubjectEvictions, perr = parseCountPct(v)
		case "Object cache size":
			rec.ObjectCacheSize, perr = strconv.Atoi(v)
		case "Object slots in use":
			rec.ObjectSlotsInUse, perr = parseCountPct(v)
		case "Object hits":
			rec.ObjectHits, perr = strconv.Atoi(v)
		case "Object misses":
			rec.ObjectMisses, perr = strconv.Atoi(v)
		case "Object evictions":
			rec.ObjectEvictions, perr = parseCountPct(v)
		default:
			continue
		}
		if perr != nil {
			return StatRec{}, &ParseStatsError{Field: k, Err: perr}
		}
	}
	if err := scanner.Err(); err != nil {
		return StatRec{}, fmt.Errorf("control: read stats file: %w", err)
	}
	return rec, nil
}

func parseBool(s string) (bool, error) {
	switch s {
	case "1", "true", "True", "yes":
		return true, nil
	case "0", "false", "False", "no":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean: %q", s)
	}
}

// parseCountPct parses "N (P%)".
func parseCountPct(s string) (countPct, error) {
	n, rest, ok := strings.Cut(s, "(")
	if !ok {
		return countPct{}, fmt.Errorf("expected 'N (P%%)', got %q", s)
	}
	rest = strings.TrimSuffix(strings.TrimSpace(rest), ")")
	rest = strings.TrimSuffix(rest, "%")
	count, err := strconv.Atoi(strings.TrimSpace(n))
	if err != nil {
		return countPct{}, err
	}
	pct, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return countPct{}, err
	}
	return countPct{Count: count, Percent: pct}, nil
}

// WatchStats watches path for data-modification events on a dedicated
// background thread and publishes a freshly parsed StatRec on the
// returned channel for each one, per spec §4.J / §5. The watcher and
// channel are closed when stop is called.
func WatchStats(path string) (<-chan StatRec, func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("control: create stats watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, nil, fmt.Errorf("control: watch stats file: %w", err)
	}

	out := make(chan StatRec)
	done := make(chan struct{})
	var closeOnce sync.Once
	stop := func() {
		closeOnce.Do(func() {
			close(done)
			_ = watcher.Close()
		})
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&fsnotify.Write == 0 {
					continue
				}
				rec, err := ParseStats(path)
				if err != nil {
					logger.Warn("control: parse stats", logger.Err(err))
					continue
				}
				select {
				case out <- rec:
				case <-done:
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("control: stats watcher", logger.Err(err))
			}
		}
	}()

	return out, stop, nil
}

// StatsDB keeps a time-ordered window of StatRec snapshots, supporting
// pruning by age and averaging over a trailing window.
type StatsDB struct {
	mu      sync.Mutex
	entries []statsEntry
}

type statsEntry struct {
	at  time.Time
	rec StatRec
}

// NewStatsDB returns an empty StatsDB.
func NewStatsDB() *StatsDB { return &StatsDB{} }

// Insert appends rec at timestamp at.
func (db *StatsDB) Insert(at time.Time, rec StatRec) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.entries = append(db.entries, statsEntry{at: at, rec: rec})
}

// Prune drops every entry older than ttl relative to now.
func (db *StatsDB) Prune(now time.Time, ttl time.Duration) {
	db.mu.Lock()
	defer db.mu.Unlock()
	kept := db.entries[:0]
	for _, e := range db.entries {
		if now.Sub(e.at) < ttl {
			kept = append(kept, e)
		}
	}
	db.entries = kept
}

// PrunedInsert inserts rec at at, then prunes against ttl.
func (db *StatsDB) PrunedInsert(at time.Time, ttl time.Duration, rec StatRec) {
	db.Insert(at, rec)
	db.Prune(at, ttl)
}

// Avg returns the element-wise integer mean of every entry within window
// of now. A window containing no entries returns a zero StatRec.
func (db *StatsDB) Avg(now time.Time, window time.Duration) StatRec {
	db.mu.Lock()
	defer db.mu.Unlock()

	var sum StatRec
	n := 0
	for _, e := range db.entries {
		if now.Sub(e.at) >= window {
			continue
		}
		n++
		sum.QSize += e.rec.QSize
		sum.InterThreadMaxQueueDepth += e.rec.InterThreadMaxQueueDepth
		sum.AllowedAccesses += e.rec.AllowedAccesses
		sum.DeniedAccesses += e.rec.DeniedAccesses
		sum.TrustDBMaxPages += e.rec.TrustDBMaxPages
		sum.TrustDBPagesInUse.Count += e.rec.TrustDBPagesInUse.Count
		sum.SubjectCacheSize += e.rec.SubjectCacheSize
		sum.SubjectSlotsInUse.Count += e.rec.SubjectSlotsInUse.Count
		sum.SubjectHits += e.rec.SubjectHits
		sum.SubjectMisses += e.rec.SubjectMisses
		sum.SubjectEvictions.Count += e.rec.SubjectEvictions.Count
		sum.ObjectCacheSize += e.rec.ObjectCacheSize
		sum.ObjectSlotsInUse.Count += e.rec.ObjectSlotsInUse.Count
		sum.ObjectHits += e.rec.ObjectHits
		sum.ObjectMisses += e.rec.ObjectMisses
		sum.ObjectEvictions.Count += e.rec.ObjectEvictions.Count
	}
	if n == 0 {
		return StatRec{}
	}
	return StatRec{
		QSize:                    sum.QSize / n,
		InterThreadMaxQueueDepth: sum.InterThreadMaxQueueDepth / n,
		AllowedAccesses:          sum.AllowedAccesses / n,
		DeniedAccesses:           sum.DeniedAccesses / n,
		TrustDBMaxPages:          sum.TrustDBMaxPages / n,
		TrustDBPagesInUse:        countPct{Count: sum.TrustDBPagesInUse.Count / n},
		SubjectCacheSize:         sum.SubjectCacheSize / n,
		SubjectSlotsInUse:        countPct{Count: sum.SubjectSlotsInUse.Count / n},
		SubjectHits:              sum.SubjectHits / n,
		SubjectMisses:            sum.SubjectMisses / n,
		SubjectEvictions:         countPct{Count: sum.SubjectEvictions.Count / n},
		ObjectCacheSize:          sum.ObjectCacheSize / n,
		ObjectSlotsInUse:         countPct{Count: sum.ObjectSlotsInUse.Count / n},
		ObjectHits:               sum.ObjectHits / n,
		ObjectMisses:             sum.ObjectMisses / n,
		ObjectEvictions:          countPct{Count: sum.ObjectEvictions.Count / n},
	}
}

// Len reports the number of retained entries.
func (db *StatsDB) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.entries)
}

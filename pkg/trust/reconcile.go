package trust

import (
	"context"
	"os"

	"github.com/ctc-oss/fapolicy-toolkit/pkg/hashutil"
	"golang.org/x/sync/errgroup"
)

// reconcileResult is the per-path outcome of comparing a trusted Record
// against the filesystem.
type reconcileResult struct {
	path   string
	actual *Actual
	status Status
}

// chunksOf100 splits paths into len(paths)/100 + 1 contiguous groups, the
// heuristic spec §9's Open Question settles on: enough chunks to keep a
// worker pool busy without creating one goroutine per record.
func chunksOf100(paths []string) [][]string {
	if len(paths) == 0 {
		return nil
	}
	numChunks := len(paths)/100 + 1
	chunkSize := (len(paths) + numChunks - 1) / numChunks
	var chunks [][]string
	for i := 0; i < len(paths); i += chunkSize {
		end := i + chunkSize
		if end > len(paths) {
			end = len(paths)
		}
		chunks = append(chunks, paths[i:end])
	}
	return chunks
}

// reconcileOne opens path and compares its current size/hash against
// trusted. Any I/O error other than "not found" is surfaced via err but
// does not abort the caller's fan-out; the caller logs and continues.
func reconcileOne(trusted Record) (reconcileResult, error) {
	f, err := os.Open(trusted.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return reconcileResult{path: trusted.Path, status: Status{Kind: Missing}}, nil
		}
		return reconcileResult{}, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return reconcileResult{}, err
	}

	hash, err := hashutil.StreamSHA256(f)
	if err != nil {
		return reconcileResult{}, err
	}

	actual := &Actual{
		Size:             uint64(info.Size()),
		Hash:             hash,
		LastModifiedUnix: info.ModTime().Unix(),
	}

	kind := Trusted
	if actual.Size != trusted.Size || actual.Hash != trusted.Hash {
		kind = Discrepancy
	}
	return reconcileResult{path: trusted.Path, actual: actual, status: Status{Kind: kind, Actual: actual}}, nil
}

// UpdateCallback receives one reconciled path's outcome; the caller of
// Reconcile is guaranteed to see these in the order the underlying MPSC
// channel delivers them, which preserves per-chunk arrival order but not a
// global path ordering across chunks (spec §5: "strictly in arrival
// order").
type UpdateCallback func(path string, actual *Actual, status Status, reconcileErr error)

// Reconcile fans read-only reconciliation work for db's entries out across
// chunked workers (spec §5), funneling every outcome through a single
// channel so update invokes onUpdate exactly once per record and done is
// invoked exactly once after the last update, both on the calling
// goroutine.
func Reconcile(db *DB, onUpdate UpdateCallback, onDone func()) *DB {
	entries := db.Entries()
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	chunks := chunksOf100(paths)

	type outcome struct {
		path string
		res  reconcileResult
		err  error
	}
	out := make(chan outcome)

	// Each chunk gets its own goroutine; errgroup bounds the pool at the
	// chunk count (spec §5's fixed-size-chunks-per-worker fan-out) and
	// gives the dispatcher a single Wait() to join on.
	g, _ := errgroup.WithContext(context.Background())
	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			for _, p := range chunk {
				m := entries[p]
				res, err := reconcileOne(m.Trusted)
				out <- outcome{path: p, res: res, err: err}
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(out)
	}()

	results := make(map[string]reconcileResult, len(paths))
	for o := range out {
		if o.err != nil {
			onUpdate(o.path, nil, Status{}, o.err)
			continue
		}
		results[o.path] = o.res
		onUpdate(o.path, o.res.actual, o.res.status, nil)
	}
	if onDone != nil {
		onDone()
	}

	return db.WithReconciled(results)
}

// ReconcileAll is a convenience wrapper over Reconcile for callers that do
// not need per-record progress notifications.
func ReconcileAll(db *DB) *DB {
	return Reconcile(db, func(string, *Actual, Status, error) {}, nil)
}

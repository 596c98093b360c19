package trust

// Actual is what the filesystem currently reports for a trust record's
// path. It is absent (nil) when the file is missing.
type Actual struct {
	Size             uint64
	Hash             string
	LastModifiedUnix int64
}

// StatusKind discriminates the outcome of reconciling a record against the
// filesystem.
type StatusKind int

const (
	// Trusted means the recorded and actual size/hash match.
	Trusted StatusKind = iota
	// Discrepancy means the file exists but size or hash differ.
	Discrepancy
	// Missing means the path does not exist.
	Missing
)

func (k StatusKind) String() string {
	switch k {
	case Trusted:
		return "trusted"
	case Discrepancy:
		return "discrepancy"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

// Status is the outcome of reconciling one Record against the filesystem.
type Status struct {
	Kind   StatusKind
	Actual *Actual // nil when Kind == Missing
}

// Meta is one entry in the trust DB: the trusted record, where it came
// from, and the lazily-populated reconciliation outcome.
type Meta struct {
	Trusted Record
	Actual  *Actual
	Source  Source
	Status  *Status
}

// DB is an immutable path -> Meta mapping. Every mutating operation
// (Merge, ApplyChangeSet, WithReconciled) returns a new DB; the receiver is
// left untouched. order records first-insertion order so writers can
// reproduce spec §4.D's "stable by insertion" requirement without relying
// on Go's unordered map iteration.
type DB struct {
	entries map[string]Meta
	order   []string
}

// NewDB returns an empty trust DB.
func NewDB() *DB {
	return &DB{entries: make(map[string]Meta)}
}

// Len reports the number of entries in the DB.
func (db *DB) Len() int { return len(db.entries) }

// Get returns the Meta for path and whether it was present.
func (db *DB) Get(path string) (Meta, bool) {
	m, ok := db.entries[path]
	return m, ok
}

// Entries returns a copy of the path -> Meta mapping; callers may range
// over it freely without affecting db.
func (db *DB) Entries() map[string]Meta {
	out := make(map[string]Meta, len(db.entries))
	for k, v := range db.entries {
		out[k] = v
	}
	return out
}

// OrderedPaths returns db's paths in first-insertion order.
func (db *DB) OrderedPaths() []string {
	out := make([]string, len(db.order))
	copy(out, db.order)
	return out
}

// clone returns a shallow copy of db's entries and order, the basis for
// every immutable-update method below.
func (db *DB) clone() (map[string]Meta, []string) {
	entries := make(map[string]Meta, len(db.entries))
	for k, v := range db.entries {
		entries[k] = v
	}
	order := make([]string, len(db.order))
	copy(order, db.order)
	return entries, order
}

// set inserts or overwrites path in entries/order, appending to order only
// the first time path is seen.
func set(entries map[string]Meta, order []string, path string, m Meta) []string {
	if _, exists := entries[path]; !exists {
		order = append(order, path)
	}
	entries[path] = m
	return order
}

// deletePath removes path from entries and order.
func deletePath(entries map[string]Meta, order []string, path string) []string {
	if _, exists := entries[path]; !exists {
		return order
	}
	delete(entries, path)
	out := order[:0:0]
	for _, p := range order {
		if p != path {
			out = append(out, p)
		}
	}
	return out
}

// Merge folds recs into db, tagged with source. Paths already present in
// db are left untouched: first-seen wins across sources, per spec §4.D.
func (db *DB) Merge(recs []Record, source Source) *DB {
	entries, order := db.clone()
	for _, r := range recs {
		if _, exists := entries[r.Path]; exists {
			continue
		}
		order = set(entries, order, r.Path, Meta{Trusted: r, Source: source})
	}
	return &DB{entries: entries, order: order}
}

// WithReconciled returns a new DB with each path in results updated to
// carry its reconciliation Actual/Status. Paths not present in db are
// ignored.
func (db *DB) WithReconciled(results map[string]reconcileResult) *DB {
	entries, order := db.clone()
	for path, res := range results {
		m, ok := entries[path]
		if !ok {
			continue
		}
		m.Actual = res.actual
		status := res.status
		m.Status = &status
		order = set(entries, order, path, m)
	}
	return &DB{entries: entries, order: order}
}

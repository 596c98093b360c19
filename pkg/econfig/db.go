package econfig

import (
	"fmt"
	"os"
)

// DB is an ordered collection of parsed configuration lines.
type DB struct {
	lines []Line
}

// NewDB wraps an already-parsed line sequence into a DB.
func NewDB(lines []Line) *DB { return &DB{lines: append([]Line(nil), lines...)} }

// Lines exposes the raw parsed sequence, for the writer.
func (db *DB) Lines() []Line { return append([]Line(nil), db.lines...) }

// Get returns the last valid value recorded for key, if any.
func (db *DB) Get(key Key) (Value, bool) {
	var v Value
	found := false
	for _, l := range db.lines {
		if l.Kind == LineValid && l.Key == key {
			v = l.Value
			found = true
		}
	}
	return v, found
}

// LoadFile reads and parses a configuration file from disk.
func LoadFile(path string) (*DB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("econfig: read %s: %w", path, err)
	}
	return NewDB(ParseText(string(data))), nil
}

// WriteFile writes db back out, one line per entry followed by "\n", in
// order; the writer never reorders or drops entries.
func WriteFile(path string, db *DB) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("econfig: write %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	for _, l := range db.lines {
		if _, err := f.WriteString(l.String() + "\n"); err != nil {
			return fmt.Errorf("econfig: write %s: %w", path, err)
		}
	}
	return nil
}

// Defaults returns the enforcer's documented default configuration.
func Defaults() *DB {
	return NewDB([]Line{
		{Kind: LineValid, Key: Permissive, Value: Value{Kind: VBool, Bool: false}},
		{Kind: LineValid, Key: NiceVal, Value: Value{Kind: VUint, Uint: 14}},
		{Kind: LineValid, Key: QSize, Value: Value{Kind: VUint, Uint: 800}},
		{Kind: LineValid, Key: UID, Value: Value{Kind: VString, Str: "fapolicyd"}},
		{Kind: LineValid, Key: GID, Value: Value{Kind: VString, Str: "fapolicyd"}},
		{Kind: LineValid, Key: DoStatReport, Value: Value{Kind: VBool, Bool: true}},
		{Kind: LineValid, Key: DetailedReport, Value: Value{Kind: VBool, Bool: true}},
		{Kind: LineValid, Key: DbMaxSize, Value: Value{Kind: VUint, Uint: 50}},
		{Kind: LineValid, Key: SubjCacheSize, Value: Value{Kind: VUint, Uint: 1549}},
		{Kind: LineValid, Key: ObjCacheSize, Value: Value{Kind: VUint, Uint: 8191}},
		{Kind: LineValid, Key: WatchFs, Value: Value{Kind: VStringList, List: []string{
			"ext2", "ext3", "ext4", "tmpfs", "xfs", "vfat", "iso9660", "btrfs",
		}}},
		{Kind: LineValid, Key: Trust, Value: Value{Kind: VTrustList, Trust: []TrustBackend{Rpm, FileBackend}}},
		{Kind: LineValid, Key: Integrity, Value: Value{Kind: VIntegrity, Integrity: IntegrityNone}},
		{Kind: LineValid, Key: SyslogFormat, Value: Value{Kind: VStringList, List: []string{
			"rule", "dec", "perm", "auid", "pid", "exe", ":", "path", "ftype", "trust",
		}}},
		{Kind: LineValid, Key: RpmSha256Only, Value: Value{Kind: VBool, Bool: false}},
		{Kind: LineValid, Key: AllowFilesystemMark, Value: Value{Kind: VBool, Bool: false}},
	})
}

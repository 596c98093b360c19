package trust

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// LoadErrKind discriminates why a trust source failed to parse.
type LoadErrKind int

const (
	// MalformattedTrustEntry means a line did not split into the
	// required path/size/hash (or type-tag/path/size/hash) fields.
	MalformattedTrustEntry LoadErrKind = iota
	// UnsupportedTrustType means a KV-store value's type tag was
	// neither "1" (PackageManager) nor "2" (Ancillary).
	UnsupportedTrustType
)

func (k LoadErrKind) String() string {
	if k == UnsupportedTrustType {
		return "UnsupportedTrustType"
	}
	return "MalformattedTrustEntry"
}

// LoadError reports a problem decoding one trust-source entry.
type LoadError struct {
	Kind LoadErrKind
	Line string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("trust: %s: %q", e.Kind, e.Line)
}

// parseLastTwoFields splits a line on the rsplit-at-most-3 rule described
// in spec §4.D: the final two whitespace-delimited fields are size and
// hash; everything before them is the path, which may itself contain
// spaces.
func parseLastTwoFields(line string) (path string, size uint64, hash string, err error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return "", 0, "", &LoadError{Kind: MalformattedTrustEntry, Line: line}
	}
	hash = fields[len(fields)-1]
	sizeStr := fields[len(fields)-2]
	size, perr := strconv.ParseUint(sizeStr, 10, 64)
	if perr != nil {
		return "", 0, "", &LoadError{Kind: MalformattedTrustEntry, Line: line}
	}
	// Reassemble the path from whatever whitespace-delimited tokens
	// remain, collapsing internal runs of whitespace the same way
	// strings.Fields already has.
	path = strings.Join(fields[:len(fields)-2], " ")
	if path == "" {
		return "", 0, "", &LoadError{Kind: MalformattedTrustEntry, Line: line}
	}
	return path, size, hash, nil
}

// parseAncillaryLines reads blank/comment/record lines per spec §4.D and
// returns the decoded records. The first malformed line aborts the read
// (ancillary files are operator-maintained and expected to be well formed).
func parseAncillaryLines(r io.Reader) ([]Record, error) {
	var recs []Record
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		path, size, hash, err := parseLastTwoFields(line)
		if err != nil {
			return recs, err
		}
		recs = append(recs, Record{Path: path, Size: size, Hash: hash})
	}
	if err := scanner.Err(); err != nil {
		return recs, err
	}
	return recs, nil
}

// LoadAncillaryFile parses the single ancillary-trust file at path. A
// missing file is not an error; it yields no records.
func LoadAncillaryFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return parseAncillaryLines(f)
}

// DirEntry pairs a Record with the ancillary-directory file name it came
// from, the tag required to reconstruct Source.AncillaryDirEntry.
type DirEntry struct {
	Record   Record
	FileName string
}

// LoadAncillaryDir parses every regular file with a ".trust" extension
// directly inside dir using the ancillary-file grammar, tagging each record
// with its file name. A missing directory is not an error.
func LoadAncillaryDir(dir string) ([]DirEntry, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []DirEntry
	for _, ent := range ents {
		if ent.IsDir() || filepath.Ext(ent.Name()) != ".trust" {
			continue
		}
		recs, err := LoadAncillaryFile(filepath.Join(dir, ent.Name()))
		if err != nil {
			return out, err
		}
		for _, r := range recs {
			out = append(out, DirEntry{Record: r, FileName: ent.Name()})
		}
	}
	return out, nil
}

// kvTypeTag encodes the SourceKind stored alongside a KV-store record, per
// spec §4.D's "1"/"2" type tags.
func kvTypeTag(k SourceKind) string {
	if k == PackageManager {
		return "1"
	}
	return "2"
}

func kvSourceKind(tag string) (SourceKind, error) {
	switch tag {
	case "1":
		return PackageManager, nil
	case "2":
		return AncillaryFile, nil
	default:
		return 0, &LoadError{Kind: UnsupportedTrustType, Line: tag}
	}
}

// LoadKV opens the badger KV store at dir and decodes every entry in its
// "trust.db" namespace. Each value is "TT SIZE HASH" where TT is "1" for
// PackageManager or "2" for Ancillary (spec §4.D item 1).
func LoadKV(dir string) ([]Meta, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("trust: open kv store %s: %w", dir, err)
	}
	defer func() { _ = db.Close() }()

	var metas []Meta
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("trust.db:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			path := strings.TrimPrefix(string(item.Key()), "trust.db:")
			var value string
			if verr := item.Value(func(v []byte) error {
				value = string(v)
				return nil
			}); verr != nil {
				return verr
			}

			tt, rest, ok := strings.Cut(value, " ")
			if !ok {
				return &LoadError{Kind: MalformattedTrustEntry, Line: value}
			}
			kind, terr := kvSourceKind(tt)
			if terr != nil {
				return terr
			}
			size, hash, serr := splitSizeHash(rest)
			if serr != nil {
				return serr
			}
			metas = append(metas, Meta{
				Trusted: Record{Path: path, Size: size, Hash: hash},
				Source:  Source{Kind: kind},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return metas, nil
}

func splitSizeHash(rest string) (uint64, string, error) {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return 0, "", &LoadError{Kind: MalformattedTrustEntry, Line: rest}
	}
	size, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, "", &LoadError{Kind: MalformattedTrustEntry, Line: rest}
	}
	return size, fields[1], nil
}

// Load assembles a trust DB from the KV store, the ancillary file, the
// ancillary directory and an already-collected package-manager inventory,
// in the precedence order spec §4.D mandates: first-seen wins on path
// collision, so later sources only fill gaps the earlier ones left.
func Load(kvDir, ancillaryFile, ancillaryDir string, inventory []Record) (*DB, error) {
	db := NewDB()

	kvMetas, err := LoadKV(kvDir)
	if err != nil {
		return nil, err
	}
	for _, m := range kvMetas {
		if _, exists := db.Get(m.Trusted.Path); exists {
			continue
		}
		entries, order := db.clone()
		order = set(entries, order, m.Trusted.Path, m)
		db = &DB{entries: entries, order: order}
	}

	fileRecs, err := LoadAncillaryFile(ancillaryFile)
	if err != nil {
		return nil, err
	}
	db = db.Merge(fileRecs, Source{Kind: AncillaryFile})

	dirEntries, err := LoadAncillaryDir(ancillaryDir)
	if err != nil {
		return nil, err
	}
	for _, de := range dirEntries {
		if _, exists := db.Get(de.Record.Path); exists {
			continue
		}
		entries, order := db.clone()
		order = set(entries, order, de.Record.Path, Meta{
			Trusted: de.Record,
			Source:  Source{Kind: AncillaryDirEntry, FileName: de.FileName},
		})
		db = &DB{entries: entries, order: order}
	}

	db = db.Merge(inventory, Source{Kind: PackageManager})

	return db, nil
}

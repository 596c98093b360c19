package trust

import (
	"fmt"
	"os"

	"github.com/ctc-oss/fapolicy-toolkit/pkg/hashutil"
	"github.com/ctc-oss/fapolicy-toolkit/pkg/logger"
)

// OpKind discriminates a ChangeSet operation.
type OpKind int

const (
	// OpAdd hashes path from the filesystem at apply time.
	OpAdd OpKind = iota
	// OpDelete removes path from the DB.
	OpDelete
	// OpInsert supplies size and hash directly, without touching the
	// filesystem.
	OpInsert
)

// Op is one operation in an ordered trust change set (spec §3).
type Op struct {
	Kind OpKind
	Path string
	Size uint64 // meaningful only for OpInsert
	Hash string // meaningful only for OpInsert
}

// Add returns an OpAdd operation for path.
func Add(path string) Op { return Op{Kind: OpAdd, Path: path} }

// Delete returns an OpDelete operation for path.
func Delete(path string) Op { return Op{Kind: OpDelete, Path: path} }

// Insert returns an OpInsert operation supplying size and hash directly.
func Insert(path string, size uint64, hash string) Op {
	return Op{Kind: OpInsert, Path: path, Size: size, Hash: hash}
}

// ApplyChangeSet runs ops against db in sequence and returns a new,
// immutable DB; db itself is left untouched. A failing OpAdd (the path
// cannot be opened or hashed) leaves that path's prior state untouched and
// logs a warning rather than aborting the remaining operations.
func ApplyChangeSet(db *DB, ops []Op) *DB {
	entries, order := db.clone()
	for _, op := range ops {
		switch op.Kind {
		case OpDelete:
			order = deletePath(entries, order, op.Path)
		case OpInsert:
			m, existed := entries[op.Path]
			if !existed {
				m = Meta{Source: Source{Kind: Unspecified}}
			}
			m.Trusted = Record{Path: op.Path, Size: op.Size, Hash: op.Hash}
			order = set(entries, order, op.Path, m)
		case OpAdd:
			rec, err := hashFromDisk(op.Path)
			if err != nil {
				logger.Warn(fmt.Sprintf("trust: add %s: %v", op.Path, err))
				continue
			}
			m, existed := entries[op.Path]
			if !existed {
				m = Meta{Source: Source{Kind: Unspecified}}
			}
			m.Trusted = rec
			order = set(entries, order, op.Path, m)
		}
	}
	return &DB{entries: entries, order: order}
}

func hashFromDisk(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return Record{}, err
	}
	hash, err := hashutil.StreamSHA256(f)
	if err != nil {
		return Record{}, err
	}
	return Record{Path: path, Size: uint64(info.Size()), Hash: hash}, nil
}

package trust

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBMergeFirstSeenWins(t *testing.T) {
	db := NewDB()
	db = db.Merge([]Record{{Path: "/a", Size: 1, Hash: "h1"}}, Source{Kind: AncillaryFile})
	db = db.Merge([]Record{{Path: "/a", Size: 2, Hash: "h2"}}, Source{Kind: PackageManager})

	m, ok := db.Get("/a")
	require.True(t, ok)
	assert.EqualValues(t, 1, m.Trusted.Size)
	assert.Equal(t, AncillaryFile, m.Source.Kind)
}

func TestDBMergeIsImmutable(t *testing.T) {
	db := NewDB()
	db2 := db.Merge([]Record{{Path: "/a", Size: 1, Hash: "h"}}, Source{Kind: AncillaryFile})
	assert.Equal(t, 0, db.Len())
	assert.Equal(t, 1, db2.Len())
}

func TestParseLastTwoFieldsAllowsSpacesInPath(t *testing.T) {
	path, size, hash, err := parseLastTwoFields("/opt/my app/bin/run 123 deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "/opt/my app/bin/run", path)
	assert.EqualValues(t, 123, size)
	assert.Equal(t, "deadbeef", hash)
}

func TestParseLastTwoFieldsRejectsShortLines(t *testing.T) {
	_, _, _, err := parseLastTwoFields("onlyonefield")
	require.Error(t, err)
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, MalformattedTrustEntry, lerr.Kind)
}

func TestLoadAncillaryFileSkipsBlankAndCommentLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fapolicyd.trust")
	require.NoError(t, os.WriteFile(path, []byte("# header\n\n/bin/ls 123 abcdef\n"), 0o644))

	recs, err := LoadAncillaryFile(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "/bin/ls", recs[0].Path)
}

func TestLoadAncillaryFileMissingIsNotAnError(t *testing.T) {
	recs, err := LoadAncillaryFile(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Nil(t, recs)
}

func TestLoadAncillaryDirTagsEntriesWithFileName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "myapp.trust"), []byte("/opt/myapp/bin 10 deadbeef\n"), 0o644))

	entries, err := LoadAncillaryDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "myapp.trust", entries[0].FileName)
	assert.Equal(t, "/opt/myapp/bin", entries[0].Record.Path)
}

func TestApplyChangeSetInsertThenDelete(t *testing.T) {
	db := NewDB()
	db = ApplyChangeSet(db, []Op{
		Insert("/a", 1, "h1"),
		Insert("/b", 2, "h2"),
		Delete("/a"),
	})
	assert.Equal(t, 1, db.Len())
	_, ok := db.Get("/a")
	assert.False(t, ok)
	m, ok := db.Get("/b")
	require.True(t, ok)
	assert.Equal(t, Unspecified, m.Source.Kind)
}

func TestApplyChangeSetAddHashesFromDisk(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "bin")
	require.NoError(t, os.WriteFile(fp, []byte("hello world"), 0o644))

	db := ApplyChangeSet(NewDB(), []Op{Add(fp)})
	m, ok := db.Get(fp)
	require.True(t, ok)
	assert.EqualValues(t, 11, m.Trusted.Size)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", m.Trusted.Hash)
}

func TestApplyChangeSetAddMissingFileLeavesDBUntouched(t *testing.T) {
	db := ApplyChangeSet(NewDB(), []Op{Add(filepath.Join(t.TempDir(), "nope"))})
	assert.Equal(t, 0, db.Len())
}

func TestReconcileDetectsMissingAndDiscrepancy(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	require.NoError(t, os.WriteFile(present, []byte("hello world"), 0o644))
	missing := filepath.Join(dir, "missing")

	db := NewDB()
	db = db.Merge([]Record{
		{Path: present, Size: 999, Hash: "wrong"},
		{Path: missing, Size: 1, Hash: "h"},
	}, Source{Kind: AncillaryFile})

	var updates []string
	done := false
	out := Reconcile(db, func(path string, actual *Actual, status Status, err error) {
		require.NoError(t, err)
		updates = append(updates, path)
	}, func() { done = true })

	assert.True(t, done)
	assert.ElementsMatch(t, []string{present, missing}, updates)

	pm, _ := out.Get(present)
	require.NotNil(t, pm.Status)
	assert.Equal(t, Discrepancy, pm.Status.Kind)

	mm, _ := out.Get(missing)
	require.NotNil(t, mm.Status)
	assert.Equal(t, Missing, mm.Status.Kind)
}

func TestLoadKVDecodesTypeTaggedEntries(t *testing.T) {
	dir := t.TempDir()
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte("trust.db:/bin/ls"), []byte("1 123 abcdef")); err != nil {
			return err
		}
		return txn.Set([]byte("trust.db:/etc/conf"), []byte("2 45 deadbeef"))
	}))
	require.NoError(t, db.Close())

	metas, err := LoadKV(dir)
	require.NoError(t, err)
	require.Len(t, metas, 2)

	byPath := make(map[string]Meta, len(metas))
	for _, m := range metas {
		byPath[m.Trusted.Path] = m
	}
	assert.Equal(t, PackageManager, byPath["/bin/ls"].Source.Kind)
	assert.EqualValues(t, 123, byPath["/bin/ls"].Trusted.Size)
	assert.Equal(t, AncillaryFile, byPath["/etc/conf"].Source.Kind)
}

func TestChunksOf100(t *testing.T) {
	paths := make([]string, 250)
	for i := range paths {
		paths[i] = "p"
	}
	chunks := chunksOf100(paths)
	// 250/100 + 1 == 3 chunks
	assert.Len(t, chunks, 3)
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	assert.Equal(t, 250, total)
}

func TestWritePartitionsBySource(t *testing.T) {
	dir := t.TempDir()
	ancillaryFile := filepath.Join(dir, "fapolicyd.trust")
	ancillaryDir := filepath.Join(dir, "trust.d")

	db := NewDB()
	db = db.Merge([]Record{{Path: "/a", Size: 1, Hash: "h1"}}, Source{Kind: AncillaryFile})
	db = db.Merge([]Record{{Path: "/pkg", Size: 2, Hash: "h2"}}, Source{Kind: PackageManager})
	entries, order := db.clone()
	order = set(entries, order, "/b", Meta{
		Trusted: Record{Path: "/b", Size: 3, Hash: "h3"},
		Source:  Source{Kind: AncillaryDirEntry, FileName: "myapp.trust"},
	})
	db = &DB{entries: entries, order: order}

	require.NoError(t, Write(db, ancillaryFile, ancillaryDir))

	fileData, err := os.ReadFile(ancillaryFile)
	require.NoError(t, err)
	assert.Equal(t, "/a 1 h1\n", string(fileData))

	dirData, err := os.ReadFile(filepath.Join(ancillaryDir, "myapp.trust"))
	require.NoError(t, err)
	assert.Equal(t, "/b 3 h3\n", string(dirData))

	_, err = os.Stat(filepath.Join(ancillaryDir, "pkg"))
	assert.True(t, os.IsNotExist(err))
}

package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFileTypesMarksSetReference(t *testing.T) {
	src := "%scripts=text/x-shellscript,text/x-python\n" +
		"allow perm=execute all : ftype=scripts\n"
	db := NewDB(ParseSource(src))
	resolved := ResolveFileTypes(db)

	r, ok := resolved.Rule(1)
	require.True(t, ok)
	part := r.Rule.Object.Parts[0]
	require.Equal(t, ObjFileType, part.Key)
	assert.True(t, part.FileType.SetRef)
	assert.Equal(t, "scripts", part.FileType.Value)
}

func TestResolveFileTypesLeavesLiteralMimeUnset(t *testing.T) {
	db := NewDB(ParseSource("allow perm=execute all : ftype=application/x-executable\n"))
	resolved := ResolveFileTypes(db)

	r, ok := resolved.Rule(1)
	require.True(t, ok)
	assert.False(t, r.Rule.Object.Parts[0].FileType.SetRef)
}

func TestResolveFileTypesDoesNotMutateOriginalDB(t *testing.T) {
	src := "%scripts=text/x-shellscript\n" +
		"allow perm=execute all : ftype=scripts\n"
	db := NewDB(ParseSource(src))
	_ = ResolveFileTypes(db)

	r, ok := db.Rule(1)
	require.True(t, ok)
	assert.False(t, r.Rule.Object.Parts[0].FileType.SetRef, "resolving must not mutate the source DB")
}

func TestLintL005WarnsOnMalformedFileType(t *testing.T) {
	db := NewDB(ParseSource("allow perm=execute all : ftype=not-a-mime\n"))
	linted := Lint(db)

	r, ok := linted.Rule(1)
	require.True(t, ok)
	require.True(t, r.HasMsg)
	assert.Equal(t, l005Message, r.Msg)
}

func TestLintL005AcceptsKnownSetAndValidMime(t *testing.T) {
	src := "%scripts=text/x-shellscript\n" +
		"allow perm=execute all : ftype=scripts\n" +
		"allow perm=open all : ftype=application/x-executable\n"
	db := NewDB(ParseSource(src))
	linted := Lint(db)

	for _, id := range []int{1, 2} {
		r, ok := linted.Rule(id)
		require.True(t, ok)
		assert.False(t, r.HasMsg, "rule %d should not warn", id)
	}
}

package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionRoundTrip(t *testing.T) {
	for _, s := range []string{"allow", "allow_log", "allow_syslog", "allow_audit", "deny", "deny_log", "deny_syslog", "deny_audit"} {
		d, ok := ParseDecision(s)
		require.True(t, ok, s)
		assert.Equal(t, s, d.String())
	}
	_, ok := ParseDecision("bogus")
	assert.False(t, ok)
}

func TestPermissionDisplay(t *testing.T) {
	assert.Equal(t, "perm=any", PermAny.String())
	assert.Equal(t, "perm=open", PermOpen.String())
	assert.Equal(t, "perm=execute", PermExecute.String())
}

func TestSubjectDisplay(t *testing.T) {
	subj := Subject{Parts: []SubjectPart{
		{Key: SubjUID, UInt: 42},
		{Key: SubjTrust, Trust: true},
	}}
	assert.Equal(t, "uid=42 trust=1", subj.String())
}

func TestObjectIsAllAndPath(t *testing.T) {
	obj := Object{Parts: []ObjectPart{{Key: ObjPath, Str: "/usr/bin/ssh"}}}
	p, ok := obj.Path()
	require.True(t, ok)
	assert.Equal(t, "/usr/bin/ssh", p)
	assert.False(t, obj.IsAll())

	all := Object{Parts: []ObjectPart{{Key: ObjAll}}}
	assert.True(t, all.IsAll())
}

func TestSetDisplay(t *testing.T) {
	s := Set{Name: "lang", Values: []string{"application/x-bytecode.ocaml", "text/x-java"}}
	assert.Equal(t, "%lang=application/x-bytecode.ocaml,text/x-java", s.String())
}

func TestParseRuleLineHappyPath(t *testing.T) {
	entries := ParseSource("deny_audit perm=open exe=/usr/bin/ssh : dir=/opt\n")
	require.Len(t, entries, 1)
	e := entries[0]
	require.Equal(t, ValidRule, e.Kind)
	assert.Equal(t, DenyAudit, e.Rule.Decision)
	assert.Equal(t, PermOpen, e.Rule.Permission)
	exe, ok := e.Rule.Subject.Exe()
	require.True(t, ok)
	assert.Equal(t, "/usr/bin/ssh", exe)
	assert.Equal(t, "deny_audit perm=open exe=/usr/bin/ssh : dir=/opt", e.Rule.String())
}

func TestParseRuleLineRoundTrip(t *testing.T) {
	src := "allow perm=any all : all\n"
	entries := ParseSource(src)
	require.Len(t, entries, 1)
	require.Equal(t, ValidRule, entries[0].Kind)
	assert.Equal(t, "allow perm=any all : all", entries[0].Rule.String())
}

func TestParseSourceTracksOrigin(t *testing.T) {
	src := "[10-a.rules]\nallow perm=any all : all\n[20-b.rules]\ndeny perm=any all : all\n"
	entries := ParseSource(src)
	require.Len(t, entries, 2)
	assert.Equal(t, "10-a.rules", entries[0].Origin)
	assert.Equal(t, "20-b.rules", entries[1].Origin)
}

func TestParseSourceBlankAndCommentLinesBecomeCommentEntries(t *testing.T) {
	entries := ParseSource("\n# a comment\n")
	require.Len(t, entries, 2)
	assert.Equal(t, CommentEntry, entries[0].Kind)
	assert.Equal(t, CommentEntry, entries[1].Kind)
	assert.Equal(t, "# a comment", entries[1].Text)
}

func TestParseSourceMalformedFileMarker(t *testing.T) {
	entries := ParseSource("[]\n")
	require.Len(t, entries, 1)
	require.Equal(t, InvalidEntry, entries[0].Kind)
	pe, ok := entries[0].Err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, MalformedFileMarker, pe.Kind)
}

func TestParseSourceMalformedFileMarkerWithSlash(t *testing.T) {
	entries := ParseSource("[a/b]\n")
	require.Len(t, entries, 1)
	require.Equal(t, InvalidEntry, entries[0].Kind)
}

func TestParseSourceMissingSeparator(t *testing.T) {
	entries := ParseSource("allow perm=any all\n")
	require.Len(t, entries, 1)
	require.Equal(t, InvalidEntry, entries[0].Kind)
	pe, ok := entries[0].Err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, MissingSeparator, pe.Kind)
}

func TestParseSourceUnknownDecision(t *testing.T) {
	entries := ParseSource("maybe perm=any all : all\n")
	require.Len(t, entries, 1)
	pe, ok := entries[0].Err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, UnknownDecision, pe.Kind)
}

func TestParseSourceExpectedPermTag(t *testing.T) {
	entries := ParseSource("allow foo=any all : all\n")
	require.Len(t, entries, 1)
	pe, ok := entries[0].Err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, ExpectedPermTag, pe.Kind)
}

func TestParseSourceExpectedPermType(t *testing.T) {
	entries := ParseSource("allow perm=sometimes all : all\n")
	require.Len(t, entries, 1)
	pe, ok := entries[0].Err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, ExpectedPermType, pe.Kind)
}

func TestParseSourceUnknownSubjectPart(t *testing.T) {
	entries := ParseSource("allow perm=any nonsense=1 : all\n")
	require.Len(t, entries, 1)
	pe, ok := entries[0].Err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, UnknownSubjectPart, pe.Kind)
}

func TestParseSourceExpectedInt(t *testing.T) {
	entries := ParseSource("allow perm=any uid=notanumber : all\n")
	require.Len(t, entries, 1)
	pe, ok := entries[0].Err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, ExpectedInt, pe.Kind)
}

func TestParseSourceObjectPartExpected(t *testing.T) {
	entries := ParseSource("allow perm=any all : \n")
	require.Len(t, entries, 1)
	pe, ok := entries[0].Err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, ObjectPartExpected, pe.Kind)
}

func TestParseSourceExpectedBoolean(t *testing.T) {
	entries := ParseSource("allow perm=any all : trust=maybe\n")
	require.Len(t, entries, 1)
	pe, ok := entries[0].Err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, ExpectedBoolean, pe.Kind)
}

func TestParseSourceSetDefinition(t *testing.T) {
	entries := ParseSource("%lang=text/x-lua,text/x-java\n")
	require.Len(t, entries, 1)
	require.Equal(t, ValidSet, entries[0].Kind)
	assert.Equal(t, "lang", entries[0].Set.Name)
	assert.Equal(t, []string{"text/x-lua", "text/x-java"}, entries[0].Set.Values)
}

func TestParseSourceMalformedSet(t *testing.T) {
	entries := ParseSource("%=novalue\n")
	require.Len(t, entries, 1)
	assert.Equal(t, InvalidSetEntry, entries[0].Kind)
	require.Error(t, entries[0].Err)
}

func TestParseSourceContinuesAfterInvalidLine(t *testing.T) {
	src := "bogus line here\nallow perm=any all : all\n"
	entries := ParseSource(src)
	require.Len(t, entries, 2)
	assert.Equal(t, InvalidEntry, entries[0].Kind)
	assert.Equal(t, ValidRule, entries[1].Kind)
}

func TestFileTypeRefDisplayIsBareNameRegardlessOfSetRef(t *testing.T) {
	lit := FileTypeRef{Value: "application/x-sharedlib"}
	assert.Equal(t, "application/x-sharedlib", lit.String())
	ref := FileTypeRef{SetRef: true, Value: "lang"}
	assert.Equal(t, "lang", ref.String())
}

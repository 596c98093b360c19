package rules

import "fmt"

// Trace carries the original source text alongside the slice currently
// being parsed and that slice's absolute byte offset into the original,
// so every error produced along the way can report where it occurred
// without the caller re-scanning the source (spec §4.E "Trace and
// errors").
type Trace struct {
	Original string
	Slice    string
	Offset   int
}

// NewTrace starts a Trace over the whole of s.
func NewTrace(s string) Trace {
	return Trace{Original: s, Slice: s, Offset: 0}
}

// Advance returns a Trace over t.Slice[n:], with Offset adjusted to match.
func (t Trace) Advance(n int) Trace {
	return Trace{Original: t.Original, Slice: t.Slice[n:], Offset: t.Offset + n}
}

// WithSlice returns a Trace over an explicit sub-slice of t.Slice starting
// at t's current offset, used when a sub-parser consumes a bounded token
// instead of the whole remaining slice.
func (t Trace) WithSlice(s string) Trace {
	return Trace{Original: t.Original, Slice: s, Offset: t.Offset}
}

// ErrKind enumerates the rule-parser failure modes from spec §4.E.
type ErrKind int

const (
	ExpectedDecision ErrKind = iota
	UnknownDecision
	ExpectedPermTag
	ExpectedPermAssignment
	ExpectedPermType
	SubjectPartExpected
	UnknownSubjectPart
	ObjectPartExpected
	UnknownObjectPart
	MissingSeparator
	ExpectedInt
	ExpectedFilePath
	ExpectedDirPath
	ExpectedPattern
	ExpectedBoolean
	ExpectedFileType
	ExpectedEndOfInput
	MalformedFileMarker
)

var errKindText = map[ErrKind]string{
	ExpectedDecision:       "ExpectedDecision",
	UnknownDecision:        "UnknownDecision",
	ExpectedPermTag:        "ExpectedPermTag",
	ExpectedPermAssignment: "ExpectedPermAssignment",
	ExpectedPermType:       "ExpectedPermType",
	SubjectPartExpected:    "SubjectPartExpected",
	UnknownSubjectPart:     "UnknownSubjectPart",
	ObjectPartExpected:     "ObjectPartExpected",
	UnknownObjectPart:      "UnknownObjectPart",
	MissingSeparator:       "MissingSeparator",
	ExpectedInt:            "ExpectedInt",
	ExpectedFilePath:       "ExpectedFilePath",
	ExpectedDirPath:        "ExpectedDirPath",
	ExpectedPattern:        "ExpectedPattern",
	ExpectedBoolean:        "ExpectedBoolean",
	ExpectedFileType:       "ExpectedFileType",
	ExpectedEndOfInput:     "ExpectedEndOfInput",
	MalformedFileMarker:    "MalformedFileMarker",
}

func (k ErrKind) String() string { return errKindText[k] }

// ParseError is a rule-parser failure attached to a span of the original
// source text.
type ParseError struct {
	Kind   ErrKind
	Start  int
	Length int
	Text   string // the offending text, when shorter than reproducing via Start/Length
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("rules: %s at offset %d (%q)", e.Kind, e.Start, e.Text)
}

func newParseError(t Trace, kind ErrKind, length int) *ParseError {
	text := t.Slice
	if length >= 0 && length <= len(text) {
		text = text[:length]
	}
	return &ParseError{Kind: kind, Start: t.Offset, Length: length, Text: text}
}

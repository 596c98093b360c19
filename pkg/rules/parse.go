package rules

import (
	"fmt"
	"strings"
)

// EntryKind discriminates one line's outcome in a parsed rule source.
type EntryKind int

const (
	ValidRule EntryKind = iota
	ValidRuleWithWarning
	ValidSet
	ValidSetWithWarning
	CommentEntry
	InvalidEntry
	InvalidSetEntry
)

// Entry is one (origin, RuleDBEntry) pair (spec §3/§4.E): the file marker
// in effect when the line was parsed, plus its outcome.
type Entry struct {
	Origin  string
	Kind    EntryKind
	Rule    Rule
	Set     Set
	Text    string // original line text; meaningful for Comment/Invalid*
	Warning string // meaningful for *WithWarning kinds, populated by the linter
	Err     error  // meaningful for Invalid/InvalidSet
}

// ParseSource parses a full rule source into an ordered entry sequence.
// File markers change Origin for subsequent entries but do not themselves
// produce an Entry. Malformed lines become InvalidEntry/InvalidSetEntry
// and parsing continues with the next line (spec §4.E "Semantics").
func ParseSource(text string) []Entry {
	var entries []Entry
	origin := ""
	offset := 0

	for _, raw := range splitLinesWithOffsets(text) {
		line := raw.line
		trimmed := strings.TrimSpace(line)
		lineOffset := raw.offset + leadingWhitespaceLen(line)

		switch {
		case trimmed == "":
			entries = append(entries, Entry{Origin: origin, Kind: CommentEntry, Text: line})

		case strings.HasPrefix(trimmed, "#"):
			entries = append(entries, Entry{Origin: origin, Kind: CommentEntry, Text: line})

		case strings.HasPrefix(trimmed, "["):
			name, err := parseFileMarker(trimmed)
			if err != nil {
				entries = append(entries, Entry{Origin: origin, Kind: InvalidEntry, Text: line, Err: err})
			} else {
				origin = name
			}

		case strings.HasPrefix(trimmed, "%"):
			set, err := parseSet(trimmed)
			if err != nil {
				entries = append(entries, Entry{Origin: origin, Kind: InvalidSetEntry, Text: line, Err: err})
			} else {
				entries = append(entries, Entry{Origin: origin, Kind: ValidSet, Set: set})
			}

		default:
			t := Trace{Original: text, Slice: trimmed, Offset: lineOffset}
			rule, err := parseRuleLine(t)
			if err != nil {
				entries = append(entries, Entry{Origin: origin, Kind: InvalidEntry, Text: line, Err: err})
			} else {
				entries = append(entries, Entry{Origin: origin, Kind: ValidRule, Rule: rule})
			}
		}

		offset += len(line) + 1
	}
	return entries
}

type lineOffset struct {
	line   string
	offset int
}

func splitLinesWithOffsets(s string) []lineOffset {
	var out []lineOffset
	offset := 0
	for {
		idx := strings.IndexByte(s, '\n')
		if idx < 0 {
			if s != "" {
				out = append(out, lineOffset{line: s, offset: offset})
			}
			break
		}
		out = append(out, lineOffset{line: strings.TrimSuffix(s[:idx], "\r"), offset: offset})
		s = s[idx+1:]
		offset += idx + 1
	}
	return out
}

func leadingWhitespaceLen(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t"))
}

// parseFileMarker validates "[ RELATIVE-FILE-NAME ]" and returns the name.
func parseFileMarker(trimmed string) (string, error) {
	if !strings.HasSuffix(trimmed, "]") {
		return "", &ParseError{Kind: MalformedFileMarker, Text: trimmed}
	}
	inner := trimmed[1 : len(trimmed)-1]
	if inner == "" || strings.ContainsAny(inner, "/\\") {
		return "", &ParseError{Kind: MalformedFileMarker, Text: trimmed}
	}
	return inner, nil
}

// parseSet decodes "%NAME=VALUE,VALUE,..." into a Set.
func parseSet(trimmed string) (Set, error) {
	body := strings.TrimPrefix(trimmed, "%")
	name, rest, ok := strings.Cut(body, "=")
	if !ok || name == "" {
		return Set{}, fmt.Errorf("rules: malformed set definition %q", trimmed)
	}
	for _, r := range name {
		if !isIdentRune(r) {
			return Set{}, fmt.Errorf("rules: invalid set name %q", name)
		}
	}
	values := strings.Split(rest, ",")
	if len(values) == 0 || (len(values) == 1 && values[0] == "") {
		return Set{}, fmt.Errorf("rules: set %q has no values", name)
	}
	return Set{Name: name, Values: values}, nil
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// parseRuleLine decodes "DECISION perm=TYPE SUBJECT-PARTS : OBJECT-PARTS".
func parseRuleLine(t Trace) (Rule, error) {
	fields := strings.Fields(t.Slice)
	sep := -1
	for i, f := range fields {
		if f == ":" {
			sep = i
			break
		}
	}
	if sep < 0 {
		return Rule{}, newParseError(t, MissingSeparator, len(t.Slice))
	}
	leftFields := fields[:sep]
	objectTokens := fields[sep+1:]

	if len(leftFields) == 0 {
		return Rule{}, newParseError(t, ExpectedDecision, 0)
	}
	decision, ok := ParseDecision(leftFields[0])
	if !ok {
		return Rule{}, newParseError(t, UnknownDecision, len(leftFields[0]))
	}

	if len(leftFields) < 2 {
		return Rule{}, newParseError(t, ExpectedPermTag, 0)
	}
	permField := leftFields[1]
	if !strings.HasPrefix(permField, "perm") {
		return Rule{}, newParseError(t, ExpectedPermTag, len(permField))
	}
	permField = strings.TrimPrefix(permField, "perm")
	if !strings.HasPrefix(permField, "=") {
		return Rule{}, newParseError(t, ExpectedPermAssignment, len(permField))
	}
	permType := strings.TrimPrefix(permField, "=")
	perm, ok := ParsePermission(permType)
	if !ok {
		return Rule{}, newParseError(t, ExpectedPermType, len(permType))
	}

	subjectTokens := leftFields[2:]
	if len(subjectTokens) == 0 {
		return Rule{}, newParseError(t, SubjectPartExpected, 0)
	}
	subject, err := parseSubjectParts(t, subjectTokens)
	if err != nil {
		return Rule{}, err
	}

	if len(objectTokens) == 0 {
		return Rule{}, newParseError(t, ObjectPartExpected, 0)
	}
	object, err := parseObjectParts(t, objectTokens)
	if err != nil {
		return Rule{}, err
	}

	return Rule{Subject: subject, Permission: perm, Object: object, Decision: decision}, nil
}

func parseSubjectParts(t Trace, tokens []string) (Subject, error) {
	parts := make([]SubjectPart, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "all" {
			parts = append(parts, SubjectPart{Key: SubjAll})
			continue
		}
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return Subject{}, newParseError(t, UnknownSubjectPart, len(tok))
		}
		switch key {
		case "uid", "gid", "pid":
			n, err := parseUint32(value)
			if err != nil {
				return Subject{}, newParseError(t, ExpectedInt, len(tok))
			}
			k := SubjUID
			if key == "gid" {
				k = SubjGID
			} else if key == "pid" {
				k = SubjPID
			}
			parts = append(parts, SubjectPart{Key: k, UInt: n})
		case "exe":
			if value == "" {
				return Subject{}, newParseError(t, ExpectedFilePath, len(tok))
			}
			parts = append(parts, SubjectPart{Key: SubjExe, Str: value})
		case "comm":
			if value == "" {
				return Subject{}, newParseError(t, UnknownSubjectPart, len(tok))
			}
			parts = append(parts, SubjectPart{Key: SubjComm, Str: value})
		case "pattern":
			if value == "" {
				return Subject{}, newParseError(t, ExpectedPattern, len(tok))
			}
			parts = append(parts, SubjectPart{Key: SubjPattern, Str: value})
		case "trust":
			b, ok := parseBoolFlag(value)
			if !ok {
				return Subject{}, newParseError(t, ExpectedBoolean, len(tok))
			}
			parts = append(parts, SubjectPart{Key: SubjTrust, Trust: b})
		default:
			return Subject{}, newParseError(t, UnknownSubjectPart, len(tok))
		}
	}
	return Subject{Parts: parts}, nil
}

func parseObjectParts(t Trace, tokens []string) (Object, error) {
	parts := make([]ObjectPart, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "all" {
			parts = append(parts, ObjectPart{Key: ObjAll})
			continue
		}
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return Object{}, newParseError(t, UnknownObjectPart, len(tok))
		}
		switch key {
		case "path":
			if value == "" {
				return Object{}, newParseError(t, ExpectedFilePath, len(tok))
			}
			parts = append(parts, ObjectPart{Key: ObjPath, Str: value})
		case "device":
			if value == "" {
				return Object{}, newParseError(t, ExpectedFilePath, len(tok))
			}
			parts = append(parts, ObjectPart{Key: ObjDevice, Str: value})
		case "dir":
			if value == "" {
				return Object{}, newParseError(t, ExpectedDirPath, len(tok))
			}
			parts = append(parts, ObjectPart{Key: ObjDir, Str: value})
		case "ftype":
			if value == "" {
				return Object{}, newParseError(t, ExpectedFileType, len(tok))
			}
			// ftype= carries a bare name; whether it denotes a literal MIME
			// type or a set reference is resolved later against the rule
			// DB's sets, so SetRef stays false until that resolution runs.
			parts = append(parts, ObjectPart{Key: ObjFileType, FileType: FileTypeRef{Value: value}})
		case "trust":
			b, ok := parseBoolFlag(value)
			if !ok {
				return Object{}, newParseError(t, ExpectedBoolean, len(tok))
			}
			parts = append(parts, ObjectPart{Key: ObjTrust, Trust: b})
		default:
			return Object{}, newParseError(t, UnknownObjectPart, len(tok))
		}
	}
	return Object{Parts: parts}, nil
}

func parseBoolFlag(s string) (bool, bool) {
	switch s {
	case "0":
		return false, true
	case "1":
		return true, true
	default:
		return false, false
	}
}

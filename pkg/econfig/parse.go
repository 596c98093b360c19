package econfig

import (
	"strconv"
	"strings"
)

// LineKind discriminates one parsed configuration line.
type LineKind int

const (
	LineValid LineKind = iota
	LineInvalid
	LineComment
	LineBlank
)

// Line is one parsed line of a configuration file or text, preserving
// source order and kind even when the content is invalid.
type Line struct {
	Kind  LineKind
	Key   Key
	Value Value
	Text  string // original text; meaningful for Invalid/Comment
	Err   string // reason, for Invalid lines
}

func (l Line) String() string {
	switch l.Kind {
	case LineValid:
		return l.Key.String() + "=" + l.Value.String()
	default:
		return l.Text
	}
}

// ParseText parses a full configuration source into an ordered Line
// sequence; malformed lines never abort parsing.
func ParseText(text string) []Line {
	var lines []Line
	raws := strings.Split(text, "\n")
	if n := len(raws); n > 0 && raws[n-1] == "" {
		raws = raws[:n-1]
	}
	for _, raw := range raws {
		s := strings.TrimSpace(raw)
		switch {
		case s == "":
			lines = append(lines, Line{Kind: LineBlank})
		case strings.HasPrefix(s, "#"):
			lines = append(lines, Line{Kind: LineComment, Text: s})
		default:
			lines = append(lines, parseConfigLine(s))
		}
	}
	return lines
}

func parseConfigLine(s string) Line {
	lhs, rhs, ok := strings.Cut(s, "=")
	if !ok || lhs == "" || rhs == "" {
		return Line{Kind: LineInvalid, Text: s, Err: "MalformedConfig"}
	}

	key, known := ParseKey(lhs)
	if !known {
		return Line{Kind: LineInvalid, Text: s, Err: "unknown"}
	}

	val, err := parseValue(key, rhs)
	if err != "" {
		return Line{Kind: LineInvalid, Text: s, Err: err}
	}
	return Line{Kind: LineValid, Key: key, Value: val}
}

func parseValue(key Key, rhs string) (Value, string) {
	switch key {
	case Permissive, DoStatReport, DetailedReport, RpmSha256Only, AllowFilesystemMark:
		b, ok := parseBool01(rhs)
		if !ok {
			return Value{}, "ExpectedBool"
		}
		return Value{Kind: VBool, Bool: b}, ""

	case NiceVal, QSize, DbMaxSize, SubjCacheSize, ObjCacheSize:
		n, err := strconv.ParseUint(rhs, 10, 64)
		if err != nil {
			return Value{}, "ExpectedNumber"
		}
		return Value{Kind: VUint, Uint: n}, ""

	case UID, GID:
		if rhs == "" {
			return Value{}, "ExpectedString"
		}
		return Value{Kind: VString, Str: rhs}, ""

	case WatchFs, SyslogFormat:
		list := strings.Split(rhs, ",")
		for _, item := range list {
			if item == "" {
				return Value{}, "ExpectedStringList"
			}
		}
		return Value{Kind: VStringList, List: list}, ""

	case Trust:
		var backends []TrustBackend
		for _, item := range strings.Split(rhs, ",") {
			b, ok := ParseTrustBackend(item)
			if !ok {
				return Value{}, "UnknownTrustBackend " + item
			}
			backends = append(backends, b)
		}
		return Value{Kind: VTrustList, Trust: backends}, ""

	case Integrity:
		i, ok := ParseIntegritySource(rhs)
		if !ok {
			return Value{}, "ExpectedIntegritySource"
		}
		return Value{Kind: VIntegrity, Integrity: i}, ""

	default:
		return Value{}, "unknown"
	}
}

func parseBool01(s string) (bool, bool) {
	switch s {
	case "0":
		return false, true
	case "1":
		return true, true
	default:
		return false, false
	}
}

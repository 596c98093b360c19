// Package rules implements the rule DSL: its lexer/parser (spec §4.E), the
// ordered rule DB, linter and writer (spec §4.F).
package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// Decision is the access decision fapolicyd reports to the kernel when a
// rule triggers.
type Decision int

const (
	Allow Decision = iota
	AllowLog
	AllowSyslog
	AllowAudit
	Deny
	DenyLog
	DenySyslog
	DenyAudit
)

var decisionText = map[Decision]string{
	Allow:       "allow",
	AllowLog:    "allow_log",
	AllowSyslog: "allow_syslog",
	AllowAudit:  "allow_audit",
	Deny:        "deny",
	DenyLog:     "deny_log",
	DenySyslog:  "deny_syslog",
	DenyAudit:   "deny_audit",
}

var textDecision = func() map[string]Decision {
	out := make(map[string]Decision, len(decisionText))
	for k, v := range decisionText {
		out[v] = k
	}
	return out
}()

func (d Decision) String() string { return decisionText[d] }

// ParseDecision parses one of the eight canonical decision tokens.
func ParseDecision(s string) (Decision, bool) {
	d, ok := textDecision[s]
	return d, ok
}

// Permission is the kind of filesystem access a rule matches.
type Permission int

const (
	PermAny Permission = iota
	PermOpen
	PermExecute
)

var permissionText = map[Permission]string{
	PermAny:     "any",
	PermOpen:    "open",
	PermExecute: "execute",
}

var textPermission = func() map[string]Permission {
	out := make(map[string]Permission, len(permissionText))
	for k, v := range permissionText {
		out[v] = k
	}
	return out
}()

// String renders the canonical "perm=TYPE" surface form.
func (p Permission) String() string { return "perm=" + permissionText[p] }

// ParsePermission parses a bare permission type token (without the
// "perm=" prefix, which callers strip during tokenizing).
func ParsePermission(s string) (Permission, bool) {
	p, ok := textPermission[s]
	return p, ok
}

// SubjectKey enumerates the recognized subject attribute keys.
type SubjectKey int

const (
	SubjAll SubjectKey = iota
	SubjUID
	SubjGID
	SubjPID
	SubjExe
	SubjComm
	SubjPattern
	SubjTrust
)

// SubjectPart is one attribute of a Subject; exactly one of the typed
// fields is meaningful, selected by Key.
type SubjectPart struct {
	Key   SubjectKey
	UInt  uint32
	Str   string
	Trust bool
}

func (p SubjectPart) String() string {
	switch p.Key {
	case SubjAll:
		return "all"
	case SubjUID:
		return fmt.Sprintf("uid=%d", p.UInt)
	case SubjGID:
		return fmt.Sprintf("gid=%d", p.UInt)
	case SubjPID:
		return fmt.Sprintf("pid=%d", p.UInt)
	case SubjExe:
		return "exe=" + p.Str
	case SubjComm:
		return "comm=" + p.Str
	case SubjPattern:
		return "pattern=" + p.Str
	case SubjTrust:
		return "trust=" + boolToC(p.Trust)
	default:
		return ""
	}
}

// Subject is an ordered, non-empty AND of SubjectPart attributes.
type Subject struct {
	Parts []SubjectPart
}

func (s Subject) String() string {
	parts := make([]string, len(s.Parts))
	for i, p := range s.Parts {
		parts[i] = p.String()
	}
	return strings.Join(parts, " ")
}

// IsAll reports whether s consists solely of the bare "all" attribute.
func (s Subject) IsAll() bool {
	return len(s.Parts) == 1 && s.Parts[0].Key == SubjAll
}

// Exe returns the subject's exe= value, if any.
func (s Subject) Exe() (string, bool) {
	for _, p := range s.Parts {
		if p.Key == SubjExe {
			return p.Str, true
		}
	}
	return "", false
}

// Comm returns the subject's comm= value, if any.
func (s Subject) Comm() (string, bool) {
	for _, p := range s.Parts {
		if p.Key == SubjComm {
			return p.Str, true
		}
	}
	return "", false
}

// ObjectKey enumerates the recognized object attribute keys.
type ObjectKey int

const (
	ObjAll ObjectKey = iota
	ObjPath
	ObjDir
	ObjDevice
	ObjFileType
	ObjTrust
)

// FileTypeRef is an object ftype= value: either a literal MIME type or a
// reference to a named set. Both render as the bare name in the ftype=
// position; which one a given name is gets resolved against the rule DB's
// sets, not from the ftype= syntax itself.
type FileTypeRef struct {
	SetRef bool
	Value  string // MIME literal, or set name when SetRef
}

func (f FileTypeRef) String() string { return f.Value }

// ObjectPart is one attribute of an Object; exactly one of the typed
// fields is meaningful, selected by Key.
type ObjectPart struct {
	Key      ObjectKey
	Str      string
	FileType FileTypeRef
	Trust    bool
}

func (p ObjectPart) String() string {
	switch p.Key {
	case ObjAll:
		return "all"
	case ObjPath:
		return "path=" + p.Str
	case ObjDir:
		return "dir=" + p.Str
	case ObjDevice:
		return "device=" + p.Str
	case ObjFileType:
		return "ftype=" + p.FileType.String()
	case ObjTrust:
		return "trust=" + boolToC(p.Trust)
	default:
		return ""
	}
}

// Object is an ordered, non-empty AND of ObjectPart attributes.
type Object struct {
	Parts []ObjectPart
}

func (o Object) String() string {
	parts := make([]string, len(o.Parts))
	for i, p := range o.Parts {
		parts[i] = p.String()
	}
	return strings.Join(parts, " ")
}

// IsAll reports whether o consists solely of the bare "all" attribute.
func (o Object) IsAll() bool {
	return len(o.Parts) == 1 && o.Parts[0].Key == ObjAll
}

// Path returns the object's path= value, if any.
func (o Object) Path() (string, bool) {
	for _, p := range o.Parts {
		if p.Key == ObjPath {
			return p.Str, true
		}
	}
	return "", false
}

// Rule is one access-control rule: subject, permission and object are
// AND'd together; when all match, decision is reported.
type Rule struct {
	Subject    Subject
	Permission Permission
	Object     Object
	Decision   Decision
}

// Equal reports structural equality, used by the duplicate-rule lint.
func (r Rule) Equal(other Rule) bool {
	return r.String() == other.String()
}

func (r Rule) String() string {
	return fmt.Sprintf("%s %s %s : %s", r.Decision, r.Permission, r.Subject, r.Object)
}

// Set is a named, ordered list of string values referenced from an
// object's ftype= attribute by name.
type Set struct {
	Name   string
	Values []string
}

func (s Set) String() string {
	return fmt.Sprintf("%%%s=%s", s.Name, strings.Join(s.Values, ","))
}

func boolToC(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

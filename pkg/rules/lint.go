package rules

import (
	"fmt"
	"os"
)

const (
	l001Message = "Using any+all+all here will short-circuit all other rules."
	l004Message = "Duplicate rules detected"
	l005Message = "The file type specified is not a known set or a valid MIME type."
)

// Lint runs L001-L005 against db and returns a copy with warnings attached:
// ValidRule entries that triggered a finding become ValidRuleWithWarning;
// set definitions are not checked. Object ftype= values are
// resolved against db's sets first (ResolveFileTypes), so L005 and any
// later consumer of the returned DB see SetRef already populated. Entries
// are otherwise unchanged, so Lint is idempotent to call again after
// edits.
func Lint(db *DB) *DB {
	resolved := ResolveFileTypes(db)
	out := append([]Entry(nil), resolved.entries...)
	rules := resolved.Rules()

	for i := range out {
		e := &out[i]
		if e.Kind != ValidRule {
			continue
		}
		id := ruleIDForIndex(out, i)
		var msgs []string
		if m := l001(id, len(rules), e.Rule); m != "" {
			msgs = append(msgs, m)
		}
		if m := l002SubjectExeMissing(e.Rule); m != "" {
			msgs = append(msgs, m)
		}
		if m := l003ObjectPathMissing(e.Rule); m != "" {
			msgs = append(msgs, m)
		}
		if m := l004DuplicateRule(id, e.Rule, rules); m != "" {
			msgs = append(msgs, m)
		}
		if m := l005MalformedFileType(e.Rule); m != "" {
			msgs = append(msgs, m)
		}
		if len(msgs) > 0 {
			e.Kind = ValidRuleWithWarning
			e.Warning = msgs[0]
		}
	}
	return &DB{entries: out}
}

func ruleIDForIndex(entries []Entry, idx int) int {
	id := 0
	for i := 0; i <= idx; i++ {
		if isRuleKind(entries[i].Kind) {
			id++
		}
	}
	return id
}

// l001 warns when a rule is a bare any+all+all located before any later
// rule: it matches everything and will short-circuit every rule below it.
// A rule in this shape as the last rule is the normal catch-all pattern
// and is not warned about.
func l001(id, total int, r Rule) string {
	if id < total && r.Permission == PermAny && r.Subject.IsAll() && r.Object.IsAll() {
		return l001Message
	}
	return ""
}

func l002SubjectExeMissing(r Rule) string {
	exe, ok := r.Subject.Exe()
	if !ok {
		return ""
	}
	if pathMissing(exe) {
		return "The exe specified does not exist."
	}
	return ""
}

func l003ObjectPathMissing(r Rule) string {
	for _, p := range r.Object.Parts {
		switch p.Key {
		case ObjDevice:
			if pathMissing(p.Str) {
				return pathDoesNotExistMessage("device")
			}
		case ObjDir:
			if pathMissing(p.Str) {
				return pathDoesNotExistMessage("directory")
			}
		case ObjPath:
			if pathMissing(p.Str) {
				return pathDoesNotExistMessage("path")
			}
		}
	}
	return ""
}

func pathDoesNotExistMessage(kind string) string {
	return fmt.Sprintf("The %s specified does not exist.", kind)
}

func pathMissing(p string) bool {
	_, err := os.Stat(p)
	return os.IsNotExist(err)
}

// l004DuplicateRule reports the first earlier or later rule with identical
// string rendering to r, 1-indexed, in "Duplicate rules detected (a, b)"
// form.
func l004DuplicateRule(id int, r Rule, rules []RuleEntry) string {
	for _, other := range rules {
		if other.ID == id || !other.Valid {
			continue
		}
		if other.Rule.Equal(r) {
			return fmt.Sprintf("%s (%d, %d)", l004Message, id, other.ID)
		}
	}
	return ""
}

// l005MalformedFileType warns when an object ftype= value resolved to
// neither a known set nor a syntactically valid MIME literal.
func l005MalformedFileType(r Rule) string {
	for _, p := range r.Object.Parts {
		if p.Key == ObjFileType && malformedFileType(p.FileType) {
			return l005Message
		}
	}
	return ""
}

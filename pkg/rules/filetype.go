package rules

import "strings"

// ResolveFileTypes returns a copy of db with every object ftype= value
// resolved against the rule DB's own set definitions (spec §4.E/§4.F):
// FileTypeRef.SetRef is set to true when Value names a set defined
// anywhere in db, false otherwise. db itself is left untouched, so
// ResolveFileTypes is safe to call on a DB already shared elsewhere, and
// idempotent to call again after edits.
func ResolveFileTypes(db *DB) *DB {
	setNames := make(map[string]bool, len(db.entries))
	for _, s := range db.Sets() {
		setNames[s.Name] = true
	}

	out := make([]Entry, len(db.entries))
	for i, e := range db.entries {
		out[i] = e
		if (e.Kind != ValidRule && e.Kind != ValidRuleWithWarning) || !objectHasFileType(e.Rule.Object) {
			continue
		}
		parts := append([]ObjectPart(nil), e.Rule.Object.Parts...)
		for j, p := range parts {
			if p.Key != ObjFileType {
				continue
			}
			p.FileType.SetRef = setNames[p.FileType.Value]
			parts[j] = p
		}
		out[i].Rule.Object = Object{Parts: parts}
	}
	return &DB{entries: out}
}

func objectHasFileType(o Object) bool {
	for _, p := range o.Parts {
		if p.Key == ObjFileType {
			return true
		}
	}
	return false
}

// malformedFileType reports whether f is neither a resolved set reference
// nor a literal MIME value shaped "type/subtype".
func malformedFileType(f FileTypeRef) bool {
	if f.SetRef {
		return false
	}
	typ, sub, ok := strings.Cut(f.Value, "/")
	return !ok || typ == "" || sub == "" || strings.Contains(sub, "/")
}

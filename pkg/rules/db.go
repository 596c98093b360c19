package rules

// RuleEntry is the public, 1-indexed view of one rule-producing line in a
// DB: its rendered text, the origin file it came from, and any lint
// warning attached by Lint.
type RuleEntry struct {
	ID     int
	Text   string
	Origin string
	Valid  bool
	Msg    string
	HasMsg bool
	Rule   Rule
}

// DB is an ordered collection of parsed rule-source entries, as produced by
// ParseSource or LoadDir and then optionally passed through Lint.
type DB struct {
	entries []Entry
}

// NewDB wraps an already-parsed entry sequence (e.g. from ParseSource or
// LoadDir) into a DB.
func NewDB(entries []Entry) *DB {
	return &DB{entries: append([]Entry(nil), entries...)}
}

// Len returns the total number of entries, rule and non-rule alike.
func (db *DB) Len() int { return len(db.entries) }

// IsEmpty reports whether the DB has no entries at all.
func (db *DB) IsEmpty() bool { return len(db.entries) == 0 }

func isRuleKind(k EntryKind) bool {
	return k == ValidRule || k == ValidRuleWithWarning || k == InvalidEntry
}

// Rules returns every rule-producing entry (valid or invalid), 1-indexed in
// source order; set definitions and comments are excluded.
func (db *DB) Rules() []RuleEntry {
	var out []RuleEntry
	id := 0
	for _, e := range db.entries {
		if !isRuleKind(e.Kind) {
			continue
		}
		id++
		out = append(out, entryToRuleEntry(id, e))
	}
	return out
}

// Rule returns the num'th rule entry (1-indexed), as Rules() would produce
// it.
func (db *DB) Rule(num int) (RuleEntry, bool) {
	id := 0
	for _, e := range db.entries {
		if !isRuleKind(e.Kind) {
			continue
		}
		id++
		if id == num {
			return entryToRuleEntry(id, e), true
		}
	}
	return RuleEntry{}, false
}

func entryToRuleEntry(id int, e Entry) RuleEntry {
	re := RuleEntry{ID: id, Origin: e.Origin, Rule: e.Rule}
	switch e.Kind {
	case ValidRule:
		re.Valid = true
		re.Text = e.Rule.String()
	case ValidRuleWithWarning:
		re.Valid = true
		re.Text = e.Rule.String()
		re.Msg = e.Warning
		re.HasMsg = true
	case InvalidEntry:
		re.Valid = false
		re.Text = e.Text
	}
	return re
}

// Sets returns every valid set definition in source order.
func (db *DB) Sets() []Set {
	var out []Set
	for _, e := range db.entries {
		if e.Kind == ValidSet || e.Kind == ValidSetWithWarning {
			out = append(out, e.Set)
		}
	}
	return out
}

// Entries exposes the raw (origin, entry) sequence, e.g. for the writer.
func (db *DB) Entries() []Entry {
	return append([]Entry(nil), db.entries...)
}

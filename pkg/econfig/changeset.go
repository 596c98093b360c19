package econfig

// ChangeSet holds pending text edits to a configuration DB: Set re-parses
// text into a fresh DB; Apply returns the current one.
type ChangeSet struct {
	db  *DB
	src string
}

// NewChangeSet starts an empty change set over db's current state.
func NewChangeSet(db *DB) *ChangeSet {
	if db == nil {
		db = NewDB(nil)
	}
	return &ChangeSet{db: db}
}

// Set re-parses text and swaps it in as the change set's DB.
func (cs *ChangeSet) Set(text string) *DB {
	cs.db = NewDB(ParseText(text))
	cs.src = text
	return cs.db
}

// Apply returns the change set's current DB.
func (cs *ChangeSet) Apply() *DB { return cs.db }

// Source returns the last text passed to Set, if any.
func (cs *ChangeSet) Source() (string, bool) {
	if cs.src == "" {
		return "", false
	}
	return cs.src, true
}

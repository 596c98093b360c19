package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// NewOSDir returns a billy filesystem rooted at dir, for use with LoadDir
// and WriteDir against the real filesystem.
func NewOSDir(dir string) billy.Filesystem {
	return osfs.New(dir)
}

// LoadDir reads every "*.rules" file directly under fs (not recursing into
// subdirectories), in lexicographic filename order, and parses them into a
// single DB with Origin set to each file's base name. Object ftype= values
// are resolved against the DB's own sets before it is returned, so callers
// never see an unresolved FileTypeRef from a DB loaded off disk.
func LoadDir(fs billy.Filesystem) (*DB, error) {
	infos, err := fs.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("rules: read dir: %w", err)
	}
	var names []string
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		if ok, _ := doublestar.Match("*.rules", info.Name()); ok {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)

	var entries []Entry
	for _, name := range names {
		text, err := readFile(fs, name)
		if err != nil {
			return nil, err
		}
		for _, e := range ParseSource(text) {
			if e.Origin == "" {
				e.Origin = name
			}
			entries = append(entries, e)
		}
	}
	return ResolveFileTypes(NewDB(entries)), nil
}

// WriteDir writes db back out as one file per distinct Origin under fs.
// It does not touch the flattened compiled rules the enforcer actually
// loads at startup; callers write those separately with WriteCompiled, at
// a path fixed independently of fs's root (spec §4.F/§6).
func WriteDir(fs billy.Filesystem, db *DB) error {
	type group struct {
		name  string
		lines []string
	}
	var order []string
	byOrigin := make(map[string]*group)

	for _, e := range db.entries {
		line := entryLine(e)
		if line == "" {
			continue
		}
		origin := e.Origin
		if origin == "" {
			origin = "default.rules"
		}
		g, ok := byOrigin[origin]
		if !ok {
			g = &group{name: origin}
			byOrigin[origin] = g
			order = append(order, origin)
		}
		g.lines = append(g.lines, line)
	}

	for _, name := range order {
		if err := writeFileLines(fs, name, byOrigin[name].lines); err != nil {
			return err
		}
	}
	return nil
}

// WriteCompiled writes the flattened, in-order text of every valid rule in
// db to the real filesystem at path, the form the enforcer actually loads
// at startup (spec §4.F/§6). Unlike WriteDir's per-origin files, path is a
// fixed location (e.g. /etc/fapolicyd/compiled.rules) never relative to
// the rules directory, so this writes straight to the OS filesystem
// rather than through a billy.Filesystem rooted elsewhere, the same way
// trust.Write and econfig.WriteFile write their own fixed paths.
func WriteCompiled(path string, db *DB) error {
	var compiled []string
	for _, e := range db.entries {
		if e.Kind == ValidRule || e.Kind == ValidRuleWithWarning {
			compiled = append(compiled, e.Rule.String())
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("rules: mkdir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rules: create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	for _, l := range compiled {
		if _, err := f.WriteString(l + "\n"); err != nil {
			return fmt.Errorf("rules: write %s: %w", path, err)
		}
	}
	return nil
}

func entryLine(e Entry) string {
	switch e.Kind {
	case ValidRule, ValidRuleWithWarning:
		return e.Rule.String()
	case ValidSet, ValidSetWithWarning:
		return e.Set.String()
	case CommentEntry, InvalidEntry, InvalidSetEntry:
		return e.Text
	default:
		return ""
	}
}

func readFile(fs billy.Filesystem, name string) (string, error) {
	f, err := fs.Open(name)
	if err != nil {
		return "", fmt.Errorf("rules: open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	return sb.String(), nil
}

func writeFileLines(fs billy.Filesystem, name string, lines []string) error {
	f, err := fs.Create(filepath.Base(name))
	if err != nil {
		return fmt.Errorf("rules: create %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	for _, l := range lines {
		if _, err := f.Write([]byte(l + "\n")); err != nil {
			return fmt.Errorf("rules: write %s: %w", name, err)
		}
	}
	return nil
}

package trust

import (
	"fmt"
	"os"
	"path/filepath"
)

// Write partitions db's entries by source tag and writes them back per
// spec §4.D: AncillaryFile (and source-less) records go to ancillaryFile
// as "path size hash\n"; AncillaryDirEntry records are grouped by file
// name and written into ancillaryDir under that name; PackageManager
// records are never written back. Write order within a group follows the
// stable insertion order recorded when each Meta was added to db.
func Write(db *DB, ancillaryFile, ancillaryDir string) error {
	var fileLines []string
	dirGroups := make(map[string][]string)
	var dirNames []string

	for _, path := range db.OrderedPaths() {
		m, _ := db.Get(path)
		line := formatLine(m.Trusted)
		switch m.Source.Kind {
		case PackageManager:
			continue
		case AncillaryDirEntry:
			name := m.Source.FileName
			if _, seen := dirGroups[name]; !seen {
				dirNames = append(dirNames, name)
			}
			dirGroups[name] = append(dirGroups[name], line)
		default:
			// AncillaryFile, and the source-less "operator added without a
			// source choice" case, both land in the single ancillary file.
			fileLines = append(fileLines, line)
		}
	}

	if err := writeLines(ancillaryFile, fileLines); err != nil {
		return err
	}

	if len(dirNames) > 0 {
		if err := os.MkdirAll(ancillaryDir, 0o755); err != nil {
			return fmt.Errorf("trust: create ancillary dir %s: %w", ancillaryDir, err)
		}
	}
	for _, name := range dirNames {
		if err := writeLines(filepath.Join(ancillaryDir, name), dirGroups[name]); err != nil {
			return err
		}
	}
	return nil
}

func formatLine(r Record) string {
	return fmt.Sprintf("%s %d %s\n", r.Path, r.Size, r.Hash)
}

func writeLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("trust: write %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	for _, l := range lines {
		if _, err := f.WriteString(l); err != nil {
			return fmt.Errorf("trust: write %s: %w", path, err)
		}
	}
	return nil
}

// Package inventory reads the host package manager's file manifest and
// turns it into candidate trust.Record entries (spec §4.B).
package inventory

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ctc-oss/fapolicy-toolkit/pkg/logger"
	"github.com/ctc-oss/fapolicy-toolkit/pkg/pathfilter"
	"github.com/ctc-oss/fapolicy-toolkit/pkg/trust"
)

// s_IFMT/s_IFDIR mirror the POSIX stat(2) mode bits; the dump format reports
// st_mode as an octal string and directories must be excluded regardless of
// the underlying package manager.
const (
	sIFMT  = 0170000
	sIFDIR = 0040000
)

// ErrKind distinguishes why inventory collection failed or was skipped.
type ErrKind int

const (
	// ToolNotFound means the package manager binary is not on PATH.
	ToolNotFound ErrKind = iota
	// ToolExecutionFailed means the dump command ran but returned an error.
	ToolExecutionFailed
	// ParseFailed means a dump record did not match the expected grammar.
	ParseFailed
)

func (k ErrKind) String() string {
	switch k {
	case ToolNotFound:
		return "ToolNotFound"
	case ToolExecutionFailed:
		return "ToolExecutionFailed"
	case ParseFailed:
		return "ParseFailed"
	default:
		return "Unknown"
	}
}

// Error reports a failure collecting or parsing the inventory. None of
// these are fatal to start-up: callers fall back to an empty inventory.
type Error struct {
	Kind ErrKind
	Line int // meaningful only for ParseFailed
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == ParseFailed {
		return fmt.Sprintf("inventory: %s at line %d: %v", e.Kind, e.Line, e.Err)
	}
	return fmt.Sprintf("inventory: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Reader invokes a package manager in dump mode and parses its output into
// trust.Record candidates tagged trust.PackageManager.
type Reader struct {
	// Tool is the dump command's executable name, looked up on PATH.
	Tool string
	// Args are passed to Tool, e.g. []string{"-qa", "--dump"} for rpm.
	Args []string
}

// NewRPMReader returns a Reader configured for rpm's "-qa --dump" mode,
// the package manager fapolicyd itself targets.
func NewRPMReader() *Reader {
	return &Reader{Tool: "rpm", Args: []string{"-qa", "--dump"}}
}

// Collect runs the configured tool, parses its stdout, and returns the kept
// records deduplicated by path (first occurrence wins). A filter, when
// non-nil, additionally prunes each candidate path (spec §4.C); records the
// filter excludes are dropped silently, the same as records failing the
// isconfig/isdoc/directory/digest checks.
//
// Collect never returns a fatal error: on any failure it logs a warning and
// returns the error alongside the records it has (nil when the tool is
// missing or fails to run; whatever Parse recovered, deduplicated, when
// parsing fails) so callers can decide whether to surface it.
func (r *Reader) Collect(ctx context.Context, filter *pathfilter.Filter) ([]trust.Record, error) {
	path, err := exec.LookPath(r.Tool)
	if err != nil {
		ierr := &Error{Kind: ToolNotFound, Err: err}
		logger.Warn(fmt.Sprintf("inventory: %s not found, starting with empty package-manager source", r.Tool))
		return nil, ierr
	}

	// #nosec G204 - path resolved via exec.LookPath above
	cmd := exec.CommandContext(ctx, path, r.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		ierr := &Error{Kind: ToolExecutionFailed, Err: fmt.Errorf("%s: %w (stderr: %s)", r.Tool, err, stderr.String())}
		logger.Warn(fmt.Sprintf("inventory: %s", ierr.Error()))
		return nil, ierr
	}

	records, err := Parse(&stdout, filter)
	if err != nil {
		logger.Warn(fmt.Sprintf("inventory: %s", err.Error()))
	}
	return records, err
}

// Parse reads dump records from r, keeps the ones passing the spec's
// isconfig/isdoc/directory/digest rules, optionally prunes them through
// filter, and deduplicates by path (first occurrence wins). Parse returns
// whatever records it could recover alongside the first ParseFailed error.
func Parse(r io.Reader, filter *pathfilter.Filter) ([]trust.Record, error) {
	var records []trust.Record
	seen := make(map[string]struct{})

	var firstErr error
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "(contains no files)" {
			continue
		}

		rec, keep, err := parseLine(line)
		if err != nil {
			if firstErr == nil {
				firstErr = &Error{Kind: ParseFailed, Line: lineNo, Err: err}
			}
			continue
		}
		if !keep {
			continue
		}
		if filter != nil && filter.Check(rec.Path).Excluded() {
			continue
		}
		if _, dup := seen[rec.Path]; dup {
			continue
		}
		seen[rec.Path] = struct{}{}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		if firstErr == nil {
			firstErr = &Error{Kind: ParseFailed, Line: lineNo, Err: err}
		}
	}
	return records, firstErr
}

// parseLine decodes one "path size mtime digest mode owner group isconfig
// isdoc rdev symlink" record. keep reports whether the record passes the
// isconfig/isdoc/directory/digest filters; when keep is false rec is the
// zero value.
func parseLine(line string) (rec trust.Record, keep bool, err error) {
	fields := strings.Fields(line)
	if len(fields) != 11 {
		return trust.Record{}, false, fmt.Errorf("expected 11 fields, got %d", len(fields))
	}

	path := fields[0]
	size, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return trust.Record{}, false, fmt.Errorf("bad size %q: %w", fields[1], err)
	}
	digest := fields[3]
	mode, err := strconv.ParseUint(fields[4], 8, 32)
	if err != nil {
		return trust.Record{}, false, fmt.Errorf("bad mode %q: %w", fields[4], err)
	}
	isConfig, err := parseBoolFlag(fields[7])
	if err != nil {
		return trust.Record{}, false, fmt.Errorf("bad isconfig %q: %w", fields[7], err)
	}
	isDoc, err := parseBoolFlag(fields[8])
	if err != nil {
		return trust.Record{}, false, fmt.Errorf("bad isdoc %q: %w", fields[8], err)
	}

	if isConfig || isDoc || uint32(mode)&sIFMT == sIFDIR {
		return trust.Record{}, false, nil
	}
	if isZeroDigest(digest) {
		return trust.Record{}, false, nil
	}

	return trust.Record{Path: path, Size: size, Hash: strings.ToLower(digest)}, true, nil
}

func parseBoolFlag(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("expected 0 or 1, got %q", s)
	}
}

func isZeroDigest(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r != '0' {
			return false
		}
	}
	return true
}

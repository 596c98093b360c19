package audit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ctc-oss/fapolicy-toolkit/pkg/rules"
)

// ParseLine parses one text-log line into an Event (spec §4.H): "rule=INT
// dec=DEC perm=PERM uid=INT gid=INT(,INT)* pid=INT exe=PATH : path=PATH
// ftype=MIME", with comm= accepted in place of exe=. Escapable characters
// are never interpreted here — whatever bytes appear in a field's value,
// including an escaping backslash, are carried through unchanged.
func ParseLine(line string) (Event, error) {
	fields := strings.Fields(line)

	var e Event
	idx := 0
	next := func(prefix string) (string, error) {
		if idx >= len(fields) {
			return "", fmt.Errorf("audit: expected %s, ran out of input", prefix)
		}
		tok := fields[idx]
		if !strings.HasPrefix(tok, prefix) {
			return "", fmt.Errorf("audit: expected %q, got %q", prefix, tok)
		}
		idx++
		return strings.TrimPrefix(tok, prefix), nil
	}

	ruleStr, err := next("rule=")
	if err != nil {
		return Event{}, err
	}
	ruleID, err := strconv.Atoi(ruleStr)
	if err != nil {
		return Event{}, fmt.Errorf("audit: bad rule id %q: %w", ruleStr, err)
	}
	e.RuleID = ruleID

	decStr, err := next("dec=")
	if err != nil {
		return Event{}, err
	}
	dec, ok := rules.ParseDecision(decStr)
	if !ok {
		return Event{}, fmt.Errorf("audit: unknown decision %q", decStr)
	}
	e.Decision = dec

	if idx >= len(fields) {
		return Event{}, fmt.Errorf("audit: expected perm=, ran out of input")
	}
	perm, ok := rules.ParsePermission(strings.TrimPrefix(fields[idx], "perm="))
	if !ok {
		return Event{}, fmt.Errorf("audit: unknown permission %q", fields[idx])
	}
	idx++
	e.Permission = perm

	uidStr, err := next("uid=")
	if err != nil {
		return Event{}, err
	}
	uid, err := strconv.Atoi(uidStr)
	if err != nil {
		return Event{}, fmt.Errorf("audit: bad uid %q: %w", uidStr, err)
	}
	e.UID = uid

	gidStr, err := next("gid=")
	if err != nil {
		return Event{}, err
	}
	for _, g := range strings.Split(gidStr, ",") {
		n, err := strconv.Atoi(g)
		if err != nil {
			return Event{}, fmt.Errorf("audit: bad gid %q: %w", g, err)
		}
		e.GID = append(e.GID, n)
	}

	pidStr, err := next("pid=")
	if err != nil {
		return Event{}, err
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return Event{}, fmt.Errorf("audit: bad pid %q: %w", pidStr, err)
	}
	e.PID = pid

	if idx >= len(fields) {
		return Event{}, fmt.Errorf("audit: expected exe= or comm=, ran out of input")
	}
	exeTok := fields[idx]
	var exeVal string
	var subjKey rules.SubjectKey
	switch {
	case strings.HasPrefix(exeTok, "exe="):
		exeVal = strings.TrimPrefix(exeTok, "exe=")
		subjKey = rules.SubjExe
	case strings.HasPrefix(exeTok, "comm="):
		exeVal = strings.TrimPrefix(exeTok, "comm=")
		subjKey = rules.SubjComm
	default:
		return Event{}, fmt.Errorf("audit: expected exe= or comm=, got %q", exeTok)
	}
	idx++
	e.Subject = rules.Subject{Parts: []rules.SubjectPart{{Key: subjKey, Str: exeVal}}}

	if idx >= len(fields) || fields[idx] != ":" {
		return Event{}, fmt.Errorf("audit: expected ':' separator")
	}
	idx++

	var objParts []rules.ObjectPart
	for ; idx < len(fields); idx++ {
		tok := fields[idx]
		switch {
		case strings.HasPrefix(tok, "path="):
			objParts = append(objParts, rules.ObjectPart{Key: rules.ObjPath, Str: strings.TrimPrefix(tok, "path=")})
		case strings.HasPrefix(tok, "ftype="):
			objParts = append(objParts, rules.ObjectPart{Key: rules.ObjFileType, FileType: rules.FileTypeRef{Value: strings.TrimPrefix(tok, "ftype=")}})
		default:
			return Event{}, fmt.Errorf("audit: unexpected object field %q", tok)
		}
	}
	if len(objParts) == 0 {
		return Event{}, fmt.Errorf("audit: expected at least one object field")
	}
	e.Object = rules.Object{Parts: objParts}

	return e, nil
}

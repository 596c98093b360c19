package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/ctc-oss/fapolicy-toolkit/pkg/rules"
)

// RecordType discriminates the native audit record types an AuditSource may
// yield. Only Fanotify is consumed by FromSource; everything else is
// dropped before reaching Event conversion.
type RecordType int

const (
	Fanotify RecordType = iota
	Other
)

// Record is one native audit-stream record, narrowed to the handful of
// typed field accessors the fanotify decision events actually need. This
// mirrors the toolkit's other narrow-capability-set adapters: callers only
// see the operations FromSource exercises, not the full native record.
type Record interface {
	Type() RecordType
	Int(field string) (int, bool)
	Str(field string) (string, bool)
	Timestamp() int64
}

// Source yields Record values until exhausted or an error occurs.
type Source interface {
	Next() (Record, bool, error)
}

// MetaError reports an audit record whose field values fell outside the
// set this adapter knows how to decode.
type MetaError struct {
	Reason string
}

func (e *MetaError) Error() string { return "audit: " + e.Reason }

// FromSource drains src, keeping only Fanotify records and converting each
// into an Event. A record with field values outside the recognized sets
// for resp/syscall yields a MetaError and stops the drain, mirroring the
// "unsupported" failure mode spec §4.H describes; a well-formed Fanotify
// record missing a required field is treated the same way.
func FromSource(src Source) ([]Event, error) {
	var events []Event
	for {
		rec, ok, err := src.Next()
		if err != nil {
			return nil, fmt.Errorf("audit: read record: %w", err)
		}
		if !ok {
			return events, nil
		}
		if rec.Type() != Fanotify {
			continue
		}
		e, err := eventFromRecord(rec)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
}

func eventFromRecord(rec Record) (Event, error) {
	fanInfo, ok := rec.Int("fan_info")
	if !ok {
		return Event{}, &MetaError{Reason: "missing fan_info"}
	}
	resp, ok := rec.Int("resp")
	if !ok {
		return Event{}, &MetaError{Reason: "missing resp"}
	}
	dec, err := decisionFromResp(resp)
	if err != nil {
		return Event{}, err
	}
	syscall, ok := rec.Int("syscall")
	if !ok {
		return Event{}, &MetaError{Reason: "missing syscall"}
	}
	perm, err := permissionFromSyscall(syscall)
	if err != nil {
		return Event{}, err
	}
	uid, ok := rec.Int("uid")
	if !ok {
		return Event{}, &MetaError{Reason: "missing uid"}
	}
	gid, ok := rec.Int("gid")
	if !ok {
		return Event{}, &MetaError{Reason: "missing gid"}
	}
	pid, ok := rec.Int("pid")
	if !ok {
		return Event{}, &MetaError{Reason: "missing pid"}
	}
	exe, ok := rec.Str("exe")
	if !ok {
		return Event{}, &MetaError{Reason: "missing exe"}
	}
	name, ok := rec.Str("name")
	if !ok {
		return Event{}, &MetaError{Reason: "missing name"}
	}
	when := time.Unix(rec.Timestamp(), 0).UTC()

	return Event{
		RuleID:     fanInfo,
		Decision:   dec,
		Permission: perm,
		UID:        uid,
		GID:        []int{gid},
		PID:        pid,
		Subject:    rules.Subject{Parts: []rules.SubjectPart{{Key: rules.SubjExe, Str: unquote(exe)}}},
		Object:     rules.Object{Parts: []rules.ObjectPart{{Key: rules.ObjPath, Str: unquote(name)}}},
		When:       &when,
	}, nil
}

func unquote(s string) string {
	return strings.TrimSuffix(strings.TrimPrefix(s, "\""), "\"")
}

func decisionFromResp(resp int) (rules.Decision, error) {
	switch resp {
	case 1:
		return rules.Allow, nil
	case 2:
		return rules.Deny, nil
	default:
		return 0, &MetaError{Reason: "unsupported resp value"}
	}
}

func permissionFromSyscall(syscall int) (rules.Permission, error) {
	switch syscall {
	case 59:
		return rules.PermExecute, nil
	case 257:
		return rules.PermOpen, nil
	default:
		return 0, &MetaError{Reason: "unsupported syscall value"}
	}
}

// Package audit implements the shared decision-event model consumed from
// both the enforcer's text log and its native audit stream (spec §4.H).
package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/ctc-oss/fapolicy-toolkit/pkg/rules"
)

// Event is one access-decision record, regardless of which source produced
// it.
type Event struct {
	RuleID     int
	Decision   rules.Decision
	Permission rules.Permission
	UID        int
	GID        []int
	PID        int
	Subject    rules.Subject
	Object     rules.Object
	When       *time.Time
}

// String renders the canonical text-log surface form.
func (e Event) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "rule=%d ", e.RuleID)
	fmt.Fprintf(&sb, "dec=%s ", e.Decision)
	fmt.Fprintf(&sb, "%s ", e.Permission)
	fmt.Fprintf(&sb, "uid=%d ", e.UID)
	gids := make([]string, len(e.GID))
	for i, g := range e.GID {
		gids[i] = fmt.Sprintf("%d", g)
	}
	fmt.Fprintf(&sb, "gid=%s ", strings.Join(gids, ","))
	fmt.Fprintf(&sb, "pid=%d ", e.PID)
	if comm, ok := e.Subject.Comm(); ok {
		fmt.Fprintf(&sb, "comm=%s ", comm)
	} else {
		exe, _ := e.Subject.Exe()
		fmt.Fprintf(&sb, "exe=%s ", exe)
	}
	sb.WriteString(": ")
	for _, p := range e.Object.Parts {
		fmt.Fprintf(&sb, "%s ", p)
	}
	return sb.String()
}

// PerspectiveKind discriminates Perspective.
type PerspectiveKind int

const (
	PerspectiveUser PerspectiveKind = iota
	PerspectiveGroup
	PerspectiveSubject
)

// Perspective narrows an EventDB down to events relevant to one user,
// group, or subject executable.
type Perspective struct {
	Kind    PerspectiveKind
	UID     int
	GID     int
	Subject string
}

// UserPerspective builds a Perspective filtering by uid.
func UserPerspective(uid int) Perspective { return Perspective{Kind: PerspectiveUser, UID: uid} }

// GroupPerspective builds a Perspective filtering by gid.
func GroupPerspective(gid int) Perspective { return Perspective{Kind: PerspectiveGroup, GID: gid} }

// SubjectPerspective builds a Perspective filtering by subject exe path.
func SubjectPerspective(exe string) Perspective {
	return Perspective{Kind: PerspectiveSubject, Subject: exe}
}

// Fit reports whether e matches p.
func (p Perspective) Fit(e Event) bool {
	switch p.Kind {
	case PerspectiveUser:
		return e.UID == p.UID
	case PerspectiveGroup:
		for _, g := range e.GID {
			if g == p.GID {
				return true
			}
		}
		return false
	case PerspectiveSubject:
		exe, ok := e.Subject.Exe()
		return ok && exe == p.Subject
	default:
		return false
	}
}

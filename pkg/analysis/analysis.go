// Package analysis implements the perspective-based analysis engine:
// filtering an event sequence by user/group/subject, classifying each
// surviving event's access and cross-referencing it against the trust
// store (spec §4.I).
package analysis

import (
	"github.com/ctc-oss/fapolicy-toolkit/pkg/audit"
	"github.com/ctc-oss/fapolicy-toolkit/pkg/rules"
	"github.com/ctc-oss/fapolicy-toolkit/pkg/trust"
)

// SubjectAnalysis is the per-event subject-side classification.
type SubjectAnalysis struct {
	File   string
	Trust  string // ST, AT, or U
	Access string // A, D, or P
}

// ObjectAnalysis is the per-event object-side classification.
type ObjectAnalysis struct {
	File   string
	Trust  string // ST, AT, or U
	Access string // A or D
	Mode   string
}

// Analysis is one event joined with its subject/object classification.
type Analysis struct {
	Event   audit.Event
	Subject SubjectAnalysis
	Object  ObjectAnalysis
}

func isAllowDecision(d rules.Decision) bool {
	switch d {
	case rules.Allow, rules.AllowLog, rules.AllowSyslog, rules.AllowAudit:
		return true
	default:
		return false
	}
}

// Analyze filters events by perspective, then classifies each surviving
// event's subject/object access and trust standing, in event order.
func Analyze(events []audit.Event, from audit.Perspective, trustDB *trust.DB) []Analysis {
	var fit []audit.Event
	for _, e := range events {
		if from.Fit(e) {
			fit = append(fit, e)
		}
	}

	out := make([]Analysis, 0, len(fit))
	for _, e := range fit {
		subjPath, _ := e.Subject.Exe()
		objPath, _ := e.Object.Path()

		objAccess := "D"
		if isAllowDecision(e.Decision) {
			objAccess = "A"
		}

		allowed, denied := subjectOutcomes(subjPath, fit)
		subjAccess := "P"
		switch {
		case allowed && !denied:
			subjAccess = "A"
		case !allowed && denied:
			subjAccess = "D"
		}

		out = append(out, Analysis{
			Event: e,
			Subject: SubjectAnalysis{
				File:   subjPath,
				Trust:  trustCheck(subjPath, trustDB),
				Access: subjAccess,
			},
			Object: ObjectAnalysis{
				File:   objPath,
				Trust:  trustCheck(objPath, trustDB),
				Access: objAccess,
				Mode:   "R",
			},
		})
	}
	return out
}

func subjectOutcomes(path string, events []audit.Event) (allowed bool, denied bool) {
	for _, e := range events {
		exe, ok := e.Subject.Exe()
		if !ok || exe != path {
			continue
		}
		if isAllowDecision(e.Decision) {
			allowed = true
		} else {
			denied = true
		}
	}
	return allowed, denied
}

func trustCheck(path string, db *trust.DB) string {
	if db == nil {
		return "U"
	}
	m, ok := db.Get(path)
	if !ok {
		return "U"
	}
	switch m.Source.Kind {
	case trust.PackageManager:
		return "ST"
	case trust.AncillaryFile, trust.AncillaryDirEntry:
		return "AT"
	default:
		return "U"
	}
}

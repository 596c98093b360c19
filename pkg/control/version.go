package control

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
)

// Version is the enforcer daemon's detected release, or Unknown if it
// could not be determined.
type Version struct {
	Known bool
	Major int
	Minor int
	Patch int
}

func (v Version) String() string {
	if !v.Known {
		return "unknown"
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

var versionRe = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// DaemonVersion shells out to the enforcer binary with --version and
// parses the semantic version out of its banner line. The enforcer has
// been observed to print two- and three-part version numbers; a missing
// patch component defaults to 0. A binary that cannot be found or whose
// output does not contain a recognizable version yields an Unknown
// Version rather than an error, mirroring the original's
// fapolicyd_version() fallback behavior.
func DaemonVersion(ctx context.Context) Version {
	out, err := exec.CommandContext(ctx, "fapolicyd", "--version").Output()
	if err != nil {
		return Version{}
	}
	m := versionRe.FindSubmatch(out)
	if m == nil {
		return Version{}
	}
	major := atoiOr(m[1], 0)
	minor := atoiOr(m[2], 0)
	patch := 0
	if len(m[3]) > 0 {
		patch = atoiOr(m[3], 0)
	}
	return Version{Known: true, Major: major, Minor: minor, Patch: patch}
}

func atoiOr(b []byte, def int) int {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}

package control

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ctc-oss/fapolicy-toolkit/pkg/audit"
)

// ClassifyFile shells out to the enforcer binary in single-shot,
// non-enforcing mode against path and parses the resulting decision line
// with the same text-log grammar the stats/audit pipeline uses. This does
// not reimplement the enforcer's decision logic; it only drives the
// external binary and parses its own report of what it decided.
func ClassifyFile(ctx context.Context, path string) (audit.Event, error) {
	out, err := exec.CommandContext(ctx, "fapolicyd", "--debug", "--permissive", "--file", path).Output()
	if err != nil {
		return audit.Event{}, fmt.Errorf("control: classify %s: %w", path, err)
	}

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "rule=") {
			continue
		}
		return audit.ParseLine(line)
	}
	return audit.Event{}, fmt.Errorf("control: classify %s: no decision line in output", path)
}

package control

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ctc-oss/fapolicy-toolkit/pkg/logger"
)

const profilerUnitName = "fapolicyp"

const profilerUnit = `
[Unit]
Description=File Access Profiling Daemon
DefaultDependencies=no
After=local-fs.target systemd-tmpfiles-setup.service

[Service]
PIDFile=/run/fapolicyp.pid
ExecStart=/usr/sbin/fapolicyd --debug --permissive --no-details

[Install]
WantedBy=multi-user.target
`

// profilerUnitDir holds the systemd unit directory the drop-in is written
// to; overridable in tests.
var profilerUnitDir = "/usr/lib/systemd/system"

func profilerUnitPath() string {
	return filepath.Join(profilerUnitDir, profilerUnitName+".service")
}

// Profiler runs the enforcer under an alternate unit that logs decisions
// without enforcing them, per spec §4.J.
type Profiler struct {
	bus       Bus
	prevWasUp bool
	hadPrev   bool
}

// NewProfiler returns a Profiler driving bus.
func NewProfiler(bus Bus) *Profiler {
	return &Profiler{bus: bus}
}

func (p *Profiler) handle() Handle { return NewHandle(profilerUnitName, p.bus) }
func (p *Profiler) daemon() Handle { return NewHandle("fapolicyd", p.bus) }

// IsActive reports whether the profiler unit is currently active.
func (p *Profiler) IsActive(ctx context.Context) (bool, error) {
	return p.handle().Active(ctx)
}

// Activate stops the main daemon if running, writes the profiler drop-in
// unit atomically, starts the profiler unit, and waits up to deadline for
// it to become active. It is idempotent: calling it while already active
// is a no-op that returns the daemon's current state.
func (p *Profiler) Activate(ctx context.Context, deadline time.Duration) (bool, error) {
	active, err := p.IsActive(ctx)
	if err != nil {
		return false, err
	}
	if active {
		return p.daemon().Active(ctx)
	}

	daemon := p.daemon()
	p.prevWasUp, err = daemon.Active(ctx)
	if err != nil {
		return false, err
	}
	p.hadPrev = true

	if p.prevWasUp {
		if err := daemon.Stop(ctx); err != nil {
			return false, err
		}
	}

	if err := writeDropIn(); err != nil {
		return false, err
	}
	if err := p.handle().Start(ctx); err != nil {
		return false, err
	}
	if err := waitForActive(ctx, p.handle(), true, deadline); err != nil {
		return false, err
	}
	return daemon.Active(ctx)
}

// Deactivate stops the profiler unit, restores the daemon's prior state,
// and removes the drop-in unit file. Idempotent: calling it while already
// inactive is a no-op.
func (p *Profiler) Deactivate(ctx context.Context, deadline time.Duration) (bool, error) {
	active, err := p.IsActive(ctx)
	if err != nil {
		return false, err
	}
	if active {
		if err := p.handle().Stop(ctx); err != nil {
			return false, err
		}
		if err := waitForActive(ctx, p.handle(), false, deadline); err != nil {
			return false, err
		}
		if p.hadPrev && p.prevWasUp {
			if err := p.daemon().Start(ctx); err != nil {
				return false, err
			}
		}
	}
	p.hadPrev = false
	p.prevWasUp = false

	if err := deleteDropIn(); err != nil {
		logger.Warn("control: remove profiler drop-in", logger.Err(err))
	}
	return p.daemon().Active(ctx)
}

// Rollback is an alias for Deactivate.
func (p *Profiler) Rollback(ctx context.Context, deadline time.Duration) (bool, error) {
	return p.Deactivate(ctx, deadline)
}

func waitForActive(ctx context.Context, h Handle, want bool, deadline time.Duration) error {
	deadlineAt := time.Now().Add(deadline)
	for {
		active, err := h.Active(ctx)
		if err != nil {
			return err
		}
		if active == want {
			return nil
		}
		if time.Now().After(deadlineAt) {
			return fmt.Errorf("control: %s did not reach active=%v within %s", h.Name, want, deadline)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func writeDropIn() error {
	path := profilerUnitPath()
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fapolicyp-*.service.tmp")
	if err != nil {
		return fmt.Errorf("control: create profiler drop-in temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(profilerUnit); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("control: write profiler drop-in: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("control: close profiler drop-in: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("control: install profiler drop-in: %w", err)
	}
	return nil
}

func deleteDropIn() error {
	if err := os.Remove(profilerUnitPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

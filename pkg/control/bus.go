// Package control implements the enforcer control surface: unit
// lifecycle, the FIFO command pipe, profiler activation, and the
// statistics file reader (spec §4.J).
package control

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const busTimeout = 2 * time.Second

// Method names the init-system bus call a Bus invokes. Naming mirrors the
// underlying systemd1.Manager method names.
type Method int

const (
	StartUnit Method = iota
	StopUnit
	EnableUnitFiles
	DisableUnitFiles
)

func (m Method) String() string {
	switch m {
	case StartUnit:
		return "StartUnit"
	case StopUnit:
		return "StopUnit"
	case EnableUnitFiles:
		return "EnableUnitFiles"
	case DisableUnitFiles:
		return "DisableUnitFiles"
	default:
		return "unknown"
	}
}

// DbusFailure reports that the bus round-trip itself failed (timeout,
// connection refused, method returned an error reply).
type DbusFailure struct {
	Method Method
	Unit   string
	Err    error
}

func (e *DbusFailure) Error() string {
	return fmt.Sprintf("control: %s(%s): %v", e.Method, e.Unit, e.Err)
}

func (e *DbusFailure) Unwrap() error { return e.Err }

// DbusMethodCall reports that the bus message itself could not be
// constructed.
type DbusMethodCall struct {
	Method Method
	Err    error
}

func (e *DbusMethodCall) Error() string {
	return fmt.Sprintf("control: build %s call: %v", e.Method, e.Err)
}

func (e *DbusMethodCall) Unwrap() error { return e.Err }

// Bus is the host init-system control surface a Handle drives. The
// production implementation shells out to systemctl with a bounded
// timeout; tests supply a fake.
type Bus interface {
	Call(ctx context.Context, m Method, unit string) error
	Status(ctx context.Context, unit string) (string, error)
}

// SystemctlBus drives systemd via the systemctl CLI, since no dbus client
// library is part of this toolkit's dependency set; every call is bounded
// by busTimeout the same way the original's dbus round-trip was bounded by
// a 2-second reply timeout.
type SystemctlBus struct{}

var methodVerb = map[Method]string{
	StartUnit:        "start",
	StopUnit:         "stop",
	EnableUnitFiles:  "enable",
	DisableUnitFiles: "disable",
}

func (SystemctlBus) Call(ctx context.Context, m Method, unit string) error {
	verb, ok := methodVerb[m]
	if !ok {
		return &DbusMethodCall{Method: m, Err: fmt.Errorf("unhandled method")}
	}
	ctx, cancel := context.WithTimeout(ctx, busTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "systemctl", verb, unit)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &DbusFailure{Method: m, Unit: unit, Err: fmt.Errorf("%w: %s", err, stderr.String())}
	}
	return nil
}

func (SystemctlBus) Status(ctx context.Context, unit string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, busTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "systemctl", "status", unit, "--no-pager", "-n0")
	out, err := cmd.Output()
	// systemctl status exits non-zero for inactive units; the stdout text
	// is still meaningful, so only a missing stdout is an error.
	if err != nil && len(out) == 0 {
		return "", &DbusFailure{Method: StartUnit, Unit: unit, Err: err}
	}
	return string(out), nil
}

// Handle is a handle to a systemd unit that can be signalled via the bus.
type Handle struct {
	Name string
	bus  Bus
}

// NewHandle returns a Handle for unit name using bus.
func NewHandle(name string, bus Bus) Handle {
	return Handle{Name: name, bus: bus}
}

// DefaultHandle returns a Handle for the main enforcer unit using
// SystemctlBus.
func DefaultHandle() Handle { return NewHandle("fapolicyd", SystemctlBus{}) }

func (h Handle) Start(ctx context.Context) error {
	return h.bus.Call(ctx, StartUnit, h.Name)
}

func (h Handle) Stop(ctx context.Context) error {
	return h.bus.Call(ctx, StopUnit, h.Name)
}

func (h Handle) Enable(ctx context.Context) error {
	return h.bus.Call(ctx, EnableUnitFiles, h.Name)
}

func (h Handle) Disable(ctx context.Context) error {
	return h.bus.Call(ctx, DisableUnitFiles, h.Name)
}

// Active reports whether the unit's current state contains "Active: active".
func (h Handle) Active(ctx context.Context) (bool, error) {
	out, err := h.bus.Status(ctx, h.Name)
	if err != nil {
		return false, err
	}
	return strings.Contains(out, "Active: active"), nil
}

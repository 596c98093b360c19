// Package appstate aggregates the toolkit's individual component
// databases into one immutable application-state snapshot (spec §4.K).
package appstate

import (
	"context"
	"fmt"

	"github.com/ctc-oss/fapolicy-toolkit/pkg/control"
	"github.com/ctc-oss/fapolicy-toolkit/pkg/econfig"
	"github.com/ctc-oss/fapolicy-toolkit/pkg/inventory"
	"github.com/ctc-oss/fapolicy-toolkit/pkg/rules"
	"github.com/ctc-oss/fapolicy-toolkit/pkg/toolkitconfig"
	"github.com/ctc-oss/fapolicy-toolkit/pkg/trust"
)

// State is an immutable snapshot of every component database the toolkit
// manages. Every mutating operation below returns a new State; substructure
// that did not change is shared with the receiver, not copied.
type State struct {
	Config *toolkitconfig.Config
	Trust  *trust.DB
	Rules  *rules.DB
	Econf  *econfig.DB
	Users  []User
	Groups []Group
}

// Empty returns a State with every database at its zero/default value.
func Empty(cfg *toolkitconfig.Config) *State {
	return &State{
		Config: cfg,
		Trust:  trust.NewDB(),
		Rules:  rules.NewDB(nil),
		Econf:  econfig.Defaults(),
	}
}

// Load reads the trust DB, rules DB, enforcer config, and user/group
// tables from disk according to cfg. Trust records are loaded without
// filesystem reconciliation; use LoadChecked for that.
func Load(ctx context.Context, cfg *toolkitconfig.Config) (*State, error) {
	return load(ctx, cfg, false)
}

// LoadChecked behaves like Load but additionally reconciles the trust DB
// against the filesystem (spec §4.K).
func LoadChecked(ctx context.Context, cfg *toolkitconfig.Config) (*State, error) {
	return load(ctx, cfg, true)
}

func load(ctx context.Context, cfg *toolkitconfig.Config, reconcile bool) (*State, error) {
	// Collect never returns a fatal error; an empty package-manager
	// source (e.g. rpm not installed) still yields a usable trust DB
	// built from the KV store and ancillary files alone.
	reader := inventory.NewRPMReader()
	inv, _ := reader.Collect(ctx, nil)

	trustDB, err := trust.Load(cfg.TrustKVDir, cfg.AncillaryFile, cfg.AncillaryDir, inv)
	if err != nil {
		return nil, fmt.Errorf("appstate: load trust db: %w", err)
	}
	if reconcile {
		trustDB = trust.ReconcileAll(trustDB)
	}

	rulesDB, err := rules.LoadDir(rules.NewOSDir(cfg.RulesDir))
	if err != nil {
		return nil, fmt.Errorf("appstate: load rules db: %w", err)
	}

	econfDB, err := econfig.LoadFile(cfg.EnforcerConf)
	if err != nil {
		return nil, fmt.Errorf("appstate: load enforcer config: %w", err)
	}

	users, err := DefaultPasswdSource().Users()
	if err != nil {
		return nil, fmt.Errorf("appstate: load users: %w", err)
	}
	groups, err := DefaultGroupSource().Groups()
	if err != nil {
		return nil, fmt.Errorf("appstate: load groups: %w", err)
	}

	return &State{
		Config: cfg,
		Trust:  trustDB,
		Rules:  rulesDB,
		Econf:  econfDB,
		Users:  users,
		Groups: groups,
	}, nil
}

// ApplyTrustChanges returns a new State with the trust DB replaced by
// ops applied in order; every other field is shared with s.
func (s *State) ApplyTrustChanges(ops []trust.Op) *State {
	next := *s
	next.Trust = trust.ApplyChangeSet(s.Trust, ops)
	return &next
}

// Deploy writes the ancillary trust records and the rules DB back to
// disk, then signals the enforcer to reload its trust database via the
// FIFO (spec §4.K).
func Deploy(s *State) error {
	if err := trust.Write(s.Trust, s.Config.AncillaryFile, s.Config.AncillaryDir); err != nil {
		return fmt.Errorf("appstate: write trust: %w", err)
	}
	if err := rules.WriteDir(rules.NewOSDir(s.Config.RulesDir), s.Rules); err != nil {
		return fmt.Errorf("appstate: write rules: %w", err)
	}
	if err := rules.WriteCompiled(s.Config.CompiledRulesPath, s.Rules); err != nil {
		return fmt.Errorf("appstate: write compiled rules: %w", err)
	}
	if err := control.ReloadTrust(s.Config.FifoPath); err != nil {
		return fmt.Errorf("appstate: signal reload trust: %w", err)
	}
	return nil
}

// Package toolkitconfig loads the toolkit's own environment settings:
// where the trust KV store, ancillary trust artifacts, rules directory,
// enforcer config, FIFO, unit name and stats file live. This is distinct
// from the enforcer's own fapolicyd.conf (pkg/econfig), which is a fixed
// external artifact this package only points at, never parses itself.
package toolkitconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every on-disk location the toolkit's components need to
// find the enforcer's artifacts.
type Config struct {
	TrustKVDir        string `mapstructure:"trust_kv_dir"`
	AncillaryFile     string `mapstructure:"ancillary_file"`
	AncillaryDir      string `mapstructure:"ancillary_dir"`
	RulesDir          string `mapstructure:"rules_dir"`
	CompiledRulesPath string `mapstructure:"compiled_rules_path"`
	EnforcerConf      string `mapstructure:"enforcer_conf"`
	FifoPath          string `mapstructure:"fifo_path"`
	UnitName          string `mapstructure:"unit_name"`
	StatsFile         string `mapstructure:"stats_file"`
	RPMDBPath         string `mapstructure:"rpm_db_path"`
}

var defaultConfig = Config{
	TrustKVDir:        "/var/lib/fapolicyd",
	AncillaryFile:     "/etc/fapolicyd/fapolicyd.trust",
	AncillaryDir:      "/etc/fapolicyd/trust.d",
	RulesDir:          "/etc/fapolicyd/rules.d",
	CompiledRulesPath: "/etc/fapolicyd/compiled.rules",
	EnforcerConf:      "/etc/fapolicyd/fapolicyd.conf",
	FifoPath:          "/run/fapolicyd/fapolicyd.fifo",
	UnitName:          "fapolicyd",
	StatsFile:         "/var/run/fapolicyd/fapolicyd.state",
	RPMDBPath:         "/var/lib/rpm",
}

// toolkitHomeDirName is the per-user config directory name, resolved
// beneath os.UserConfigDir() the way the teacher resolves its own home.
const toolkitHomeDirName = "fapolicy-toolkit"

// HomeDir returns the toolkit's per-user config directory, creating it if
// necessary.
func HomeDir() (string, error) {
	if env := os.Getenv("FAPOLICY_TOOLKIT_HOME"); env != "" {
		if err := os.MkdirAll(env, 0o750); err != nil {
			return "", fmt.Errorf("toolkitconfig: create home %s: %w", env, err)
		}
		return env, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("toolkitconfig: resolve user config dir: %w", err)
	}
	dir := filepath.Join(base, toolkitHomeDirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("toolkitconfig: create home %s: %w", dir, err)
	}
	return dir, nil
}

// Load reads the toolkit's own settings from (in order) defaults, a
// config file named "fapolicy-toolkit.yaml" found in the current
// directory, the toolkit home directory, or $HOME, and FAPOLICYTOOLKIT_*
// environment overrides.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("trust_kv_dir", defaultConfig.TrustKVDir)
	v.SetDefault("ancillary_file", defaultConfig.AncillaryFile)
	v.SetDefault("ancillary_dir", defaultConfig.AncillaryDir)
	v.SetDefault("rules_dir", defaultConfig.RulesDir)
	v.SetDefault("compiled_rules_path", defaultConfig.CompiledRulesPath)
	v.SetDefault("enforcer_conf", defaultConfig.EnforcerConf)
	v.SetDefault("fifo_path", defaultConfig.FifoPath)
	v.SetDefault("unit_name", defaultConfig.UnitName)
	v.SetDefault("stats_file", defaultConfig.StatsFile)
	v.SetDefault("rpm_db_path", defaultConfig.RPMDBPath)

	v.SetConfigName("fapolicy-toolkit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")
	if home, err := HomeDir(); err == nil {
		v.AddConfigPath(home)
	}

	v.SetEnvPrefix("FAPOLICYTOOLKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("toolkitconfig: unmarshal: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in defaults without consulting any file or
// environment variable.
func Default() *Config {
	cfg := defaultConfig
	return &cfg
}

package harness

import (
	"bytes"
	"strings"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is the prefix of environment overrides, e.g. FFI_AUDIT=false.
const EnvPrefix = "FFI"

// Config controls a conformance run.
type Config struct {
	// Golden is a file holding the expected transcript. Empty means the
	// builtin transcript.
	Golden string
	// Roots are searched for component.toml manifests.
	Roots []string
	// Exports and Imports select matrix members by name. Empty selects all.
	Exports []string
	Imports []string
	// Audit routes every release of builtin importers through a ledger.
	Audit bool
	// FailFast stops at the first failing pair.
	FailFast bool
	// SkipBuild uses existing artifacts instead of running build commands.
	SkipBuild bool
	// BuildTimeout and RunTimeout bound each build and each exec importer.
	BuildTimeout time.Duration
	RunTimeout   time.Duration
	// MemoryLimitPages caps the memory of wasm exports.
	MemoryLimitPages uint32
	// WorkDir receives generated artifacts. Empty means a temporary directory.
	WorkDir  string
	LogLevel zapcore.Level
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Roots:            []string{"components"},
		Audit:            true,
		BuildTimeout:     5 * time.Minute,
		RunTimeout:       30 * time.Second,
		MemoryLimitPages: 4096,
		LogLevel:         zapcore.InfoLevel,
	}
}

type rawConfig struct {
	Golden           string   `mapstructure:"golden"`
	Roots            []string `mapstructure:"roots"`
	Exports          []string `mapstructure:"exports"`
	Imports          []string `mapstructure:"imports"`
	Audit            *bool    `mapstructure:"audit"`
	FailFast         *bool    `mapstructure:"fail_fast"`
	SkipBuild        *bool    `mapstructure:"skip_build"`
	BuildTimeout     string   `mapstructure:"build_timeout"`
	RunTimeout       string   `mapstructure:"run_timeout"`
	MemoryLimitPages *uint32  `mapstructure:"memory_limit_pages"`
	WorkDir          string   `mapstructure:"work_dir"`
	LogLevel         string   `mapstructure:"log_level"`
}

func allKeys() []string {
	return []string{
		"golden",
		"roots",
		"exports",
		"imports",
		"audit",
		"fail_fast",
		"skip_build",
		"build_timeout",
		"run_timeout",
		"memory_limit_pages",
		"work_dir",
		"log_level",
	}
}

// LoadConfig reads path (any format viper understands) when non-empty and
// applies FFI_* environment overrides on top.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, ewrap.Wrapf(err, "failed to read config file %s", path)
		}
	}
	if err := configureEnv(v); err != nil {
		return Config{}, err
	}
	return fromViper(v)
}

// ConfigFromTOML parses a TOML document, then applies environment overrides.
func ConfigFromTOML(data []byte) (Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return Config{}, ewrap.Wrapf(err, "failed to read config from TOML")
	}
	if err := configureEnv(v); err != nil {
		return Config{}, err
	}
	return fromViper(v)
}

func configureEnv(v *viper.Viper) error {
	v.SetEnvPrefix(strings.ToLower(EnvPrefix))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	group := ewrap.NewErrorGroup()
	for _, key := range allKeys() {
		if err := v.BindEnv(key); err != nil {
			group.Add(err)
		}
	}
	if group.HasErrors() {
		return group
	}
	return nil
}

func fromViper(v *viper.Viper) (Config, error) {
	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, ewrap.Wrapf(err, "failed to unmarshal config")
	}
	return applyRaw(raw)
}

func applyRaw(raw rawConfig) (Config, error) {
	cfg := DefaultConfig()

	if raw.Golden != "" {
		cfg.Golden = raw.Golden
	}
	if len(raw.Roots) > 0 {
		cfg.Roots = splitList(raw.Roots)
	}
	if len(raw.Exports) > 0 {
		cfg.Exports = splitList(raw.Exports)
	}
	if len(raw.Imports) > 0 {
		cfg.Imports = splitList(raw.Imports)
	}
	if raw.Audit != nil {
		cfg.Audit = *raw.Audit
	}
	if raw.FailFast != nil {
		cfg.FailFast = *raw.FailFast
	}
	if raw.SkipBuild != nil {
		cfg.SkipBuild = *raw.SkipBuild
	}
	if raw.BuildTimeout != "" {
		d, err := time.ParseDuration(strings.TrimSpace(raw.BuildTimeout))
		if err != nil {
			return Config{}, ewrap.Wrapf(err, "invalid build_timeout %q", raw.BuildTimeout)
		}
		cfg.BuildTimeout = d
	}
	if raw.RunTimeout != "" {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RunTimeout))
		if err != nil {
			return Config{}, ewrap.Wrapf(err, "invalid run_timeout %q", raw.RunTimeout)
		}
		cfg.RunTimeout = d
	}
	if raw.MemoryLimitPages != nil {
		cfg.MemoryLimitPages = *raw.MemoryLimitPages
	}
	if raw.WorkDir != "" {
		cfg.WorkDir = raw.WorkDir
	}
	if raw.LogLevel != "" {
		level, err := zapcore.ParseLevel(raw.LogLevel)
		if err != nil {
			return Config{}, ewrap.Wrapf(err, "invalid log_level %q", raw.LogLevel)
		}
		cfg.LogLevel = level
	}
	return cfg, nil
}

// splitList accepts both list values and comma separated strings, which is
// what environment overrides produce.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

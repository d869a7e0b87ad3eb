package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"PenTarget/internal/target"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	appDirName = "PenTarget"
	envPrefix  = "PENTARGET"
)

// Config holds application configuration.
type Config struct {
	Target  TargetConfig
	Mapping MappingConfig
	Run     RunConfig
	Hotkey  HotkeyConfig
	Log     LogConfig
	Feed    FeedConfig

	// Path is the configuration file in effect, whether or not it exists.
	Path string `mapstructure:"-"`
}

// TargetConfig names the window to follow. Both fields empty means no
// target is configured.
type TargetConfig struct {
	Kind  string
	Value string
}

type MappingConfig struct {
	PreserveAspect     bool `mapstructure:"preserve_aspect"`
	FullWhenUnfocused  bool `mapstructure:"full_when_unfocused"`
	ReopenOnForeground bool `mapstructure:"reopen_on_foreground"`
	Dump               bool
}

type RunConfig struct {
	StartEnabled bool `mapstructure:"start_enabled"`
}

type HotkeyConfig struct {
	Enabled bool
}

type LogConfig struct {
	Level string
}

type FeedConfig struct {
	Capacity     int
	WaitInterval time.Duration `mapstructure:"wait_interval"`
}

// Flag names bound onto configuration keys by Load.
var flagKeys = map[string]string{
	"preserve-aspect":     "mapping.preserve_aspect",
	"full-when-unfocused": "mapping.full_when_unfocused",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target.kind", "")
	v.SetDefault("target.value", "")
	v.SetDefault("mapping.preserve_aspect", false)
	v.SetDefault("mapping.full_when_unfocused", false)
	v.SetDefault("mapping.reopen_on_foreground", true)
	v.SetDefault("mapping.dump", false)
	v.SetDefault("run.start_enabled", true)
	v.SetDefault("hotkey.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("feed.capacity", 500)
	v.SetDefault("feed.wait_interval", 5*time.Second)
}

// ResolvePath picks the configuration file: an explicit path, then
// PENTARGET_CONFIG, then %APPDATA%\PenTarget\config.toml.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
		return v
	}
	return filepath.Join(defaultDir(), "config.toml")
}

func defaultDir() string {
	if v := os.Getenv("APPDATA"); v != "" {
		return filepath.Join(v, appDirName)
	}
	if v := os.Getenv("LOCALAPPDATA"); v != "" {
		return filepath.Join(v, appDirName)
	}
	if v, err := os.UserConfigDir(); err == nil {
		return filepath.Join(v, appDirName)
	}
	return "."
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")
	v.SetConfigFile(path)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// The device dump switch predates the prefixed variables.
	_ = v.BindEnv("mapping.dump", envPrefix+"_MAPPING_DUMP", "WINTAB_DUMP")
	return v
}

// readFile loads path into v. A missing file is not an error.
func readFile(v *viper.Viper, path string) error {
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load reads defaults, the TOML file, PENTARGET_* env and any changed flags
// in that order of increasing precedence. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	path = ResolvePath(path)
	v := newViper(path)
	if err := readFile(v, path); err != nil {
		return nil, err
	}
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Path = path
	return &c, nil
}

// TargetSpec converts the configured target. ok is false when no target is
// configured.
func (c TargetConfig) TargetSpec() (spec target.Spec, ok bool, err error) {
	if strings.TrimSpace(c.Kind) == "" && strings.TrimSpace(c.Value) == "" {
		return target.Spec{}, false, nil
	}
	spec, err = target.Parse(c.Kind, c.Value)
	if err != nil {
		return target.Spec{}, false, fmt.Errorf("config target: %w", err)
	}
	return spec, true, nil
}

// Save writes c to its Path, creating the directory if needed.
func Save(c *Config) error {
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("target.kind", c.Target.Kind)
	v.Set("target.value", c.Target.Value)
	v.Set("mapping.preserve_aspect", c.Mapping.PreserveAspect)
	v.Set("mapping.full_when_unfocused", c.Mapping.FullWhenUnfocused)
	v.Set("mapping.reopen_on_foreground", c.Mapping.ReopenOnForeground)
	v.Set("mapping.dump", c.Mapping.Dump)
	v.Set("run.start_enabled", c.Run.StartEnabled)
	v.Set("hotkey.enabled", c.Hotkey.Enabled)
	v.Set("log.level", c.Log.Level)
	v.Set("feed.capacity", c.Feed.Capacity)
	v.Set("feed.wait_interval", c.Feed.WaitInterval.String())

	if err := v.WriteConfigAs(c.Path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

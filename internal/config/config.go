// Package config loads the application configuration from defaults, an
// optional YAML file, INSOLE_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrHelp is returned by Load when -h/--help was requested
var ErrHelp = pflag.ErrHelp

const envPrefix = "INSOLE"

// Config is the validated application configuration
type Config struct {
	Mock         bool          `mapstructure:"mock"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	ScanDelay    time.Duration `mapstructure:"scan_delay"`
	ConnectDelay time.Duration `mapstructure:"connect_delay"`

	ScanTimeout    time.Duration `mapstructure:"scan_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	StreamTimeout  time.Duration `mapstructure:"stream_timeout"`
	CadenceWindow  time.Duration `mapstructure:"cadence_window"`

	Noise bool  `mapstructure:"noise"`
	Seed  int64 `mapstructure:"seed"`

	DeviceName         string `mapstructure:"device_name"`
	ServiceUUID        string `mapstructure:"service_uuid"`
	CharacteristicUUID string `mapstructure:"characteristic_uuid"`
	PreferredDevice    string `mapstructure:"preferred_device_file"`

	Log  LogConfig  `mapstructure:"log"`
	Feed FeedConfig `mapstructure:"feed"`

	Headless  bool          `mapstructure:"headless"`
	RecordFor time.Duration `mapstructure:"record_for"`
	Output    string        `mapstructure:"output"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type FeedConfig struct {
	Addr     string        `mapstructure:"addr"`
	Throttle time.Duration `mapstructure:"throttle"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mock", true)
	v.SetDefault("tick_interval", 100*time.Millisecond)
	v.SetDefault("scan_delay", 2*time.Second)
	v.SetDefault("connect_delay", time.Second)
	v.SetDefault("scan_timeout", 10*time.Second)
	v.SetDefault("connect_timeout", 10*time.Second)
	v.SetDefault("stream_timeout", 2*time.Second)
	v.SetDefault("cadence_window", 10*time.Second)
	v.SetDefault("noise", true)
	v.SetDefault("seed", 0)
	v.SetDefault("device_name", "ImpactInsoles")
	v.SetDefault("service_uuid", "12345678-1234-1234-1234-123456789abc")
	v.SetDefault("characteristic_uuid", "abcd1234-ab12-ab12-ab12-abcdef123456")
	v.SetDefault("preferred_device_file", "")
	v.SetDefault("log.file", "impact-insoles.log")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("feed.addr", "")
	v.SetDefault("feed.throttle", 100*time.Millisecond)
	v.SetDefault("headless", false)
	v.SetDefault("record_for", 30*time.Second)
	v.SetDefault("output", "yaml")
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("impact-insoles", pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.Bool("mock", true, "use the simulated insole instead of Bluetooth")
	fs.Duration("tick-interval", 100*time.Millisecond, "simulated frame period")
	fs.Duration("scan-timeout", 10*time.Second, "give up scanning after this long (0 = never)")
	fs.Duration("connect-timeout", 10*time.Second, "give up connecting after this long (0 = never)")
	fs.Duration("stream-timeout", 2*time.Second, "end a recording when no frame arrives for this long (0 = never)")
	fs.Bool("noise", true, "add sensor noise to the simulated gait")
	fs.Int64("seed", 0, "noise seed (0 = time based)")
	fs.String("device-name", "ImpactInsoles", "advertised insole name")
	fs.String("log-file", "impact-insoles.log", "log file path")
	fs.String("feed-addr", "", "serve the HTTP/websocket feed on this address, e.g. :8090")
	fs.Bool("headless", false, "record without the dashboard and print a report")
	fs.Duration("record-for", 30*time.Second, "headless recording length")
	fs.StringP("output", "o", "yaml", "headless report format: yaml or json")
	return fs
}

// flag name → config key, where they differ
var flagKeys = map[string]string{
	"tick-interval":   "tick_interval",
	"scan-timeout":    "scan_timeout",
	"connect-timeout": "connect_timeout",
	"stream-timeout":  "stream_timeout",
	"device-name":     "device_name",
	"log-file":        "log.file",
	"feed-addr":       "feed.addr",
	"record-for":      "record_for",
}

// Load builds the configuration from args (without the program name)
func Load(args []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		key := f.Name
		if k, ok := flagKeys[f.Name]; ok {
			key = k
		}
		bindErr = errors.Join(bindErr, v.BindPFlag(key, f))
	})
	if bindErr != nil {
		return nil, fmt.Errorf("bind flags: %w", bindErr)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects values the core cannot run with
func (c *Config) Validate() error {
	var errs []error
	positive := map[string]time.Duration{
		"tick_interval":  c.TickInterval,
		"scan_delay":     c.ScanDelay,
		"connect_delay":  c.ConnectDelay,
		"cadence_window": c.CadenceWindow,
	}
	for key, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %v", key, d))
		}
	}
	nonNegative := map[string]time.Duration{
		"scan_timeout":    c.ScanTimeout,
		"connect_timeout": c.ConnectTimeout,
		"stream_timeout":  c.StreamTimeout,
		"feed.throttle":   c.Feed.Throttle,
	}
	for key, d := range nonNegative {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must be >= 0, got %v", key, d))
		}
	}
	if c.Headless && c.RecordFor <= 0 {
		errs = append(errs, fmt.Errorf("record_for must be > 0 in headless mode, got %v", c.RecordFor))
	}
	if c.Output != "yaml" && c.Output != "json" {
		errs = append(errs, fmt.Errorf("output must be yaml or json, got %q", c.Output))
	}
	if !c.Mock && (c.ServiceUUID == "" || c.CharacteristicUUID == "") {
		errs = append(errs, errors.New("service_uuid and characteristic_uuid are required with mock=false"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

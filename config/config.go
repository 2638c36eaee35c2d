/*
Package config loads the configuration of a flowtree run from YAML
documents.
*/
package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Tie break modes
const (
	TieBreakRandom = "random"
	TieBreakFirst  = "first"
)

/*
Duration is a time.Duration read from YAML as a string such as "500ms"
or "10s". Bare integers are taken as seconds.
*/
type Duration time.Duration

// UnmarshalYAML parses the duration from its YAML scalar.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var seconds int64
	if err := unmarshal(&seconds); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	pd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %v", s, err)
	}
	*d = Duration(pd)
	return nil
}

// MarshalYAML returns the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RedisConfig holds the settings to share batches through redis.
type RedisConfig struct {
	// Addr is the host:port of the redis server. Batches are kept on
	// process memory when empty.
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
	DB     int    `yaml:"db"`
}

/*
Config holds the settings of a flowtree run.
*/
type Config struct {
	Schema     string `yaml:"schema"`
	Training   string `yaml:"training"`
	Table      string `yaml:"table"`
	Collection string `yaml:"collection"`
	LogsDir    string `yaml:"logs_dir"`

	MaxDepth   int    `yaml:"max_depth"`
	MinSamples int    `yaml:"min_samples"`
	TieBreak   string `yaml:"tie_break"`
	Seed       int64  `yaml:"seed"`

	DecayThreshold   Duration `yaml:"decay_threshold"`
	DecayTick        Duration `yaml:"decay_tick"`
	SnapshotInterval Duration `yaml:"snapshot_interval"`
	RecordPacing     Duration `yaml:"record_pacing"`
	PollInterval     Duration `yaml:"poll_interval"`
	SettleDelay      Duration `yaml:"settle_delay"`
	MaxVisits        int      `yaml:"max_visits"`

	MetricsAddr string      `yaml:"metrics_addr"`
	Redis       RedisConfig `yaml:"redis"`
}

/*
Default returns the configuration used for settings missing from a
configuration file.
*/
func Default() *Config {
	return &Config{
		Table:            "samples",
		LogsDir:          "logs",
		MinSamples:       1,
		TieBreak:         TieBreakRandom,
		Seed:             time.Now().UnixNano(),
		DecayThreshold:   Duration(10 * time.Second),
		DecayTick:        Duration(time.Second),
		SnapshotInterval: Duration(5 * time.Second),
		RecordPacing:     Duration(500 * time.Millisecond),
		PollInterval:     Duration(time.Second),
		SettleDelay:      Duration(100 * time.Millisecond),
		MaxVisits:        10,
		Redis:            RedisConfig{Prefix: "flowtree"},
	}
}

/*
Read takes a slice of bytes with a YAML configuration and returns the
default configuration overridden with it, or an error if it cannot be
parsed or is not valid.
*/
func Read(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, fmt.Errorf("parsing configuration: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

/*
ReadFromFile takes a filepath string, reads its contents and uses Read to
parse them. An empty filepath returns the default configuration.
*/
func ReadFromFile(filepath string) (*Config, error) {
	if filepath == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file %s: %v", filepath, err)
	}
	c, err := Read(data)
	if err != nil {
		return nil, fmt.Errorf("loading configuration file %s: %v", filepath, err)
	}
	return c, nil
}

/*
Validate returns an error describing the first invalid setting of the
configuration, or nil if all are valid.
*/
func (c *Config) Validate() error {
	switch {
	case c.MaxDepth < 0:
		return fmt.Errorf("invalid max_depth %d: cannot be negative", c.MaxDepth)
	case c.MinSamples < 0:
		return fmt.Errorf("invalid min_samples %d: cannot be negative", c.MinSamples)
	case c.TieBreak != TieBreakRandom && c.TieBreak != TieBreakFirst:
		return fmt.Errorf("invalid tie_break %q: expected %q or %q", c.TieBreak, TieBreakRandom, TieBreakFirst)
	case c.DecayThreshold <= 0:
		return fmt.Errorf("invalid decay_threshold %v: must be positive", c.DecayThreshold.Std())
	case c.DecayTick <= 0:
		return fmt.Errorf("invalid decay_tick %v: must be positive", c.DecayTick.Std())
	case c.SnapshotInterval < 0:
		return fmt.Errorf("invalid snapshot_interval %v: cannot be negative", c.SnapshotInterval.Std())
	case c.RecordPacing < 0:
		return fmt.Errorf("invalid record_pacing %v: cannot be negative", c.RecordPacing.Std())
	case c.PollInterval <= 0:
		return fmt.Errorf("invalid poll_interval %v: must be positive", c.PollInterval.Std())
	case c.SettleDelay < 0:
		return fmt.Errorf("invalid settle_delay %v: cannot be negative", c.SettleDelay.Std())
	case c.MaxVisits <= 0:
		return fmt.Errorf("invalid max_visits %d: must be positive", c.MaxVisits)
	}
	return nil
}

// String returns the configuration as YAML.
func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%#v", c)
	}
	return string(data)
}

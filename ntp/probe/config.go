/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package probe

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	"github.com/uptimecheck/ntpprobe/dscp"
)

const (
	// DefaultPort is the NTP port
	DefaultPort = 123
	// DefaultTimeout is how long we wait for a reply
	DefaultTimeout = 10 * time.Second
	// DefaultConcurrency is how many targets are checked at the same time
	DefaultConcurrency = 16
)

// Target describes a single NTP server to check
type Target struct {
	Name            string        `yaml:"name"`             // display name, defaults to host:port
	Host            string        `yaml:"host"`             // hostname or IPv4 address
	Port            int           `yaml:"port"`             // UDP port
	Timeout         time.Duration `yaml:"timeout"`          // how long to wait for the reply
	ExpectedStratum *int          `yaml:"expected_stratum"` // nil means any stratum is fine
	DSCP            int           `yaml:"dscp"`             // DSCP for request packet, 0 leaves it unset
}

// WithDefaults returns a copy of the target with zero port and timeout replaced by defaults
func (t Target) WithDefaults() Target {
	if t.Port == 0 {
		t.Port = DefaultPort
	}
	if t.Timeout == 0 {
		t.Timeout = DefaultTimeout
	}
	return t
}

// Validate target is sane
func (t Target) Validate() error {
	if t.Host == "" {
		return fmt.Errorf("host must be specified")
	}
	if t.Port <= 0 || t.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", t.Port)
	}
	if t.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than zero")
	}
	if t.ExpectedStratum != nil && (*t.ExpectedStratum < 0 || *t.ExpectedStratum > 255) {
		return fmt.Errorf("expected_stratum must be between 0 and 255, got %d", *t.ExpectedStratum)
	}
	if t.DSCP < 0 || t.DSCP > dscp.Max {
		return fmt.Errorf("dscp must be between 0 and %d, got %d", dscp.Max, t.DSCP)
	}
	return nil
}

// Address returns host:port of the target
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// String returns name of the target if set, address otherwise
func (t Target) String() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Address()
}

// Stratum is a helper to fill Target.ExpectedStratum
func Stratum(s int) *int {
	return &s
}

// Defaults are applied to every target which doesn't set the value itself
type Defaults struct {
	Port            int           `yaml:"port"`
	Timeout         time.Duration `yaml:"timeout"`
	ExpectedStratum *int          `yaml:"expected_stratum"`
	DSCP            int           `yaml:"dscp"`
}

// Config specifies a batch of checks
type Config struct {
	Concurrency int      `yaml:"concurrency"`
	Defaults    Defaults `yaml:"defaults"`
	Targets     []Target `yaml:"targets"`
}

// DefaultConfig returns Config initialized with default values
func DefaultConfig() *Config {
	return &Config{
		Concurrency: DefaultConcurrency,
		Defaults: Defaults{
			Port:    DefaultPort,
			Timeout: DefaultTimeout,
		},
	}
}

// Resolved returns targets with config defaults applied
func (c *Config) Resolved() []Target {
	targets := make([]Target, 0, len(c.Targets))
	for _, t := range c.Targets {
		if t.Port == 0 {
			t.Port = c.Defaults.Port
		}
		if t.Timeout == 0 {
			t.Timeout = c.Defaults.Timeout
		}
		if t.ExpectedStratum == nil && c.Defaults.ExpectedStratum != nil {
			s := *c.Defaults.ExpectedStratum
			t.ExpectedStratum = &s
		}
		if t.DSCP == 0 {
			t.DSCP = c.Defaults.DSCP
		}
		targets = append(targets, t.WithDefaults())
	}
	return targets
}

// Validate config is sane
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be greater than zero")
	}
	if c.Defaults.Timeout < 0 {
		return fmt.Errorf("defaults: timeout must be 0 or positive")
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target must be specified")
	}
	for i, t := range c.Resolved() {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("invalid target #%d (%s): %w", i, t, err)
		}
	}
	return nil
}

// ReadConfig reads config from the file
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	cData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(cData, &c)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// PrepareConfig prepares final version of config based on defaults, CLI flags and on-disk config, and validates resulting config
func PrepareConfig(cfgPath string, hosts []string, port int, timeout time.Duration, stratum int, dscpValue int, concurrency int, setFlags map[string]bool) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	warn := func(name string) {
		if cfgPath != "" {
			log.Warningf("overriding %s from CLI flag", name)
		}
	}
	if cfgPath != "" {
		cfg, err = ReadConfig(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("reading config from %q: %w", cfgPath, err)
		}
	}
	if len(hosts) > 0 {
		warn("targets")
		cfg.Targets = make([]Target, 0, len(hosts))
		for _, h := range hosts {
			cfg.Targets = append(cfg.Targets, Target{Host: h})
		}
	}
	if setFlags["port"] {
		warn("port")
		cfg.Defaults.Port = port
	}
	if setFlags["timeout"] {
		warn("timeout")
		cfg.Defaults.Timeout = timeout
	}
	if setFlags["stratum"] {
		warn("stratum")
		cfg.Defaults.ExpectedStratum = Stratum(stratum)
	}
	if setFlags["dscp"] {
		warn("dscp")
		cfg.Defaults.DSCP = dscpValue
	}
	if setFlags["concurrency"] {
		warn("concurrency")
		cfg.Concurrency = concurrency
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	log.Debugf("config: %+v", cfg)
	return cfg, nil
}

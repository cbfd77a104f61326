// Copyright 2025 Certen Protocol
//
// Topology file loader for cmd/fastpay's generate-all subcommand: the one
// author-facing config surface this spec scopes to YAML rather than JSON
// (spec.md §6's own persisted-state files stay JSON). It uses
// os.ReadFile + yaml.Unmarshal, plus
// ${VAR_NAME} / ${VAR_NAME:-default} environment substitution applied to
// the raw file before parsing, so a topology file can point at
// environment-specific hosts without checking secrets into it.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// TopologyAuthority describes one authority to generate configs for.
type TopologyAuthority struct {
	Name   string `yaml:"name"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Shards uint32 `yaml:"shards"`
}

// Topology is the generate-all input: every authority to stand up plus the
// committee weight they should each receive.
type Topology struct {
	Transport  string              `yaml:"transport"`
	Weight     uint64              `yaml:"weight"`
	BufferSize int                 `yaml:"buffer_size"`
	Authorities []TopologyAuthority `yaml:"authorities"`
}

// LoadTopology reads a YAML topology file, substituting ${VAR_NAME} /
// ${VAR_NAME:-default} environment references before parsing.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("topology: read %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var top Topology
	if err := yaml.Unmarshal([]byte(expanded), &top); err != nil {
		return nil, fmt.Errorf("topology: parse %s: %w", path, err)
	}
	if err := top.applyDefaults(); err != nil {
		return nil, err
	}
	return &top, nil
}

func (t *Topology) applyDefaults() error {
	if t.Transport == "" {
		t.Transport = "tcp"
	}
	if t.Weight == 0 {
		t.Weight = 1
	}
	if t.BufferSize == 0 {
		t.BufferSize = 65536
	}
	if len(t.Authorities) == 0 {
		return fmt.Errorf("topology: at least one authority is required")
	}
	for _, a := range t.Authorities {
		if a.Name == "" {
			return fmt.Errorf("topology: authority missing name")
		}
		if a.Shards == 0 {
			return fmt.Errorf("topology: authority %s missing shards", a.Name)
		}
	}
	return nil
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

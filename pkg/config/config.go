// Copyright 2025 Certen Protocol
//
// Package config loads the three JSON files that make up an authority's
// persisted state (spec.md §6): AuthorityServerConfig, CommitteeConfig, and
// InitialStateConfig. Like every repo in the reference corpus that needs a
// structured config file, it reaches directly for a marshal package rather
// than hand-rolling a parser — here that's encoding/json, matching spec.md's own "JSON
// files" wording for this surface (YAML stays scoped to cmd/fastpay's
// generate-all topology file, the one place the spec allows it).
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fastpay/authority/pkg/errs"
	"github.com/fastpay/authority/pkg/transport"
	"github.com/fastpay/authority/pkg/types"
)

// AuthorityServerConfig is one authority process's own identity and
// network configuration.
type AuthorityServerConfig struct {
	Name             string `json:"name"`
	SecretKeyBase64  string `json:"secret_key_base64"`
	Host             string `json:"host"`
	Port             int    `json:"port"`
	Transport        string `json:"transport"` // "tcp" or "udp"
	BufferSize       int    `json:"buffer_size"`
	Shards           uint32 `json:"shards"`
	MetricsAddr      string `json:"metrics_addr,omitempty"`
	DatabaseURL      string `json:"database_url,omitempty"`
	DatabaseRequired bool   `json:"database_required,omitempty"`
	MaxAttempts      int    `json:"max_attempts,omitempty"`
}

// Addr is the host:port this authority listens on.
func (c AuthorityServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TransportKind parses Transport into a transport.Kind.
func (c AuthorityServerConfig) TransportKind() (transport.Kind, error) {
	switch c.Transport {
	case string(transport.KindTCP):
		return transport.KindTCP, nil
	case string(transport.KindUDP):
		return transport.KindUDP, nil
	default:
		return "", errs.New(errs.InvalidEncoding, "unknown transport: "+c.Transport)
	}
}

// KeyPair decodes SecretKeyBase64 into a usable signing key.
func (c AuthorityServerConfig) KeyPair() (*types.KeyPair, error) {
	return types.KeyPairFromSecretBase64(c.SecretKeyBase64)
}

// Validate checks the fields a server cannot safely start without.
func (c AuthorityServerConfig) Validate() error {
	if c.Name == "" {
		return errs.New(errs.InvalidEncoding, "authority server config: name is required")
	}
	if c.SecretKeyBase64 == "" {
		return errs.New(errs.InvalidEncoding, "authority server config: secret_key_base64 is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errs.New(errs.InvalidEncoding, "authority server config: port out of range")
	}
	if _, err := c.TransportKind(); err != nil {
		return err
	}
	if c.Shards == 0 {
		return errs.New(errs.InvalidEncoding, "authority server config: shards must be positive")
	}
	if c.BufferSize <= 0 {
		return errs.New(errs.InvalidEncoding, "authority server config: buffer_size must be positive")
	}
	return nil
}

// LoadAuthorityServerConfig reads and validates an AuthorityServerConfig
// from path.
func LoadAuthorityServerConfig(path string) (*AuthorityServerConfig, error) {
	var cfg AuthorityServerConfig
	if err := loadJSON(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CommitteeMember is one authority's public identity and voting weight, as
// recorded in genesis.
type CommitteeMember struct {
	Name      string `json:"name"`
	PublicKey string `json:"public_key_base64"`
	Weight    uint64 `json:"weight"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Transport string `json:"transport"`
}

// CommitteeConfig is the genesis-agreed, shared committee membership
// (spec.md §4.C).
type CommitteeConfig struct {
	Members []CommitteeMember `json:"members"`
}

// Validate checks that every member decodes to a valid address and carries
// a positive weight.
func (c CommitteeConfig) Validate() error {
	if len(c.Members) == 0 {
		return errs.New(errs.CertificateRequiresQuorum, "committee config: no members")
	}
	for _, m := range c.Members {
		if m.Weight == 0 {
			return errs.New(errs.CertificateRequiresQuorum, "committee config: member "+m.Name+" has zero weight")
		}
		if _, err := types.DecodeAddressBase64(m.PublicKey); err != nil {
			return err
		}
	}
	return nil
}

// Weights decodes every member's public key and returns the name->weight
// map pkg/committee.New expects.
func (c CommitteeConfig) Weights() (map[types.AuthorityName]uint64, error) {
	out := make(map[types.AuthorityName]uint64, len(c.Members))
	for _, m := range c.Members {
		addr, err := types.DecodeAddressBase64(m.PublicKey)
		if err != nil {
			return nil, err
		}
		out[addr] = m.Weight
	}
	return out, nil
}

// LoadCommitteeConfig reads and validates a CommitteeConfig from path.
func LoadCommitteeConfig(path string) (*CommitteeConfig, error) {
	var cfg CommitteeConfig
	if err := loadJSON(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// InitialAccount is one account's genesis balance.
type InitialAccount struct {
	AccountId string `json:"account_id_base64"`
	Balance   int64  `json:"balance"`
}

// InitialStateConfig seeds every account's genesis balance (spec.md §3
// "Lifecycles").
type InitialStateConfig struct {
	Accounts []InitialAccount `json:"accounts"`
}

// Validate checks every account id decodes and no balance is negative.
func (c InitialStateConfig) Validate() error {
	for _, a := range c.Accounts {
		if a.Balance < 0 {
			return errs.New(errs.BalanceUnderflow, "initial state config: negative balance for "+a.AccountId)
		}
		if _, err := types.DecodeAddressBase64(a.AccountId); err != nil {
			return err
		}
	}
	return nil
}

// LoadInitialStateConfig reads and validates an InitialStateConfig from
// path.
func LoadInitialStateConfig(path string) (*InitialStateConfig, error) {
	var cfg InitialStateConfig
	if err := loadJSON(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

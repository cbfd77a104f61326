// Copyright 2025 Certen Protocol

package config

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeJSON(t *testing.T, dir, name string, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadAuthorityServerConfigValidatesRequiredFields(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "server.json", AuthorityServerConfig{
		Name:            "authority-1",
		SecretKeyBase64: base64.StdEncoding.EncodeToString(make([]byte, ed25519.PrivateKeySize)),
		Host:            "127.0.0.1",
		Port:            9000,
		Transport:       "tcp",
		BufferSize:      65536,
		Shards:          4,
	})

	cfg, err := LoadAuthorityServerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr: %s", cfg.Addr())
	}
	if kind, err := cfg.TransportKind(); err != nil || string(kind) != "tcp" {
		t.Fatalf("unexpected transport kind: %v %v", kind, err)
	}
}

func TestLoadAuthorityServerConfigRejectsBadTransport(t *testing.T) {
	dir := t.TempDir()
	path := writeJSON(t, dir, "server.json", AuthorityServerConfig{
		Name:            "authority-1",
		SecretKeyBase64: base64.StdEncoding.EncodeToString(make([]byte, ed25519.PrivateKeySize)),
		Host:            "127.0.0.1",
		Port:            9000,
		Transport:       "quic",
		BufferSize:      65536,
		Shards:          4,
	})

	if _, err := LoadAuthorityServerConfig(path); err == nil {
		t.Fatalf("expected unknown transport to be rejected")
	}
}

func TestLoadCommitteeConfigRejectsZeroWeight(t *testing.T) {
	_, pub, _ := ed25519.GenerateKey(nil)

	dir := t.TempDir()
	path := writeJSON(t, dir, "committee.json", CommitteeConfig{
		Members: []CommitteeMember{
			{Name: "a", PublicKey: base64.StdEncoding.EncodeToString(pub), Weight: 0},
		},
	})

	if _, err := LoadCommitteeConfig(path); err == nil {
		t.Fatalf("expected zero-weight member to be rejected")
	}
}

func TestLoadCommitteeConfigWeightsRoundTrip(t *testing.T) {
	_, pub1, _ := ed25519.GenerateKey(nil)
	_, pub2, _ := ed25519.GenerateKey(nil)

	dir := t.TempDir()
	path := writeJSON(t, dir, "committee.json", CommitteeConfig{
		Members: []CommitteeMember{
			{Name: "a", PublicKey: base64.StdEncoding.EncodeToString(pub1), Weight: 2},
			{Name: "b", PublicKey: base64.StdEncoding.EncodeToString(pub2), Weight: 3},
		},
	})

	cfg, err := LoadCommitteeConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	weights, err := cfg.Weights()
	if err != nil {
		t.Fatalf("weights: %v", err)
	}
	if len(weights) != 2 {
		t.Fatalf("expected 2 weighted members, got %d", len(weights))
	}
}

func TestLoadInitialStateConfigRejectsNegativeBalance(t *testing.T) {
	_, pub, _ := ed25519.GenerateKey(nil)

	dir := t.TempDir()
	path := writeJSON(t, dir, "initial.json", InitialStateConfig{
		Accounts: []InitialAccount{
			{AccountId: base64.StdEncoding.EncodeToString(pub), Balance: -5},
		},
	})

	if _, err := LoadInitialStateConfig(path); err == nil {
		t.Fatalf("expected negative balance to be rejected")
	}
}

func TestLoadTopologyAppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("FASTPAY_TEST_HOST", "10.0.0.5")

	dir := t.TempDir()
	path := filepath.Join(dir, "topology.yaml")
	content := "authorities:\n  - name: authority-1\n    host: ${FASTPAY_TEST_HOST}\n    port: 9001\n    shards: 4\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	top, err := LoadTopology(path)
	if err != nil {
		t.Fatalf("load topology: %v", err)
	}
	if top.Transport != "tcp" {
		t.Fatalf("expected default transport tcp, got %s", top.Transport)
	}
	if len(top.Authorities) != 1 || top.Authorities[0].Host != "10.0.0.5" {
		t.Fatalf("expected env-substituted host, got %+v", top.Authorities)
	}
}

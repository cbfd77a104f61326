// Copyright 2025 Certen Protocol
//
// Package kvdb adapts CometBFT's dbm.DB to the small Get/Set contract
// pkg/account.Store and pkg/coconut.TagStore each declare structurally
// (they depend on that shape, not on this package's type), so either one
// can run against the in-memory memdb engine or a disk-backed dbm.DB
// without change.

package kvdb

import (
	dbm "github.com/cometbft/cometbft-db"
)

// KVAdapter wraps a CometBFT dbm.DB behind a plain Get/Set pair.
type KVAdapter struct {
	db dbm.DB
}

// NewKVAdapter creates a new KVAdapter for the given underlying DB.
func NewKVAdapter(db dbm.DB) *KVAdapter {
	return &KVAdapter{db: db}
}

// Get returns the value stored under key, or a nil slice if key is absent
// — callers treat a nil result as "not present", not as an error.
func (a *KVAdapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}
	return a.db.Get(key)
}

// Set writes key/value synchronously, so a confirmed write survives a
// crash immediately after this call returns.
func (a *KVAdapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.SetSync(key, value)
}

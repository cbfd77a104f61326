// Copyright 2025 Certen Protocol

package account

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/fastpay/authority/pkg/kvdb"
	"github.com/fastpay/authority/pkg/messages"
	"github.com/fastpay/authority/pkg/types"
)

// KV is the minimal key-value contract Store needs; kvdb.KVAdapter
// satisfies it structurally.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
}

// accountKeyPrefix namespaces account records in a KV space that may be
// shared with other components (coconut's spent-tag set, in particular).
var accountKeyPrefix = []byte("account:")

// accountKey is the address bytes length-prefixed with a big-endian uint32,
// matching the teacher's big-endian-prefixed-key convention for KV layout.
func accountKey(id types.AccountId) []byte {
	b := id.Bytes()
	key := make([]byte, 0, len(accountKeyPrefix)+4+len(b))
	key = append(key, accountKeyPrefix...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	key = append(key, lenBuf[:]...)
	key = append(key, b...)
	return key
}

// Store is the home-shard's durable-shaped view of its Account records. The
// in-memory (memdb) cometbft-db backend is used per spec.md's no-persistence
// non-goal; the same Store works unmodified against a disk-backed dbm.DB.
type Store struct {
	kv KV
}

// NewMemStore opens a fresh in-memory account store (spec.md §4.D.1).
func NewMemStore() *Store {
	return &Store{kv: kvdb.NewKVAdapter(dbm.NewMemDB())}
}

// NewStore wraps an already-open cometbft-db handle.
func NewStore(db dbm.DB) *Store {
	return &Store{kv: kvdb.NewKVAdapter(db)}
}

// record is Account's JSON wire shape. Only the unexported dedup index
// (receivedSet) is left out; it is rebuilt lazily from ReceivedLog on load.
type record struct {
	ID                  types.AccountId        `json:"id"`
	Balance             types.Balance          `json:"balance"`
	NextSequence        types.SequenceNumber   `json:"next_sequence"`
	PendingConfirmation *messages.SignedVote   `json:"pending_confirmation,omitempty"`
	ConfirmedLog        []messages.Certificate `json:"confirmed_log,omitempty"`
	SynchronizationLog  []messages.Certificate `json:"synchronization_log,omitempty"`
	ReceivedLog         []messages.Certificate `json:"received_log,omitempty"`
}

func encodeAccount(a *Account) ([]byte, error) {
	return json.Marshal(record{
		ID:                  a.ID,
		Balance:             a.Balance,
		NextSequence:        a.NextSequence,
		PendingConfirmation: a.PendingConfirmation,
		ConfirmedLog:        a.ConfirmedLog,
		SynchronizationLog:  a.SynchronizationLog,
		ReceivedLog:         a.ReceivedLog,
	})
}

func decodeAccount(raw []byte) (*Account, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &Account{
		ID:                  r.ID,
		Balance:             r.Balance,
		NextSequence:        r.NextSequence,
		PendingConfirmation: r.PendingConfirmation,
		ConfirmedLog:        r.ConfirmedLog,
		SynchronizationLog:  r.SynchronizationLog,
		ReceivedLog:         r.ReceivedLog,
	}, nil
}

// Get fetches the account for id, or (nil, false, nil) if absent — the home
// shard treats absence as "not yet opened," distinct from a zero balance.
func (s *Store) Get(id types.AccountId) (*Account, bool, error) {
	raw, err := s.kv.Get(accountKey(id))
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	a, err := decodeAccount(raw)
	if err != nil {
		return nil, false, fmt.Errorf("decode account %s: %w", id, err)
	}
	return a, true, nil
}

// Put persists a's current state under id.
func (s *Store) Put(id types.AccountId, a *Account) error {
	raw, err := encodeAccount(a)
	if err != nil {
		return fmt.Errorf("encode account %s: %w", id, err)
	}
	return s.kv.Set(accountKey(id), raw)
}

// GetOrCreate fetches id's account, creating a fresh, zero-balance record
// on first touch (spec.md §3 "Lifecycles").
func (s *Store) GetOrCreate(id types.AccountId) (*Account, error) {
	a, ok, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if ok {
		return a, nil
	}
	return New(id, types.ZeroBalance()), nil
}

// Copyright 2025 Certen Protocol
//
// Package audit appends confirmed certificates to PostgreSQL for
// after-the-fact inspection. It is an observability sink, not the source
// of truth — the in-memory/KV account store in pkg/authority remains
// authoritative (spec.md's non-goals exclude a durable external ledger);
// losing the audit database loses history, not correctness.
package audit

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/fastpay/authority/pkg/messages"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Sink is a PostgreSQL-backed append-only log of confirmed certificates.
type Sink struct {
	db     *sql.DB
	logger *log.Logger
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) SinkOption {
	return func(s *Sink) { s.logger = logger }
}

// NewSink opens a connection pool against databaseURL and verifies it with
// a ping before returning. Callers decide whether a failure here is fatal
// (DatabaseRequired) or merely runs the server without an audit sink.
func NewSink(databaseURL string, opts ...SinkOption) (*Sink, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("audit: database URL cannot be empty")
	}

	s := &Sink{logger: log.New(log.Writer(), "[audit] ", log.LstdFlags)}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping database: %w", err)
	}

	s.db = db
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Sink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the connection is alive.
func (s *Sink) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordCertificate appends one confirmed certificate. The dispatch shell
// calls it after every accepted confirmation order, replays included; the
// insert's ON CONFLICT clause keeps a single row per certified transfer.
func (s *Sink) RecordCertificate(ctx context.Context, cert messages.Certificate) error {
	digest, err := cert.Digest()
	if err != nil {
		return fmt.Errorf("audit: digest certificate: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO confirmed_certificates
			(digest, sender, recipient, amount, sequence, signer_count, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (digest) DO NOTHING`,
		fmt.Sprintf("%x", digest),
		cert.Value.Data.Sender.String(),
		cert.Value.Data.Recipient.String(),
		uint64(cert.Value.Data.Amount),
		uint64(cert.Value.Data.Sequence),
		len(cert.Signatures),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("audit: insert certificate: %w", err)
	}
	return nil
}

// MigrateUp applies every pending migration under migrations/, tracked in
// a schema_migrations table.
func (s *Sink) MigrateUp(ctx context.Context) error {
	migrations, err := s.listMigrations()
	if err != nil {
		return fmt.Errorf("audit: list migrations: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		if !strings.Contains(err.Error(), "does not exist") {
			return fmt.Errorf("audit: applied migrations: %w", err)
		}
		applied = make(map[string]bool)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		s.logger.Printf("applying migration %s", m.version)
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("audit: apply migration %s: %w", m.version, err)
		}
	}
	return nil
}

type migration struct {
	version string
	sql     string
}

func (s *Sink) listMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(migrationsFS, "migrations/"+e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, migration{version: strings.TrimSuffix(e.Name(), ".sql"), sql: string(content)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func (s *Sink) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Sink) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`, m.version, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

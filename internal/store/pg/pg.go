// Package pg is an optional Postgres-backed implementation of
// store.Store, pluggable behind the same contract the in-memory reference
// store implements (spec §9's "polymorphic storage" note). It is not
// required to run the server; cmd/iamd selects it only when a DSN is
// configured.
package pg

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"iamcore/internal/store"
)

// schema is applied once at Open. It is intentionally idempotent so Open
// can run against an already-provisioned database.
const schema = `
create table if not exists users (
	id uuid primary key,
	email text unique,
	created_at timestamptz not null default now()
);
create table if not exists user_public_keys (
	user_id uuid not null references users(id) on delete cascade,
	key bytea not null,
	description text not null default ''
);
create table if not exists groups (
	id uuid primary key,
	name text unique,
	created_at timestamptz not null default now()
);
create table if not exists policies (
	id uuid primary key,
	name text unique,
	hostname text not null,
	rules jsonb not null default '[]',
	created_at timestamptz not null default now()
);
create table if not exists memberships (
	user_id uuid not null references users(id) on delete cascade,
	group_id uuid not null references groups(id) on delete cascade,
	primary key (user_id, group_id)
);
create table if not exists user_policy_attachments (
	user_id uuid not null references users(id) on delete cascade,
	policy_id uuid not null references policies(id) on delete cascade,
	primary key (user_id, policy_id)
);
create table if not exists group_policy_attachments (
	group_id uuid not null references groups(id) on delete cascade,
	policy_id uuid not null references policies(id) on delete cascade,
	primary key (group_id, policy_id)
);
create table if not exists sessions (
	id uuid primary key,
	user_id uuid not null references users(id) on delete cascade,
	token text not null unique,
	expires_at timestamptz not null,
	created_at timestamptz not null default now()
);
`

// Store implements store.Store on top of a *sql.DB using the pgx stdlib
// driver.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn, tunes the pool, and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(20)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open *sql.DB, used by tests to inject a
// sqlmock-backed connection.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Users() store.UserStore             { return userStore{db: s.db} }
func (s *Store) Groups() store.GroupStore           { return groupStore{db: s.db} }
func (s *Store) Policies() store.PolicyStore        { return policyStore{db: s.db} }
func (s *Store) Memberships() store.MembershipStore { return membershipStore{db: s.db} }
func (s *Store) Attachments() store.AttachmentStore { return attachmentStore{db: s.db} }
func (s *Store) Sessions() store.SessionStore       { return sessionStore{db: s.db} }

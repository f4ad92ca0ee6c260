// Package store defines the persistence contract the rest of the server
// depends on. Concrete implementations live in memstore (the transactional
// in-memory reference store) and pg (an optional Postgres-backed store);
// callers depend on this package's interfaces only.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"iamcore/internal/iam"
)

// Store groups the per-entity sub-stores. A concrete implementation is
// injected once at startup.
type Store interface {
	Users() UserStore
	Groups() GroupStore
	Policies() PolicyStore
	Memberships() MembershipStore
	Attachments() AttachmentStore
	Sessions() SessionStore
}

// UserStore manages users and resolves user identifier variants.
type UserStore interface {
	Create(ctx context.Context, u iam.User) (iam.User, error)
	Get(ctx context.Context, ident iam.UserIdentifier) (iam.User, error)
	// ResolveID resolves any identifier variant to the underlying UUID
	// without loading the full record.
	ResolveID(ctx context.Context, ident iam.UserIdentifier) (uuid.UUID, error)
	List(ctx context.Context, offset, limit int) ([]iam.User, error)
	Delete(ctx context.Context, ident iam.UserIdentifier) error
}

// GroupStore manages groups.
type GroupStore interface {
	Create(ctx context.Context, g iam.Group) (iam.Group, error)
	Get(ctx context.Context, ident iam.GroupIdentifier) (iam.Group, error)
	ResolveID(ctx context.Context, ident iam.GroupIdentifier) (uuid.UUID, error)
	List(ctx context.Context, offset, limit int) ([]iam.Group, error)
	Delete(ctx context.Context, ident iam.GroupIdentifier) error
}

// PolicyStore manages policies and the aggregation query used by the
// authorization handler.
type PolicyStore interface {
	Create(ctx context.Context, p iam.Policy) (iam.Policy, error)
	Get(ctx context.Context, ident iam.PolicyIdentifier) (iam.Policy, error)
	Update(ctx context.Context, p iam.Policy) (iam.Policy, error)
	List(ctx context.Context, offset, limit int) ([]iam.Policy, error)
	Delete(ctx context.Context, ident iam.PolicyIdentifier) error

	// ListForUser returns every policy attached to uid, directly or via
	// group membership, whose Hostname equals host.
	ListForUser(ctx context.Context, uid uuid.UUID, host string) ([]iam.Policy, error)
}

// MembershipStore manages (user, group) pairs.
type MembershipStore interface {
	Create(ctx context.Context, uid iam.UserIdentifier, gid iam.GroupIdentifier) error
	Delete(ctx context.Context, uid iam.UserIdentifier, gid iam.GroupIdentifier) error
}

// AttachmentStore manages user-policy and group-policy attachments.
type AttachmentStore interface {
	CreateUserPolicy(ctx context.Context, uid iam.UserIdentifier, pid iam.PolicyIdentifier) error
	DeleteUserPolicy(ctx context.Context, uid iam.UserIdentifier, pid iam.PolicyIdentifier) error
	CreateGroupPolicy(ctx context.Context, gid iam.GroupIdentifier, pid iam.PolicyIdentifier) error
	DeleteGroupPolicy(ctx context.Context, gid iam.GroupIdentifier, pid iam.PolicyIdentifier) error
}

// SessionStore manages session lifecycle.
type SessionStore interface {
	Create(ctx context.Context, uid uuid.UUID, ttl time.Duration) (iam.Session, error)
	GetByID(ctx context.Context, uid, sid uuid.UUID) (iam.Session, error)
	GetByToken(ctx context.Context, uid uuid.UUID, token string) (iam.Session, error)
	Refresh(ctx context.Context, uid, sid uuid.UUID, ttl time.Duration) (iam.Session, error)
	Delete(ctx context.Context, uid, sid uuid.UUID) error
	List(ctx context.Context, uid uuid.UUID, offset, limit int) ([]iam.Session, error)
}

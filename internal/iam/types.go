// Package iam holds the identity and access management data model: users,
// groups, policies, sessions, and the pure policy evaluator. It has no
// storage or transport dependencies of its own — internal/store implements
// persistence over these types, and internal/authproto implements the
// request pipeline that reads them.
package iam

import (
	"time"

	"github.com/google/uuid"
)

// Effect is the outcome a Rule applies when it matches a request.
type Effect string

const (
	Allow Effect = "Allow"
	Deny  Effect = "Deny"
)

// Action is derived from the HTTP method of the request being authorized.
type Action string

const (
	Read  Action = "Read"
	Write Action = "Write"
)

// ActionForMethod maps an HTTP method to the coarse Read/Write action used
// by the policy evaluator. GET and HEAD are Read; everything else is Write.
func ActionForMethod(method string) Action {
	switch method {
	case "GET", "HEAD":
		return Read
	default:
		return Write
	}
}

// Rule is one line of a policy: it grants or denies an action against
// resources matching a path-prefix glob.
type Rule struct {
	Effect   Effect `json:"effect"`
	Action   Action `json:"action"`
	Resource string `json:"resource"`
}

// UserPublicKey is one Ed25519 public key registered to a user, along with
// a human description (e.g. "laptop", "ci-runner"). Key holds the raw key
// bytes; only a 32-byte key can ever match the key presented on a request,
// and the length is not checked when a user is created. json.Marshal
// renders it as standard base64, matching the wire format of the
// X-IAM-Public-Key header.
type UserPublicKey struct {
	Key         []byte `json:"key"`
	Description string `json:"description"`
}

// User is a principal that can authenticate by signing requests with one of
// its registered public keys.
type User struct {
	ID         uuid.UUID       `json:"id"`
	Email      string          `json:"email,omitempty"`
	Groups     []uuid.UUID     `json:"groups,omitempty"`
	Policies   []uuid.UUID     `json:"policies,omitempty"`
	PublicKeys []UserPublicKey `json:"public_keys,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Group aggregates users and grants them its attached policies.
type Group struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name,omitempty"`
	Users     []uuid.UUID `json:"users,omitempty"`
	Policies  []uuid.UUID `json:"policies,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Policy is a named, hostname-scoped collection of rules.
type Policy struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name,omitempty"`
	Hostname  string    `json:"hostname"`
	Rules     []Rule    `json:"rules"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a bearer-token handle bound to one user, with a finite TTL.
// Token is never rendered by the default JSON marshaling of this type; the
// httpapi layer sets it explicitly on the one response that must return it
// (session creation).
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

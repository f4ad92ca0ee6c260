package iam

import "github.com/google/uuid"

// UserIdentifier is one of {UUID-only, email-only, UUID+email}. Resolution
// rule (spec §4.2): if the UUID form is present it is authoritative; the
// alias is otherwise looked up in the store's alias index. In the
// UUID+email form the email is carried for the caller's convenience only —
// it is never used to resolve or to verify the record.
type UserIdentifier struct {
	id    uuid.UUID
	hasID bool
	email string
}

func UserID(id uuid.UUID) UserIdentifier    { return UserIdentifier{id: id, hasID: true} }
func UserEmail(email string) UserIdentifier { return UserIdentifier{email: email} }
func UserIDAndEmail(id uuid.UUID, email string) UserIdentifier {
	return UserIdentifier{id: id, hasID: true, email: email}
}

// HasID reports whether the identifier carries a UUID form.
func (u UserIdentifier) HasID() bool { return u.hasID }

// ID returns the UUID form, if present.
func (u UserIdentifier) ID() uuid.UUID { return u.id }

// Email returns the email alias, if present (empty string otherwise).
func (u UserIdentifier) Email() string { return u.email }

// ParseUserIdentifier interprets a wire value that is either a UUID or an
// email. Per spec §9's open question, any string that fails to parse as a
// UUID is treated as an email with no further syntactic validation.
func ParseUserIdentifier(s string) UserIdentifier {
	if id, err := uuid.Parse(s); err == nil {
		return UserID(id)
	}
	return UserEmail(s)
}

// GroupIdentifier is the group analogue of UserIdentifier, aliased by name.
type GroupIdentifier struct {
	id    uuid.UUID
	hasID bool
	name  string
}

func GroupID(id uuid.UUID) GroupIdentifier  { return GroupIdentifier{id: id, hasID: true} }
func GroupName(name string) GroupIdentifier { return GroupIdentifier{name: name} }
func GroupIDAndName(id uuid.UUID, name string) GroupIdentifier {
	return GroupIdentifier{id: id, hasID: true, name: name}
}

func (g GroupIdentifier) HasID() bool   { return g.hasID }
func (g GroupIdentifier) ID() uuid.UUID { return g.id }
func (g GroupIdentifier) Name() string  { return g.name }

func ParseGroupIdentifier(s string) GroupIdentifier {
	if id, err := uuid.Parse(s); err == nil {
		return GroupID(id)
	}
	return GroupName(s)
}

// PolicyIdentifier is the policy analogue of UserIdentifier, aliased by name.
type PolicyIdentifier struct {
	id    uuid.UUID
	hasID bool
	name  string
}

func PolicyID(id uuid.UUID) PolicyIdentifier  { return PolicyIdentifier{id: id, hasID: true} }
func PolicyName(name string) PolicyIdentifier { return PolicyIdentifier{name: name} }
func PolicyIDAndName(id uuid.UUID, name string) PolicyIdentifier {
	return PolicyIdentifier{id: id, hasID: true, name: name}
}

func (p PolicyIdentifier) HasID() bool   { return p.hasID }
func (p PolicyIdentifier) ID() uuid.UUID { return p.id }
func (p PolicyIdentifier) Name() string  { return p.name }

func ParsePolicyIdentifier(s string) PolicyIdentifier {
	if id, err := uuid.Parse(s); err == nil {
		return PolicyID(id)
	}
	return PolicyName(s)
}

package iam

import "fmt"

// Kind is one of the error taxonomy entries from spec §7. It is compared
// with errors.Is-style helpers below rather than exposed as a raw string so
// callers cannot typo a kind.
type Kind string

const (
	KindNotFound             Kind = "NotFound"
	KindAlreadyExists        Kind = "AlreadyExists"
	KindAuthenticationFailed Kind = "AuthenticationFailed"
	KindNotAuthorized        Kind = "NotAuthorized"
	KindInternalError        Kind = "InternalError"
)

// AuthFailReason is the sub-classification carried by an
// AuthenticationFailed error. Handlers may log it; the HTTP response body
// never distinguishes it (spec §7: "never distinguish which part failed in
// the user-visible message").
type AuthFailReason string

const (
	InvalidHeaders   AuthFailReason = "InvalidHeaders"
	InvalidHost      AuthFailReason = "InvalidHost"
	InvalidSignature AuthFailReason = "InvalidSignature"
	UserNotFound     AuthFailReason = "UserNotFound"
)

// Error is the single error type produced anywhere in the storage and
// authentication/authorization pipeline. Kind selects which fields are
// meaningful.
type Error struct {
	Kind   Kind
	Entity string         // set for NotFound / AlreadyExists
	Ident  string         // set for NotFound / AlreadyExists
	Reason AuthFailReason // set for AuthenticationFailed
	Cause  error          // set for InternalError
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("not found: %s %q", e.Entity, e.Ident)
	case KindAlreadyExists:
		return fmt.Sprintf("already exists: %s %q", e.Entity, e.Ident)
	case KindAuthenticationFailed:
		return fmt.Sprintf("authentication failed: %s", e.Reason)
	case KindNotAuthorized:
		return "not authorized"
	case KindInternalError:
		if e.Cause != nil {
			return fmt.Sprintf("internal error: %v", e.Cause)
		}
		return "internal error"
	default:
		return "iam: unknown error"
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, iam.NotFound("", "")) match on Kind alone,
// ignoring Entity/Ident, which is how call sites check "was this any
// NotFound" without caring about the specific resource.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	if t.Kind == KindAuthenticationFailed && t.Reason != "" {
		return e.Reason == t.Reason
	}
	return true
}

func NotFound(entity, ident string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, Ident: ident}
}

func AlreadyExists(entity, ident string) *Error {
	return &Error{Kind: KindAlreadyExists, Entity: entity, Ident: ident}
}

func AuthenticationFailed(reason AuthFailReason) *Error {
	return &Error{Kind: KindAuthenticationFailed, Reason: reason}
}

func NotAuthorized() *Error {
	return &Error{Kind: KindNotAuthorized}
}

func Internal(cause error) *Error {
	return &Error{Kind: KindInternalError, Cause: cause}
}

// IsNotFound reports whether err is (or wraps) a NotFound error, optionally
// for a specific entity kind when entity is non-empty.
func IsNotFound(err error, entity string) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	return e.Kind == KindNotFound && (entity == "" || e.Entity == entity)
}

func IsAlreadyExists(err error) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	return e.Kind == KindAlreadyExists
}

func IsAuthenticationFailed(err error) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	return e.Kind == KindAuthenticationFailed
}

func IsNotAuthorized(err error) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	return e.Kind == KindNotAuthorized
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"iamcore/internal/iam"
)

func resolveUserID(ctx context.Context, db *sql.DB, ident iam.UserIdentifier) (uuid.UUID, error) {
	if ident.HasID() {
		var exists bool
		err := db.QueryRowContext(ctx, `select exists(select 1 from users where id=$1)`, ident.ID()).Scan(&exists)
		if err != nil {
			return uuid.Nil, iam.Internal(err)
		}
		if !exists {
			return uuid.Nil, iam.NotFound("user", ident.ID().String())
		}
		return ident.ID(), nil
	}
	var id uuid.UUID
	err := db.QueryRowContext(ctx, `select id from users where email=$1`, ident.Email()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, iam.NotFound("user", ident.Email())
	}
	if err != nil {
		return uuid.Nil, iam.Internal(err)
	}
	return id, nil
}

func resolveGroupID(ctx context.Context, db *sql.DB, ident iam.GroupIdentifier) (uuid.UUID, error) {
	if ident.HasID() {
		var exists bool
		err := db.QueryRowContext(ctx, `select exists(select 1 from groups where id=$1)`, ident.ID()).Scan(&exists)
		if err != nil {
			return uuid.Nil, iam.Internal(err)
		}
		if !exists {
			return uuid.Nil, iam.NotFound("group", ident.ID().String())
		}
		return ident.ID(), nil
	}
	var id uuid.UUID
	err := db.QueryRowContext(ctx, `select id from groups where name=$1`, ident.Name()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, iam.NotFound("group", ident.Name())
	}
	if err != nil {
		return uuid.Nil, iam.Internal(err)
	}
	return id, nil
}

func resolvePolicyID(ctx context.Context, db *sql.DB, ident iam.PolicyIdentifier) (uuid.UUID, error) {
	if ident.HasID() {
		var exists bool
		err := db.QueryRowContext(ctx, `select exists(select 1 from policies where id=$1)`, ident.ID()).Scan(&exists)
		if err != nil {
			return uuid.Nil, iam.Internal(err)
		}
		if !exists {
			return uuid.Nil, iam.NotFound("policy", ident.ID().String())
		}
		return ident.ID(), nil
	}
	var id uuid.UUID
	err := db.QueryRowContext(ctx, `select id from policies where name=$1`, ident.Name()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, iam.NotFound("policy", ident.Name())
	}
	if err != nil {
		return uuid.Nil, iam.Internal(err)
	}
	return id, nil
}

// isUniqueViolation reports whether err looks like a Postgres unique
// constraint violation (SQLSTATE 23505), without importing the pgconn
// error type so this file works unmodified against sqlmock's generic
// driver errors too.
func isUniqueViolation(err error) bool {
	var s interface{ SQLState() string }
	if errors.As(err, &s) {
		return s.SQLState() == "23505"
	}
	return false
}

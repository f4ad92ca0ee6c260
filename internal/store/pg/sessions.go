package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"iamcore/internal/iam"
)

type sessionStore struct{ db *sql.DB }

func (s sessionStore) Create(ctx context.Context, uid uuid.UUID, ttl time.Duration) (iam.Session, error) {
	token, err := iam.NewSessionToken()
	if err != nil {
		return iam.Session{}, iam.Internal(err)
	}
	sid := uuid.New()
	expiresAt := time.Now().Add(ttl)
	_, err = s.db.ExecContext(ctx,
		`insert into sessions(id, user_id, token, expires_at, created_at) values($1,$2,$3,$4,now())`,
		sid, uid, token, expiresAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return iam.Session{}, iam.NotFound("user", uid.String())
		}
		return iam.Session{}, iam.Internal(err)
	}
	return s.GetByID(ctx, uid, sid)
}

func (s sessionStore) GetByID(ctx context.Context, uid, sid uuid.UUID) (iam.Session, error) {
	var sess iam.Session
	sess.ID = sid
	sess.UserID = uid
	err := s.db.QueryRowContext(ctx,
		`select token, expires_at, created_at from sessions where id=$1 and user_id=$2 and expires_at > now()`,
		sid, uid,
	).Scan(&sess.Token, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Session{}, iam.NotFound("session", sid.String())
	}
	if err != nil {
		return iam.Session{}, iam.Internal(err)
	}
	return sess, nil
}

func (s sessionStore) GetByToken(ctx context.Context, uid uuid.UUID, token string) (iam.Session, error) {
	var sess iam.Session
	sess.UserID = uid
	sess.Token = token
	err := s.db.QueryRowContext(ctx,
		`select id, expires_at, created_at from sessions where token=$1 and user_id=$2 and expires_at > now()`,
		token, uid,
	).Scan(&sess.ID, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Session{}, iam.NotFound("session", token)
	}
	if err != nil {
		return iam.Session{}, iam.Internal(err)
	}
	return sess, nil
}

func (s sessionStore) Refresh(ctx context.Context, uid, sid uuid.UUID, ttl time.Duration) (iam.Session, error) {
	res, err := s.db.ExecContext(ctx,
		`update sessions set expires_at = $3 where id=$1 and user_id=$2 and expires_at > now()`,
		sid, uid, time.Now().Add(ttl),
	)
	if err != nil {
		return iam.Session{}, iam.Internal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return iam.Session{}, iam.NotFound("session", sid.String())
	}
	return s.GetByID(ctx, uid, sid)
}

func (s sessionStore) Delete(ctx context.Context, uid, sid uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `delete from sessions where id=$1 and user_id=$2`, sid, uid)
	if err != nil {
		return iam.Internal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return iam.NotFound("session", sid.String())
	}
	return nil
}

func (s sessionStore) List(ctx context.Context, uid uuid.UUID, offset, limit int) ([]iam.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, token, expires_at, created_at from sessions
		where user_id=$1 and expires_at > now()
		order by created_at asc offset $2 limit $3
	`, uid, offset, limit)
	if err != nil {
		return nil, iam.Internal(err)
	}
	defer rows.Close()
	var out []iam.Session
	for rows.Next() {
		sess := iam.Session{UserID: uid}
		if err := rows.Scan(&sess.ID, &sess.Token, &sess.ExpiresAt, &sess.CreatedAt); err != nil {
			return nil, iam.Internal(err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func isForeignKeyViolation(err error) bool {
	var s interface{ SQLState() string }
	if errors.As(err, &s) {
		return s.SQLState() == "23503"
	}
	return false
}

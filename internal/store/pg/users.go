package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"iamcore/internal/iam"
)

type userStore struct{ db *sql.DB }

func (s userStore) Create(ctx context.Context, u iam.User) (iam.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return iam.User{}, iam.Internal(err)
	}
	defer func() { _ = tx.Rollback() }()

	var email sql.NullString
	if u.Email != "" {
		email = sql.NullString{String: u.Email, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`insert into users(id, email, created_at) values($1,$2,now()) returning created_at`,
		u.ID, email,
	); err != nil {
		if isUniqueViolation(err) {
			return iam.User{}, iam.AlreadyExists("user", u.Email)
		}
		return iam.User{}, iam.Internal(err)
	}
	for _, k := range u.PublicKeys {
		if _, err := tx.ExecContext(ctx,
			`insert into user_public_keys(user_id, key, description) values($1,$2,$3)`,
			u.ID, k.Key, k.Description,
		); err != nil {
			return iam.User{}, iam.Internal(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return iam.User{}, iam.Internal(err)
	}
	return s.Get(ctx, iam.UserID(u.ID))
}

func (s userStore) Get(ctx context.Context, ident iam.UserIdentifier) (iam.User, error) {
	id, err := resolveUserID(ctx, s.db, ident)
	if err != nil {
		return iam.User{}, err
	}
	var (
		u     iam.User
		email sql.NullString
	)
	u.ID = id
	err = s.db.QueryRowContext(ctx, `select email, created_at from users where id=$1`, id).Scan(&email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.User{}, iam.NotFound("user", id.String())
	}
	if err != nil {
		return iam.User{}, iam.Internal(err)
	}
	if email.Valid {
		u.Email = email.String
	}

	rows, err := s.db.QueryContext(ctx, `select key, description from user_public_keys where user_id=$1`, id)
	if err != nil {
		return iam.User{}, iam.Internal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var k iam.UserPublicKey
		if err := rows.Scan(&k.Key, &k.Description); err != nil {
			return iam.User{}, iam.Internal(err)
		}
		u.PublicKeys = append(u.PublicKeys, k)
	}
	if err := rows.Err(); err != nil {
		return iam.User{}, iam.Internal(err)
	}

	groups, err := queryUUIDs(ctx, s.db, `select group_id from memberships where user_id=$1`, id)
	if err != nil {
		return iam.User{}, err
	}
	u.Groups = groups

	policies, err := queryUUIDs(ctx, s.db, `select policy_id from user_policy_attachments where user_id=$1`, id)
	if err != nil {
		return iam.User{}, err
	}
	u.Policies = policies

	return u, nil
}

func (s userStore) ResolveID(ctx context.Context, ident iam.UserIdentifier) (uuid.UUID, error) {
	return resolveUserID(ctx, s.db, ident)
}

func (s userStore) List(ctx context.Context, offset, limit int) ([]iam.User, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `select id from users order by created_at asc offset $1 limit $2`, offset, limit)
	if err != nil {
		return nil, iam.Internal(err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, iam.Internal(err)
		}
		ids = append(ids, id)
	}
	out := make([]iam.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.Get(ctx, iam.UserID(id))
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (s userStore) Delete(ctx context.Context, ident iam.UserIdentifier) error {
	id, err := resolveUserID(ctx, s.db, ident)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return iam.Internal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return iam.NotFound("user", id.String())
	}
	return nil
}

func queryUUIDs(ctx context.Context, db *sql.DB, query string, arg any) ([]uuid.UUID, error) {
	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, iam.Internal(err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, iam.Internal(err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

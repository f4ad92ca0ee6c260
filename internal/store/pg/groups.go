package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"iamcore/internal/iam"
)

type groupStore struct{ db *sql.DB }

func (s groupStore) Create(ctx context.Context, g iam.Group) (iam.Group, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	var name sql.NullString
	if g.Name != "" {
		name = sql.NullString{String: g.Name, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx,
		`insert into groups(id, name, created_at) values($1,$2,now())`,
		g.ID, name,
	); err != nil {
		if isUniqueViolation(err) {
			return iam.Group{}, iam.AlreadyExists("group", g.Name)
		}
		return iam.Group{}, iam.Internal(err)
	}
	return s.Get(ctx, iam.GroupID(g.ID))
}

func (s groupStore) Get(ctx context.Context, ident iam.GroupIdentifier) (iam.Group, error) {
	id, err := resolveGroupID(ctx, s.db, ident)
	if err != nil {
		return iam.Group{}, err
	}
	var (
		g    iam.Group
		name sql.NullString
	)
	g.ID = id
	err = s.db.QueryRowContext(ctx, `select name, created_at from groups where id=$1`, id).Scan(&name, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Group{}, iam.NotFound("group", id.String())
	}
	if err != nil {
		return iam.Group{}, iam.Internal(err)
	}
	if name.Valid {
		g.Name = name.String
	}

	users, err := queryUUIDs(ctx, s.db, `select user_id from memberships where group_id=$1`, id)
	if err != nil {
		return iam.Group{}, err
	}
	g.Users = users

	policies, err := queryUUIDs(ctx, s.db, `select policy_id from group_policy_attachments where group_id=$1`, id)
	if err != nil {
		return iam.Group{}, err
	}
	g.Policies = policies

	return g, nil
}

func (s groupStore) ResolveID(ctx context.Context, ident iam.GroupIdentifier) (uuid.UUID, error) {
	return resolveGroupID(ctx, s.db, ident)
}

func (s groupStore) List(ctx context.Context, offset, limit int) ([]iam.Group, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `select id from groups order by created_at asc offset $1 limit $2`, offset, limit)
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
	out := make([]iam.Group, 0, len(ids))
	for _, id := range ids {
		g, err := s.Get(ctx, iam.GroupID(id))
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (s groupStore) Delete(ctx context.Context, ident iam.GroupIdentifier) error {
	id, err := resolveGroupID(ctx, s.db, ident)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `delete from groups where id=$1`, id)
	if err != nil {
		return iam.Internal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return iam.NotFound("group", id.String())
	}
	return nil
}

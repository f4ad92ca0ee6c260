package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"iamcore/internal/iam"
)

type policyStore struct{ db *sql.DB }

func (s policyStore) Create(ctx context.Context, p iam.Policy) (iam.Policy, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	rules, err := json.Marshal(p.Rules)
	if err != nil {
		return iam.Policy{}, iam.Internal(err)
	}
	var name sql.NullString
	if p.Name != "" {
		name = sql.NullString{String: p.Name, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx,
		`insert into policies(id, name, hostname, rules, created_at) values($1,$2,$3,$4,now())`,
		p.ID, name, p.Hostname, rules,
	); err != nil {
		if isUniqueViolation(err) {
			return iam.Policy{}, iam.AlreadyExists("policy", p.Name)
		}
		return iam.Policy{}, iam.Internal(err)
	}
	return s.Get(ctx, iam.PolicyID(p.ID))
}

func (s policyStore) Get(ctx context.Context, ident iam.PolicyIdentifier) (iam.Policy, error) {
	id, err := resolvePolicyID(ctx, s.db, ident)
	if err != nil {
		return iam.Policy{}, err
	}
	return scanPolicy(ctx, s.db, id)
}

func scanPolicy(ctx context.Context, db *sql.DB, id uuid.UUID) (iam.Policy, error) {
	var (
		p      iam.Policy
		name   sql.NullString
		rulesJ []byte
	)
	p.ID = id
	err := db.QueryRowContext(ctx,
		`select name, hostname, rules, created_at from policies where id=$1`, id,
	).Scan(&name, &p.Hostname, &rulesJ, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return iam.Policy{}, iam.NotFound("policy", id.String())
	}
	if err != nil {
		return iam.Policy{}, iam.Internal(err)
	}
	if name.Valid {
		p.Name = name.String
	}
	if err := json.Unmarshal(rulesJ, &p.Rules); err != nil {
		return iam.Policy{}, iam.Internal(err)
	}
	return p, nil
}

func (s policyStore) Update(ctx context.Context, p iam.Policy) (iam.Policy, error) {
	rules, err := json.Marshal(p.Rules)
	if err != nil {
		return iam.Policy{}, iam.Internal(err)
	}
	var name sql.NullString
	if p.Name != "" {
		name = sql.NullString{String: p.Name, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`update policies set name=$2, hostname=$3, rules=$4 where id=$1`,
		p.ID, name, p.Hostname, rules,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return iam.Policy{}, iam.AlreadyExists("policy", p.Name)
		}
		return iam.Policy{}, iam.Internal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return iam.Policy{}, iam.NotFound("policy", p.ID.String())
	}
	return s.Get(ctx, iam.PolicyID(p.ID))
}

func (s policyStore) List(ctx context.Context, offset, limit int) ([]iam.Policy, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `select id from policies order by created_at asc offset $1 limit $2`, offset, limit)
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
	out := make([]iam.Policy, 0, len(ids))
	for _, id := range ids {
		p, err := scanPolicy(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s policyStore) Delete(ctx context.Context, ident iam.PolicyIdentifier) error {
	id, err := resolvePolicyID(ctx, s.db, ident)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `delete from policies where id=$1`, id)
	if err != nil {
		return iam.Internal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return iam.NotFound("policy", id.String())
	}
	return nil
}

func (s policyStore) ListForUser(ctx context.Context, uid uuid.UUID, host string) ([]iam.Policy, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct p.id
		from policies p
		left join user_policy_attachments upa on upa.policy_id = p.id and upa.user_id = $1
		left join group_policy_attachments gpa on gpa.policy_id = p.id
		left join memberships m on m.group_id = gpa.group_id and m.user_id = $1
		where p.hostname = $2 and (upa.user_id is not null or m.user_id is not null)
	`, uid, host)
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
	out := make([]iam.Policy, 0, len(ids))
	for _, id := range ids {
		p, err := scanPolicy(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

package pg

import (
	"context"
	"database/sql"

	"iamcore/internal/iam"
)

type membershipStore struct{ db *sql.DB }

func (s membershipStore) Create(ctx context.Context, uident iam.UserIdentifier, gident iam.GroupIdentifier) error {
	uid, err := resolveUserID(ctx, s.db, uident)
	if err != nil {
		return err
	}
	gid, err := resolveGroupID(ctx, s.db, gident)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`insert into memberships(user_id, group_id) values($1,$2)`, uid, gid,
	); err != nil {
		if isUniqueViolation(err) {
			return iam.AlreadyExists("membership", uid.String()+"/"+gid.String())
		}
		return iam.Internal(err)
	}
	return nil
}

func (s membershipStore) Delete(ctx context.Context, uident iam.UserIdentifier, gident iam.GroupIdentifier) error {
	uid, err := resolveUserID(ctx, s.db, uident)
	if err != nil {
		return err
	}
	gid, err := resolveGroupID(ctx, s.db, gident)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`delete from memberships where user_id=$1 and group_id=$2`, uid, gid,
	)
	if err != nil {
		return iam.Internal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return iam.NotFound("membership", uid.String()+"/"+gid.String())
	}
	return nil
}

type attachmentStore struct{ db *sql.DB }

func (s attachmentStore) CreateUserPolicy(ctx context.Context, uident iam.UserIdentifier, pident iam.PolicyIdentifier) error {
	uid, err := resolveUserID(ctx, s.db, uident)
	if err != nil {
		return err
	}
	pid, err := resolvePolicyID(ctx, s.db, pident)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`insert into user_policy_attachments(user_id, policy_id) values($1,$2)`, uid, pid,
	); err != nil {
		if isUniqueViolation(err) {
			return iam.AlreadyExists("user-policy-attachment", uid.String()+"/"+pid.String())
		}
		return iam.Internal(err)
	}
	return nil
}

func (s attachmentStore) DeleteUserPolicy(ctx context.Context, uident iam.UserIdentifier, pident iam.PolicyIdentifier) error {
	uid, err := resolveUserID(ctx, s.db, uident)
	if err != nil {
		return err
	}
	pid, err := resolvePolicyID(ctx, s.db, pident)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`delete from user_policy_attachments where user_id=$1 and policy_id=$2`, uid, pid,
	)
	if err != nil {
		return iam.Internal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return iam.NotFound("user-policy-attachment", uid.String()+"/"+pid.String())
	}
	return nil
}

func (s attachmentStore) CreateGroupPolicy(ctx context.Context, gident iam.GroupIdentifier, pident iam.PolicyIdentifier) error {
	gid, err := resolveGroupID(ctx, s.db, gident)
	if err != nil {
		return err
	}
	pid, err := resolvePolicyID(ctx, s.db, pident)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`insert into group_policy_attachments(group_id, policy_id) values($1,$2)`, gid, pid,
	); err != nil {
		if isUniqueViolation(err) {
			return iam.AlreadyExists("group-policy-attachment", gid.String()+"/"+pid.String())
		}
		return iam.Internal(err)
	}
	return nil
}

func (s attachmentStore) DeleteGroupPolicy(ctx context.Context, gident iam.GroupIdentifier, pident iam.PolicyIdentifier) error {
	gid, err := resolveGroupID(ctx, s.db, gident)
	if err != nil {
		return err
	}
	pid, err := resolvePolicyID(ctx, s.db, pident)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`delete from group_policy_attachments where group_id=$1 and policy_id=$2`, gid, pid,
	)
	if err != nil {
		return iam.Internal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return iam.NotFound("group-policy-attachment", gid.String()+"/"+pid.String())
	}
	return nil
}

package pg

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"iamcore/internal/iam"
)

func TestUserCreateAndGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := NewWithDB(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("insert into users").WithArgs(sqlmock.AnyArg(), "alice@example.com").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("select exists").WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("select email, created_at from users").WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"email", "created_at"}).AddRow("alice@example.com", time.Now()))
	mock.ExpectQuery("select key, description from user_public_keys").WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"key", "description"}))
	mock.ExpectQuery("select group_id from memberships").WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"group_id"}))
	mock.ExpectQuery("select policy_id from user_policy_attachments").WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"policy_id"}))

	u, err := s.Users().Create(ctx, iam.User{Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("unexpected email: %s", u.Email)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := NewWithDB(db)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectQuery("select exists").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err = s.Users().Get(ctx, iam.UserID(id))
	if !iam.IsNotFound(err, "user") {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionDeleteNotFoundOnCrossUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := NewWithDB(db)
	ctx := context.Background()
	uid := uuid.New()
	sid := uuid.New()

	mock.ExpectExec("delete from sessions").WithArgs(sid, uid).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = s.Sessions().Delete(ctx, uid, sid)
	if !iam.IsNotFound(err, "session") {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"iamcore/internal/iam"
)

func TestUserCreateGetRoundTrip(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	u, err := s.Users().Create(ctx, iam.User{Email: "alice@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Users().Get(ctx, iam.UserID(u.ID))
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != u.ID || got.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %#v", got)
	}
	byEmail, err := s.Users().Get(ctx, iam.UserEmail("alice@example.com"))
	if err != nil {
		t.Fatal(err)
	}
	if byEmail.ID != u.ID {
		t.Fatalf("email resolution mismatch: %v != %v", byEmail.ID, u.ID)
	}
}

func TestUserDeleteThenGetNotFound(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	u, _ := s.Users().Create(ctx, iam.User{Email: "bob@example.com"})
	if err := s.Users().Delete(ctx, iam.UserID(u.ID)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Users().Get(ctx, iam.UserID(u.ID)); !iam.IsNotFound(err, "user") {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestEmailAliasUniqueness(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	if _, err := s.Users().Create(ctx, iam.User{Email: "dup@example.com"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Users().Create(ctx, iam.User{Email: "dup@example.com"}); !iam.IsAlreadyExists(err) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestCrossUserSessionIsolation(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	a, _ := s.Users().Create(ctx, iam.User{Email: "a@example.com"})
	b, _ := s.Users().Create(ctx, iam.User{Email: "b@example.com"})

	sess, err := s.Sessions().Create(ctx, a.ID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Sessions().GetByID(ctx, b.ID, sess.ID); !iam.IsNotFound(err, "session") {
		t.Fatalf("expected NotFound for cross-user lookup, got %v", err)
	}
	if _, err := s.Sessions().GetByID(ctx, a.ID, sess.ID); err != nil {
		t.Fatalf("owner lookup should succeed: %v", err)
	}
}

func TestSessionExpiryIsLazilyObserved(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	u, _ := s.Users().Create(ctx, iam.User{Email: "c@example.com"})
	base := time.Now()
	s.now = func() time.Time { return base }

	sess, err := s.Sessions().Create(ctx, u.ID, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := s.Sessions().GetByID(ctx, u.ID, sess.ID); !iam.IsNotFound(err, "session") {
		t.Fatalf("expected expired session to read as NotFound, got %v", err)
	}
}

func TestSessionRefreshExtendsLifetime(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	u, _ := s.Users().Create(ctx, iam.User{Email: "d@example.com"})
	base := time.Now()
	s.now = func() time.Time { return base }

	sess, err := s.Sessions().Create(ctx, u.ID, 60*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return base.Add(30 * time.Second) }
	refreshed, err := s.Sessions().Refresh(ctx, u.ID, sess.ID, 60*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !refreshed.ExpiresAt.Equal(base.Add(90 * time.Second)) {
		t.Fatalf("unexpected new expiry: %v", refreshed.ExpiresAt)
	}
	s.now = func() time.Time { return base.Add(70 * time.Second) }
	if _, err := s.Sessions().GetByToken(ctx, u.ID, sess.Token); err != nil {
		t.Fatalf("session should still be active: %v", err)
	}
}

func TestConcurrentCreateMembershipYieldsExactlyOneSuccess(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	u, _ := s.Users().Create(ctx, iam.User{Email: "e@example.com"})
	g, _ := s.Groups().Create(ctx, iam.Group{Name: "engineers"})

	const n = 50
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Memberships().Create(ctx, iam.UserID(u.ID), iam.GroupID(g.ID))
		}(i)
	}
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case iam.IsAlreadyExists(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != n-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d successes and %d conflicts", n-1, successes, conflicts)
	}
}

func TestListForUserAggregatesDirectAndGroupPolicies(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	u, _ := s.Users().Create(ctx, iam.User{Email: "f@example.com"})
	g, _ := s.Groups().Create(ctx, iam.Group{Name: "ops"})
	direct, _ := s.Policies().Create(ctx, iam.Policy{Name: "direct", Hostname: "iam.example.com"})
	viaGroup, _ := s.Policies().Create(ctx, iam.Policy{Name: "via-group", Hostname: "iam.example.com"})
	wrongHost, _ := s.Policies().Create(ctx, iam.Policy{Name: "other-host", Hostname: "other.example.com"})

	if err := s.Memberships().Create(ctx, iam.UserID(u.ID), iam.GroupID(g.ID)); err != nil {
		t.Fatal(err)
	}
	if err := s.Attachments().CreateUserPolicy(ctx, iam.UserID(u.ID), iam.PolicyID(direct.ID)); err != nil {
		t.Fatal(err)
	}
	if err := s.Attachments().CreateGroupPolicy(ctx, iam.GroupID(g.ID), iam.PolicyID(viaGroup.ID)); err != nil {
		t.Fatal(err)
	}
	if err := s.Attachments().CreateGroupPolicy(ctx, iam.GroupID(g.ID), iam.PolicyID(wrongHost.ID)); err != nil {
		t.Fatal(err)
	}

	policies, err := s.Policies().ListForUser(ctx, u.ID, "iam.example.com")
	if err != nil {
		t.Fatal(err)
	}
	seen := map[uuid.UUID]bool{}
	for _, p := range policies {
		seen[p.ID] = true
	}
	if !seen[direct.ID] || !seen[viaGroup.ID] || seen[wrongHost.ID] {
		t.Fatalf("unexpected aggregation result: %#v", policies)
	}
}

func TestMembershipRequiresExistingEndpoints(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	g, _ := s.Groups().Create(ctx, iam.Group{Name: "ghost-group"})
	err := s.Memberships().Create(ctx, iam.UserID(uuid.New()), iam.GroupID(g.ID))
	if !iam.IsNotFound(err, "user") {
		t.Fatalf("expected NotFound for nonexistent user, got %v", err)
	}
}

func TestDeleteUserCascadesSessionsAndMemberships(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	u, _ := s.Users().Create(ctx, iam.User{Email: "g@example.com"})
	g, _ := s.Groups().Create(ctx, iam.Group{Name: "cascaded"})
	if err := s.Memberships().Create(ctx, iam.UserID(u.ID), iam.GroupID(g.ID)); err != nil {
		t.Fatal(err)
	}
	sess, err := s.Sessions().Create(ctx, u.ID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Users().Delete(ctx, iam.UserID(u.ID)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Sessions().GetByID(ctx, u.ID, sess.ID); !iam.IsNotFound(err, "session") {
		t.Fatalf("expected orphaned session to read as NotFound, got %v", err)
	}
	group, err := s.Groups().Get(ctx, iam.GroupID(g.ID))
	if err != nil {
		t.Fatal(err)
	}
	if len(group.Users) != 0 {
		t.Fatalf("expected membership to be removed with the user, got %v", group.Users)
	}
}

package httpapi

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"iamcore/internal/authproto"
	"iamcore/internal/events"
	"iamcore/internal/iam"
	"iamcore/internal/store/memstore"
)

const testHost = "iam.test"

type testCaller struct {
	user iam.User
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newTestServer(t *testing.T) (*httptest.Server, *memstore.Store, testCaller) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	st := memstore.New()
	t.Cleanup(st.Close)

	admin, err := st.Users().Create(t.Context(), iam.User{
		Email:      "admin@example.com",
		PublicKeys: []iam.UserPublicKey{{Key: pub, Description: "test"}},
	})
	if err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}

	allowAll, err := st.Policies().Create(t.Context(), iam.Policy{
		Name:     "allow-all",
		Hostname: testHost,
		Rules: []iam.Rule{
			{Effect: iam.Allow, Action: iam.Read, Resource: "/*"},
			{Effect: iam.Allow, Action: iam.Write, Resource: "/*"},
		},
	})
	if err != nil {
		t.Fatalf("bootstrap policy: %v", err)
	}
	if err := st.Attachments().CreateUserPolicy(t.Context(), iam.UserID(admin.ID), iam.PolicyID(allowAll.ID)); err != nil {
		t.Fatalf("attach bootstrap policy: %v", err)
	}

	api := New(st, authproto.Config{HeaderPrefix: "IAM", Host: testHost}, iam.DefaultSessionTTL, events.NewBroadcaster(), "test")
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return srv, st, testCaller{user: admin, pub: pub, priv: priv}
}

func (c testCaller) sign(t *testing.T, r *http.Request, sessionToken string) {
	t.Helper()
	authproto.SignRequest(r, authproto.Config{HeaderPrefix: "IAM", Host: testHost}, c.user.ID.String(), c.pub, c.priv, "req-1", sessionToken)
}

func TestCreateAndGetGroupRoundTrip(t *testing.T) {
	srv, _, caller := newTestServer(t)

	body := []byte(`{"name":"engineers"}`)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/groups", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	caller.sign(t, req, "")

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("post /groups: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var group iam.Group
	if err := json.NewDecoder(resp.Body).Decode(&group); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if group.Name != "engineers" {
		t.Fatalf("group name = %q, want engineers", group.Name)
	}

	getReq, _ := http.NewRequest(http.MethodGet, srv.URL+"/groups/"+group.ID.String(), nil)
	caller.sign(t, getReq, "")
	getResp, err := srv.Client().Do(getReq)
	if err != nil {
		t.Fatalf("get /groups/{id}: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", getResp.StatusCode)
	}
}

func TestUnsignedRequestIsRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/groups")
	if err != nil {
		t.Fatalf("get /groups: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestUnauthorizedCallerIsForbidden(t *testing.T) {
	srv, st, _ := newTestServer(t)

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	noPolicyUser, err := st.Users().Create(t.Context(), iam.User{
		Email:      "nobody@example.com",
		PublicKeys: []iam.UserPublicKey{{Key: pub, Description: "test"}},
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/groups", nil)
	authproto.SignRequest(req, authproto.Config{HeaderPrefix: "IAM", Host: testHost}, noPolicyUser.ID.String(), pub, priv, "req-2", "")

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("get /groups: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestHealthzIsPublic(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSessionCreateReturnsToken(t *testing.T) {
	srv, _, caller := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/users/"+caller.user.ID.String()+"/sessions", nil)
	caller.sign(t, req, "")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("post sessions: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var created sessionCreated
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Token == "" {
		t.Fatal("expected a non-empty token in the create response")
	}
}

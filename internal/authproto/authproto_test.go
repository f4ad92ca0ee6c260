package authproto

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"net/http"
	"testing"

	"iamcore/internal/iam"
	"iamcore/internal/store/memstore"
)

func TestCanonicalStringIsPureAndDeterministic(t *testing.T) {
	a := buildCanonicalString("GET", "iam.example.com", "/users/1", "a=b", "req-1", "tok")
	b := buildCanonicalString("GET", "iam.example.com", "/users/1", "a=b", "req-1", "tok")
	if a != b {
		t.Fatalf("canonical string is not deterministic: %q != %q", a, b)
	}
	want := "GET\niam.example.com\n/users/1\na=b\nreq-1\ntok"
	if a != want {
		t.Fatalf("unexpected canonical string: %q", a)
	}
}

func TestHostWithoutPort(t *testing.T) {
	cases := map[string]string{
		"iam.example.com":      "iam.example.com",
		"iam.example.com:8443": "iam.example.com",
		"localhost:9000":       "localhost",
	}
	for in, want := range cases {
		if got := hostWithoutPort(in); got != want {
			t.Fatalf("hostWithoutPort(%q) = %q, want %q", in, got, want)
		}
	}
}

func newSignedRequest(t *testing.T, priv ed25519.PrivateKey, pub ed25519.PublicKey, method, host, rawPath, rawQuery, requestID, sessionToken, userIdent string) *http.Request {
	t.Helper()
	canonical := buildCanonicalString(method, hostWithoutPort(host), rawPath, rawQuery, requestID, sessionToken)
	sig := ed25519.Sign(priv, []byte(canonical))

	target := rawPath
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	req, err := http.NewRequest(method, "http://"+host+target, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.RequestURI = target
	req.Host = host
	req.Header.Set(headerAuthorization, signaturePrefix+base64.StdEncoding.EncodeToString(sig))
	req.Header.Set("X-IAM-User-Id", userIdent)
	req.Header.Set("X-IAM-Public-Key", base64.StdEncoding.EncodeToString(pub))
	req.Header.Set("X-IAM-Request-Id", requestID)
	if sessionToken != "" {
		req.Header.Set(headerSessionToken, sessionToken)
	}
	return req
}

func TestAuthenticateCreateAndSignRoundTrip(t *testing.T) {
	s := memstore.New()
	defer s.Close()
	ctx := context.Background()
	cfg := Config{HeaderPrefix: "IAM", Host: "iam.example.com"}

	pub, priv, _ := ed25519.GenerateKey(nil)
	u, err := s.Users().Create(ctx, iam.User{
		Email:      "alice@example.com",
		PublicKeys: []iam.UserPublicKey{{Key: pub, Description: "laptop"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	req := newSignedRequest(t, priv, pub, "GET", "iam.example.com", "/users/"+u.ID.String(), "", "22222222-2222-2222-2222-222222222222", "", u.ID.String())

	authed, err := Authenticate(ctx, req, cfg, s.Users())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if authed.User.ID != u.ID {
		t.Fatalf("unexpected resolved user: %v", authed.User.ID)
	}
}

func TestAuthenticateHostMismatch(t *testing.T) {
	s := memstore.New()
	defer s.Close()
	ctx := context.Background()
	cfg := Config{HeaderPrefix: "IAM", Host: "iam.example.com"}

	pub, priv, _ := ed25519.GenerateKey(nil)
	u, _ := s.Users().Create(ctx, iam.User{
		Email:      "bob@example.com",
		PublicKeys: []iam.UserPublicKey{{Key: pub}},
	})

	req := newSignedRequest(t, priv, pub, "GET", "evil.example.com", "/users/"+u.ID.String(), "", "req-1", "", u.ID.String())

	_, err := Authenticate(ctx, req, cfg, s.Users())
	if !iam.IsAuthenticationFailed(err) {
		t.Fatalf("expected AuthenticationFailed, got %v", err)
	}
	authErr, ok := err.(*iam.Error)
	if !ok || authErr.Reason != iam.InvalidHost {
		t.Fatalf("expected InvalidHost, got %v", err)
	}
}

func TestAuthenticateSignatureMismatch(t *testing.T) {
	s := memstore.New()
	defer s.Close()
	ctx := context.Background()
	cfg := Config{HeaderPrefix: "IAM", Host: "iam.example.com"}

	pub, priv, _ := ed25519.GenerateKey(nil)
	u, _ := s.Users().Create(ctx, iam.User{
		Email:      "carol@example.com",
		PublicKeys: []iam.UserPublicKey{{Key: pub}},
	})

	req := newSignedRequest(t, priv, pub, "GET", "iam.example.com", "/users/"+u.ID.String(), "", "req-1", "", u.ID.String())
	sigHeader := req.Header.Get(headerAuthorization)
	sig, _ := base64.StdEncoding.DecodeString(sigHeader[len(signaturePrefix):])
	sig[0] ^= 0xFF
	req.Header.Set(headerAuthorization, signaturePrefix+base64.StdEncoding.EncodeToString(sig))

	_, err := Authenticate(ctx, req, cfg, s.Users())
	authErr, ok := err.(*iam.Error)
	if !ok || authErr.Reason != iam.InvalidSignature {
		t.Fatalf("expected InvalidSignature, got %v", err)
	}
}

func TestAuthorizeDefaultDeny(t *testing.T) {
	s := memstore.New()
	defer s.Close()
	ctx := context.Background()

	u, _ := s.Users().Create(ctx, iam.User{Email: "dave@example.com"})
	authed := Authenticated{User: u}

	_, err := Authorize(ctx, authed, "iam.example.com", "GET", "/users", s.Sessions(), s.Policies())
	if !iam.IsNotAuthorized(err) {
		t.Fatalf("expected NotAuthorized, got %v", err)
	}
}

func TestAuthorizeDenyOverAllow(t *testing.T) {
	s := memstore.New()
	defer s.Close()
	ctx := context.Background()

	u, _ := s.Users().Create(ctx, iam.User{Email: "erin@example.com"})
	allow, _ := s.Policies().Create(ctx, iam.Policy{
		Hostname: "iam.example.com",
		Rules:    []iam.Rule{{Effect: iam.Allow, Action: iam.Read, Resource: "/*"}},
	})
	deny, _ := s.Policies().Create(ctx, iam.Policy{
		Hostname: "iam.example.com",
		Rules:    []iam.Rule{{Effect: iam.Deny, Action: iam.Read, Resource: "/users/secret"}},
	})
	if err := s.Attachments().CreateUserPolicy(ctx, iam.UserID(u.ID), iam.PolicyID(allow.ID)); err != nil {
		t.Fatal(err)
	}
	if err := s.Attachments().CreateUserPolicy(ctx, iam.UserID(u.ID), iam.PolicyID(deny.ID)); err != nil {
		t.Fatal(err)
	}

	authed := Authenticated{User: u}

	if _, err := Authorize(ctx, authed, "iam.example.com", "GET", "/users/secret", s.Sessions(), s.Policies()); !iam.IsNotAuthorized(err) {
		t.Fatalf("expected NotAuthorized for /users/secret, got %v", err)
	}
	if _, err := Authorize(ctx, authed, "iam.example.com", "GET", "/users/other", s.Sessions(), s.Policies()); err != nil {
		t.Fatalf("expected allow for /users/other, got %v", err)
	}
}

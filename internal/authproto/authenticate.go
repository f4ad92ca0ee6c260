package authproto

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"net/http"
	"strings"

	"iamcore/internal/iam"
	"iamcore/internal/store"
)

const (
	headerAuthorization = "Authorization"
	headerSessionToken  = "Session-Token"
	signaturePrefix     = "Signature "
)

// Config carries the two pieces of server configuration the authentication
// handler needs: the header prefix (default "IAM") and the host this
// server answers as.
type Config struct {
	HeaderPrefix string
	Host         string
}

func (c Config) headerName(suffix string) string {
	prefix := c.HeaderPrefix
	if prefix == "" {
		prefix = "IAM"
	}
	return "X-" + prefix + "-" + suffix
}

// Authenticated is the result of a successful authentication pass: the
// resolved user and the session token presented, if any.
type Authenticated struct {
	User         iam.User
	SessionToken string
	RequestID    string
}

// Authenticate implements spec §4.4. It reads the raw request line from
// r.RequestURI so that the canonical string is built from unmodified
// bytes regardless of what routing middleware has done to r.URL.
func Authenticate(ctx context.Context, r *http.Request, cfg Config, users store.UserStore) (Authenticated, error) {
	authHeader := r.Header.Get(headerAuthorization)
	userIdentHeader := r.Header.Get(cfg.headerName("User-Id"))
	pubKeyHeader := r.Header.Get(cfg.headerName("Public-Key"))
	requestID := r.Header.Get(cfg.headerName("Request-Id"))
	sessionToken := r.Header.Get(headerSessionToken)

	if authHeader == "" || userIdentHeader == "" || pubKeyHeader == "" || requestID == "" {
		return Authenticated{}, iam.AuthenticationFailed(iam.InvalidHeaders)
	}
	if !strings.HasPrefix(authHeader, signaturePrefix) {
		return Authenticated{}, iam.AuthenticationFailed(iam.InvalidHeaders)
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(authHeader, signaturePrefix))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return Authenticated{}, iam.AuthenticationFailed(iam.InvalidHeaders)
	}
	pubKey, err := base64.StdEncoding.DecodeString(pubKeyHeader)
	if err != nil || len(pubKey) != ed25519.PublicKeySize {
		return Authenticated{}, iam.AuthenticationFailed(iam.InvalidHeaders)
	}

	host := hostWithoutPort(r.Host)
	if host != cfg.Host {
		return Authenticated{}, iam.AuthenticationFailed(iam.InvalidHost)
	}

	user, err := users.Get(ctx, iam.ParseUserIdentifier(userIdentHeader))
	if err != nil {
		if iam.IsNotFound(err, "user") {
			return Authenticated{}, iam.AuthenticationFailed(iam.UserNotFound)
		}
		return Authenticated{}, iam.Internal(err)
	}

	if !userOwnsKey(user, pubKey) {
		return Authenticated{}, iam.AuthenticationFailed(iam.InvalidSignature)
	}

	rawPath, rawQuery, _ := strings.Cut(r.RequestURI, "?")
	canonical := buildCanonicalString(r.Method, host, rawPath, rawQuery, requestID, sessionToken)
	if !ed25519.Verify(pubKey, []byte(canonical), sig) {
		return Authenticated{}, iam.AuthenticationFailed(iam.InvalidSignature)
	}

	return Authenticated{User: user, SessionToken: sessionToken, RequestID: requestID}, nil
}

func userOwnsKey(u iam.User, key []byte) bool {
	for _, k := range u.PublicKeys {
		if len(k.Key) == len(key) && string(k.Key) == string(key) {
			return true
		}
	}
	return false
}

package authproto

import (
	"crypto/ed25519"
	"encoding/base64"
	"net/http"
)

// SignRequest sets the headers spec §4.4 requires the server to verify: it
// signs (method, host, path, query, request ID, session token) with priv
// and attaches the caller's identity and public key alongside the
// signature. It is the client-side mirror of Authenticate and shares its
// canonical string construction so the two can never drift apart.
func SignRequest(r *http.Request, cfg Config, userIdent string, pub ed25519.PublicKey, priv ed25519.PrivateKey, requestID, sessionToken string) {
	host := hostWithoutPort(cfg.Host)
	canonical := buildCanonicalString(r.Method, host, r.URL.EscapedPath(), r.URL.RawQuery, requestID, sessionToken)
	sig := ed25519.Sign(priv, []byte(canonical))

	r.Host = cfg.Host
	r.Header.Set(headerAuthorization, signaturePrefix+base64.StdEncoding.EncodeToString(sig))
	r.Header.Set(cfg.headerName("User-Id"), userIdent)
	r.Header.Set(cfg.headerName("Public-Key"), base64.StdEncoding.EncodeToString(pub))
	r.Header.Set(cfg.headerName("Request-Id"), requestID)
	if sessionToken != "" {
		r.Header.Set(headerSessionToken, sessionToken)
	}
}

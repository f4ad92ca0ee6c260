// Package authproto implements the request authentication and
// authorization pipeline: it parses the signed-request headers,
// reconstructs the canonical string-to-sign, verifies the Ed25519
// signature, resolves the caller's session, and evaluates policy.
package authproto

import "strings"

// buildCanonicalString reproduces byte-for-byte the string signed by the
// client. Every field is joined by a literal '\n'; raw-path and
// raw-query-string are used exactly as received, never percent-decoded or
// re-encoded.
func buildCanonicalString(method, hostWithoutPort, rawPath, rawQuery, requestID, sessionToken string) string {
	return strings.Join([]string{
		method,
		hostWithoutPort,
		rawPath,
		rawQuery,
		requestID,
		sessionToken,
	}, "\n")
}

// hostWithoutPort drops everything at and after the first ':', matching
// the GLOSSARY definition of Host.
func hostWithoutPort(host string) string {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		return host[:i]
	}
	return host
}

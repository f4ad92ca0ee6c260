// Package config loads server configuration from environment variables
// sharing one prefix, mirroring the plain os.Getenv style cmd/api uses
// upstream. No third-party config library appears anywhere in the
// retrieved corpus, so this stays on the standard library by design.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the server's environment-derived configuration (spec §6).
type Config struct {
	Prefix       string
	HeaderPrefix string
	Host         string
	Port         int
	TLSCert      string
	TLSKey       string
	SessionTTL   time.Duration
	PGDSN        string
}

// Load reads {prefix}_HOST, {prefix}_PORT, {prefix}_TLS_CERT,
// {prefix}_TLS_KEY, {prefix}_SESSION_TTL and {prefix}_PG_DSN. prefix
// defaults to "IAM" and doubles as the signed-header prefix unless
// {prefix}_HEADER_PREFIX overrides it.
func Load(prefix string) (Config, error) {
	if prefix == "" {
		prefix = "IAM"
	}
	cfg := Config{
		Prefix:       prefix,
		HeaderPrefix: getenv(prefix, "HEADER_PREFIX", prefix),
		Host:         getenv(prefix, "HOST", "localhost"),
		TLSCert:      getenv(prefix, "TLS_CERT", ""),
		TLSKey:       getenv(prefix, "TLS_KEY", ""),
		PGDSN:        getenv(prefix, "PG_DSN", ""),
	}

	port, err := strconv.Atoi(getenv(prefix, "PORT", "8443"))
	if err != nil {
		return Config{}, fmt.Errorf("%s_PORT: %w", prefix, err)
	}
	cfg.Port = port

	ttl := getenv(prefix, "SESSION_TTL", "1h")
	d, err := time.ParseDuration(ttl)
	if err != nil {
		return Config{}, fmt.Errorf("%s_SESSION_TTL: %w", prefix, err)
	}
	cfg.SessionTTL = d

	return cfg, nil
}

func getenv(prefix, suffix, fallback string) string {
	if v := os.Getenv(prefix + "_" + suffix); v != "" {
		return v
	}
	return fallback
}

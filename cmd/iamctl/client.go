package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"iamcore/internal/authproto"
	"iamcore/internal/ids"
	"iamcore/internal/keyfile"
)

// client is the CLI's HTTP client: every request it sends is signed the
// same way authproto.Authenticate expects to verify it.
type client struct {
	baseURL string
	cfg     authproto.Config
	userID  string
	pub     ed25519.PublicKey
	priv    ed25519.PrivateKey
	session string
	http    *http.Client
}

func newClientFromEnv() (*client, error) {
	host := getenvDefault("IAM_HOST", "localhost")
	port := getenvDefault("IAM_PORT", "8443")
	prefix := getenvDefault("IAM_HEADER_PREFIX", "IAM")

	userID := os.Getenv("IAM_USER_ID")
	if userID == "" {
		return nil, fmt.Errorf("IAM_USER_ID must be set to the caller's user id or email")
	}

	keyPath := getenvDefault("IAM_KEYFILE", os.ExpandEnv("$HOME/.iamcore/key.enc"))
	priv, err := keyfile.Load(keyPath, os.Getenv("IAM_PASSPHRASE"))
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type")
	}

	scheme := "https"
	httpClient := &http.Client{}
	if os.Getenv("IAM_INSECURE_HTTP") == "1" {
		scheme = "http"
	}
	if os.Getenv("IAM_INSECURE_TLS") == "1" {
		httpClient.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}

	return &client{
		baseURL: fmt.Sprintf("%s://%s:%s", scheme, host, port),
		cfg:     authproto.Config{HeaderPrefix: prefix, Host: host},
		userID:  userID,
		pub:     pub,
		priv:    priv,
		session: os.Getenv("IAM_SESSION_TOKEN"),
		http:    httpClient,
	}, nil
}

func (c *client) do(method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	authproto.SignRequest(req, c.cfg, c.userID, c.pub, c.priv, ids.New(), c.session)
	return c.http.Do(req)
}

// printResponse prints the response body and exits non-zero on a non-2xx
// status.
func printResponse(resp *http.Response) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fatal(err)
	}
	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "%s\n", data)
		os.Exit(1)
	}
	if len(data) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, data, "", "  "); err == nil {
			fmt.Println(pretty.String())
			return
		}
	}
	fmt.Println(string(data))
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "iamctl:", err)
	os.Exit(1)
}

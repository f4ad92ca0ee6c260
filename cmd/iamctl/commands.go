package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"iamcore/internal/keyfile"
)

func cmdKeygen(args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	out := fs.String("out", os.ExpandEnv("$HOME/.iamcore/key.enc"), "path to write the encrypted private key")
	passphrase := fs.String("passphrase", "", "passphrase to encrypt the key under (required)")
	fs.Parse(args)

	if *passphrase == "" {
		fmt.Fprintln(os.Stderr, "keygen: -passphrase is required")
		os.Exit(1)
	}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(*out), 0o700); err != nil {
		fatal(err)
	}
	if err := keyfile.Save(*out, priv, *passphrase); err != nil {
		fatal(err)
	}

	fmt.Printf("public_key: %s\n", base64.StdEncoding.EncodeToString(pub))
	fmt.Printf("private key written to %s\n", *out)
}

func cmdUser(args []string) {
	requireSubcommand(args, "user")
	c, err := newClientFromEnv()
	if err != nil {
		fatal(err)
	}
	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("user create", flag.ExitOnError)
		email := fs.String("email", "", "email address")
		pubKey := fs.String("public-key", "", "base64-encoded Ed25519 public key")
		desc := fs.String("key-description", "primary", "description for the registered key")
		fs.Parse(args[1:])
		body := map[string]any{
			"email": *email,
			"public_keys": []map[string]any{
				{"key": *pubKey, "description": *desc},
			},
		}
		resp, err := c.do(http.MethodPost, "/users", body)
		mustDo(resp, err)
	case "get":
		fs := flag.NewFlagSet("user get", flag.ExitOnError)
		fs.Parse(args[1:])
		ident := requireArg(fs, "user get")
		resp, err := c.do(http.MethodGet, "/users/"+ident, nil)
		mustDo(resp, err)
	case "list":
		resp, err := c.do(http.MethodGet, "/users", nil)
		mustDo(resp, err)
	case "delete":
		fs := flag.NewFlagSet("user delete", flag.ExitOnError)
		fs.Parse(args[1:])
		ident := requireArg(fs, "user delete")
		resp, err := c.do(http.MethodDelete, "/users/"+ident, nil)
		mustDo(resp, err)
	default:
		unknownSubcommand("user", args[0])
	}
}

func cmdGroup(args []string) {
	requireSubcommand(args, "group")
	c, err := newClientFromEnv()
	if err != nil {
		fatal(err)
	}
	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("group create", flag.ExitOnError)
		name := fs.String("name", "", "group name")
		fs.Parse(args[1:])
		resp, err := c.do(http.MethodPost, "/groups", map[string]any{"name": *name})
		mustDo(resp, err)
	case "get":
		fs := flag.NewFlagSet("group get", flag.ExitOnError)
		fs.Parse(args[1:])
		ident := requireArg(fs, "group get")
		resp, err := c.do(http.MethodGet, "/groups/"+ident, nil)
		mustDo(resp, err)
	case "list":
		resp, err := c.do(http.MethodGet, "/groups", nil)
		mustDo(resp, err)
	case "delete":
		fs := flag.NewFlagSet("group delete", flag.ExitOnError)
		fs.Parse(args[1:])
		ident := requireArg(fs, "group delete")
		resp, err := c.do(http.MethodDelete, "/groups/"+ident, nil)
		mustDo(resp, err)
	case "attach-policy":
		fs := flag.NewFlagSet("group attach-policy", flag.ExitOnError)
		group := fs.String("group", "", "group id or name")
		policy := fs.String("policy", "", "policy id or name")
		fs.Parse(args[1:])
		resp, err := c.do(http.MethodPut, "/groups/"+*group+"/policies/"+*policy, nil)
		mustDo(resp, err)
	case "detach-policy":
		fs := flag.NewFlagSet("group detach-policy", flag.ExitOnError)
		group := fs.String("group", "", "group id or name")
		policy := fs.String("policy", "", "policy id or name")
		fs.Parse(args[1:])
		resp, err := c.do(http.MethodDelete, "/groups/"+*group+"/policies/"+*policy, nil)
		mustDo(resp, err)
	default:
		unknownSubcommand("group", args[0])
	}
}

func cmdPolicy(args []string) {
	requireSubcommand(args, "policy")
	c, err := newClientFromEnv()
	if err != nil {
		fatal(err)
	}
	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("policy create", flag.ExitOnError)
		name := fs.String("name", "", "policy name")
		hostname := fs.String("hostname", "", "hostname this policy is scoped to")
		rulesFile := fs.String("rules", "", "path to a JSON file with the rule array, or - for stdin")
		fs.Parse(args[1:])
		rules := readRules(*rulesFile)
		resp, err := c.do(http.MethodPost, "/policies", map[string]any{
			"name": *name, "hostname": *hostname, "rules": rules,
		})
		mustDo(resp, err)
	case "get":
		fs := flag.NewFlagSet("policy get", flag.ExitOnError)
		fs.Parse(args[1:])
		ident := requireArg(fs, "policy get")
		resp, err := c.do(http.MethodGet, "/policies/"+ident, nil)
		mustDo(resp, err)
	case "list":
		resp, err := c.do(http.MethodGet, "/policies", nil)
		mustDo(resp, err)
	case "update":
		fs := flag.NewFlagSet("policy update", flag.ExitOnError)
		ident := fs.String("policy", "", "policy id or name")
		rulesFile := fs.String("rules", "", "path to a JSON file with the rule array, or - for stdin")
		fs.Parse(args[1:])
		rules := readRules(*rulesFile)
		resp, err := c.do(http.MethodPut, "/policies/"+*ident, map[string]any{"rules": rules})
		mustDo(resp, err)
	case "delete":
		fs := flag.NewFlagSet("policy delete", flag.ExitOnError)
		fs.Parse(args[1:])
		ident := requireArg(fs, "policy delete")
		resp, err := c.do(http.MethodDelete, "/policies/"+ident, nil)
		mustDo(resp, err)
	default:
		unknownSubcommand("policy", args[0])
	}
}

func cmdMembership(args []string) {
	requireSubcommand(args, "membership")
	c, err := newClientFromEnv()
	if err != nil {
		fatal(err)
	}
	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("membership create", flag.ExitOnError)
		user := fs.String("user", "", "user id or email")
		group := fs.String("group", "", "group id or name")
		fs.Parse(args[1:])
		resp, err := c.do(http.MethodPut, "/memberships/"+*user+"/"+*group, nil)
		mustDo(resp, err)
	case "delete":
		fs := flag.NewFlagSet("membership delete", flag.ExitOnError)
		user := fs.String("user", "", "user id or email")
		group := fs.String("group", "", "group id or name")
		fs.Parse(args[1:])
		resp, err := c.do(http.MethodDelete, "/memberships/"+*user+"/"+*group, nil)
		mustDo(resp, err)
	default:
		unknownSubcommand("membership", args[0])
	}
}

// sessionResponse mirrors httpapi's sessionCreated shape closely enough to
// pull out the two fields the shell needs.
type sessionResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

func cmdSession(args []string) {
	requireSubcommand(args, "session")
	c, err := newClientFromEnv()
	if err != nil {
		fatal(err)
	}
	prefix := getenvDefault("IAM_HEADER_PREFIX", "IAM")

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("session create", flag.ExitOnError)
		user := fs.String("user", "", "user id or email")
		ttl := fs.String("ttl", "", "session lifetime, e.g. 1h (defaults to the server's default)")
		fs.Parse(args[1:])

		var body any
		if *ttl != "" {
			body = map[string]any{"ttl": *ttl}
		}
		resp, err := c.do(http.MethodPost, "/users/"+*user+"/sessions", body)
		if err != nil {
			fatal(err)
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 {
			fmt.Fprintf(os.Stderr, "%s\n", data)
			os.Exit(1)
		}
		var sess sessionResponse
		if err := json.Unmarshal(data, &sess); err != nil {
			fatal(err)
		}
		fmt.Printf("export %s_SESSION_ID=%s\n", prefix, sess.ID)
		fmt.Printf("export %s_SESSION_TOKEN=%s\n", prefix, sess.Token)
	case "list":
		fs := flag.NewFlagSet("session list", flag.ExitOnError)
		fs.Parse(args[1:])
		user := requireArg(fs, "session list")
		resp, err := c.do(http.MethodGet, "/users/"+user+"/sessions", nil)
		mustDo(resp, err)
	case "delete":
		fs := flag.NewFlagSet("session delete", flag.ExitOnError)
		user := fs.String("user", "", "user id or email")
		sid := fs.String("session", "", "session id")
		fs.Parse(args[1:])
		resp, err := c.do(http.MethodDelete, "/users/"+*user+"/sessions/"+*sid, nil)
		if err != nil {
			fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			data, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "%s\n", data)
			os.Exit(1)
		}
		fmt.Printf("unset %s_SESSION_ID\n", prefix)
		fmt.Printf("unset %s_SESSION_TOKEN\n", prefix)
	default:
		unknownSubcommand("session", args[0])
	}
}

func readRules(path string) []map[string]string {
	var r io.Reader
	if path == "-" || path == "" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		fatal(err)
	}
	var rules []map[string]string
	if err := json.Unmarshal(data, &rules); err != nil {
		fatal(fmt.Errorf("parse rules: %w", err))
	}
	return rules
}

func mustDo(resp *http.Response, err error) {
	if err != nil {
		fatal(err)
	}
	printResponse(resp)
}

func requireSubcommand(args []string, name string) {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "usage: iamctl %s <subcommand> [flags]\n", name)
		os.Exit(1)
	}
}

func requireArg(fs *flag.FlagSet, usage string) string {
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "usage: iamctl %s <identifier>\n", usage)
		os.Exit(1)
	}
	return fs.Arg(0)
}

func unknownSubcommand(group, sub string) {
	fmt.Fprintf(os.Stderr, "iamctl: unknown %s subcommand %q\n", group, sub)
	os.Exit(1)
}

package keyfile

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.enc")

	if err := Save(path, priv, "correct horse battery staple"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !priv.Equal(got) {
		t.Fatal("loaded key does not match saved key")
	}
}

func TestLoadWrongPassphrase(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.enc")
	if err := Save(path, priv, "correct-passphrase"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := Load(path, "wrong-passphrase"); err != ErrWrongPassphrase {
		t.Fatalf("Load() error = %v, want ErrWrongPassphrase", err)
	}
}

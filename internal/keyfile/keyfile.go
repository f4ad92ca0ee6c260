// Package keyfile stores an Ed25519 private key on disk, encrypted at rest
// under a passphrase. The CLI is the only caller: the server never reads a
// private key, only the public keys registered against a user.
package keyfile

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
)

const (
	salt       = "iamcore-cli-keyfile"
	info       = "ed25519-private-key-v1"
	aesKeySize = 32
	nonceSize  = 12
)

var ErrWrongPassphrase = errors.New("keyfile: wrong passphrase or corrupted file")

// Save encrypts priv under passphrase and writes it to path with 0600
// permissions.
func Save(path string, priv ed25519.PrivateKey, passphrase string) error {
	gcm, err := newAEAD(passphrase)
	if err != nil {
		return err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("keyfile: generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nonce, nonce, priv, nil)
	encoded := base64.StdEncoding.EncodeToString(ciphertext)
	return os.WriteFile(path, []byte(encoded+"\n"), 0o600)
}

// Load reads and decrypts the private key stored at path.
func Load(path string, passphrase string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyfile: read %s: %w", path, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(trimNewline(data))
	if err != nil {
		return nil, fmt.Errorf("keyfile: decode %s: %w", path, err)
	}
	gcm, err := newAEAD(passphrase)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < nonceSize {
		return nil, ErrWrongPassphrase
	}
	nonce, encrypted := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return ed25519.PrivateKey(plaintext), nil
}

func newAEAD(passphrase string) (cipher.AEAD, error) {
	key := make([]byte, aesKeySize)
	reader := hkdf.New(sha256.New, []byte(passphrase), []byte(salt), []byte(info))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("keyfile: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("keyfile: new cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func trimNewline(b []byte) string {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return string(b)
}

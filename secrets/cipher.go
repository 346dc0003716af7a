// Package secrets encrypts integration credentials at rest.
//
// Tokens have the form hex(iv):hex(tag):hex(ciphertext). The key is derived from a
// process wide passphrase with PBKDF2-HMAC-SHA256 on every call so a Cipher holds no
// mutable state.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations = 100000
	keyLength     = 32
	ivLength      = 12
	tagLength     = 16
)

var kdfSalt = []byte("helpdesk-integrations-credential-salt")

var (
	// ErrSecretMissing means no passphrase was configured for the process.
	ErrSecretMissing = errors.New("encryption secret is not configured, set INTEGRATIONS_SECRET")
	// ErrIntegrity means a token was malformed or failed authentication.
	ErrIntegrity = errors.New("credential failed integrity check")
)

type Cipher struct {
	passphrase string
}

func NewCipher(passphrase string) *Cipher {
	return &Cipher{passphrase: passphrase}
}

// Configured reports whether a passphrase is present.
func (c *Cipher) Configured() bool {
	return c != nil && c.passphrase != ""
}

func (c *Cipher) aead() (cipher.AEAD, error) {
	if !c.Configured() {
		return nil, ErrSecretMissing
	}
	key := pbkdf2.Key([]byte(c.passphrase), kdfSalt, kdfIterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	gcm, err := c.aead()
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	body, tag := sealed[:len(sealed)-tagLength], sealed[len(sealed)-tagLength:]

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(body),
	}, ":"), nil
}

func (c *Cipher) Decrypt(token string) (string, error) {
	gcm, err := c.aead()
	if err != nil {
		return "", err
	}

	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return "", ErrIntegrity
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivLength {
		return "", ErrIntegrity
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagLength {
		return "", ErrIntegrity
	}
	body, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrIntegrity
	}

	plaintext, err := gcm.Open(nil, iv, append(body, tag...), nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plaintext), nil
}

// MaskSecret renders a secret for display, keeping at most its last four characters.
func MaskSecret(secret string) string {
	runes := []rune(secret)
	if len(runes) <= 4 {
		return "****"
	}
	return "****" + string(runes[len(runes)-4:])
}

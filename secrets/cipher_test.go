package secrets

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	c := NewCipher("correct horse battery staple")

	for _, plaintext := range []string{"x", "client-secret-123", "ünïcødé ✓", strings.Repeat("long", 500)} {
		token, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		assert.Len(t, strings.Split(token, ":"), 3)
		assert.NotContains(t, token, plaintext)

		decrypted, err := c.Decrypt(token)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestFreshIVPerCall(t *testing.T) {
	c := NewCipher("passphrase")

	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestMissingSecret(t *testing.T) {
	c := NewCipher("")

	_, err := c.Encrypt("value")
	assert.ErrorIs(t, err, ErrSecretMissing)

	_, err = c.Decrypt("00:00:00")
	assert.ErrorIs(t, err, ErrSecretMissing)

	var nilCipher *Cipher
	_, err = nilCipher.Encrypt("value")
	assert.ErrorIs(t, err, ErrSecretMissing)
}

func TestFlippedTagFails(t *testing.T) {
	c := NewCipher("passphrase")

	token, err := c.Encrypt("secret value")
	require.NoError(t, err)

	parts := strings.Split(token, ":")
	tag := []byte(parts[1])
	if tag[0] == '0' {
		tag[0] = '1'
	} else {
		tag[0] = '0'
	}
	parts[1] = string(tag)

	_, err = c.Decrypt(strings.Join(parts, ":"))
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestMalformedTokens(t *testing.T) {
	c := NewCipher("passphrase")

	for _, token := range []string{"", "abc", "aa:bb", "aa:bb:cc:dd", "zz:zz:zz", "00:00:00"} {
		_, err := c.Decrypt(token)
		assert.ErrorIs(t, err, ErrIntegrity, token)
	}
}

func TestWrongPassphraseFails(t *testing.T) {
	token, err := NewCipher("one").Encrypt("secret")
	require.NoError(t, err)

	_, err = NewCipher("two").Decrypt(token)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestConcurrentUse(t *testing.T) {
	c := NewCipher("passphrase")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := c.Encrypt("concurrent")
			if !assert.NoError(t, err) {
				return
			}
			plaintext, err := c.Decrypt(token)
			assert.NoError(t, err)
			assert.Equal(t, "concurrent", plaintext)
		}()
	}
	wg.Wait()
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****7f3a", MaskSecret("jira-demo-token-7f3a"))
	assert.Equal(t, "****", MaskSecret("abcd"))
	assert.Equal(t, "****", MaskSecret(""))
}

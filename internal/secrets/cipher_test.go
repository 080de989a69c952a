package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("atlassian-api-token")
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "atlassian-api-token")

	plaintext, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "atlassian-api-token", plaintext)
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	a, err := c.Encrypt("same secret")
	require.NoError(t, err)
	b, err := c.Encrypt("same secret")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "nonce must differ per encryption")
}

func TestNewCipherRejectsBadKeys(t *testing.T) {
	_, err := NewCipher("not base64 !!!")
	assert.ErrorIs(t, err, ErrInvalidKey)

	short := base64.StdEncoding.EncodeToString([]byte("tooshort"))
	_, err = NewCipher(short)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	ciphertext, err := c.Encrypt("secret")
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0xff

	_, err = c.Decrypt(ciphertext)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	_, err = c.Decrypt([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestCredentialRoundTripAndMasking(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	cred := FromPlaintext("user@example.com", "s3cret")
	sealed, err := cred.Seal(c)
	require.NoError(t, err)

	restored, err := FromCiphertext(c, "user@example.com", sealed)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", restored.Reveal())
	assert.Equal(t, "user@example.com", restored.Email)

	assert.NotContains(t, restored.String(), "s3cret")
}

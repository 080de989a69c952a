package secrets

import "fmt"

// Credential is a decrypted per-company secret: an API key or token plus
// the optional email/username some providers pair with it.
//
// The secret itself is only reachable through Reveal so it never leaks
// through %v formatting or structured logging.
type Credential struct {
	Email  string
	secret string
}

// FromPlaintext constructs a Credential around an already-known secret.
func FromPlaintext(email, secret string) Credential {
	return Credential{Email: email, secret: secret}
}

// FromCiphertext decrypts a stored secret with the given cipher.
func FromCiphertext(cipher *Cipher, email string, ciphertext []byte) (Credential, error) {
	secret, err := cipher.Decrypt(ciphertext)
	if err != nil {
		return Credential{}, fmt.Errorf("decrypting credential: %w", err)
	}
	return Credential{Email: email, secret: secret}, nil
}

// Reveal returns the decrypted secret.
func (c Credential) Reveal() string {
	return c.secret
}

// Seal encrypts the secret for storage.
func (c Credential) Seal(cipher *Cipher) ([]byte, error) {
	return cipher.Encrypt(c.secret)
}

// String masks the secret for any accidental formatting.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{email: %q, secret: ****}", c.Email)
}

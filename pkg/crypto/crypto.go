package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"quill/pkg/errors"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters. Iterations are deliberately high: deriving a key
// is a once-per-session cost and the stretch is the whole point.
const (
	KDFIterations = 390000
	KeyLength     = 32 // 256 bits
	SaltLength    = 32 // 256 bits

	nonceLength = 12

	// tokenPrefix marks ciphertext produced by this package. A content string
	// carrying the prefix is a ciphertext token; anything else is plaintext.
	tokenPrefix = "qj1:"
)

// GenerateSalt returns SaltLength cryptographically random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeCrypto, "SALT_GENERATION_FAILED",
			"failed to generate salt").
			WithUserMessage("Unable to generate secure encryption key")
	}
	return salt, nil
}

// DeriveKey stretches a password into fixed-length key material using
// PBKDF2-HMAC-SHA256 with the persisted per-installation salt.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, KDFIterations, KeyLength, sha256.New)
}

// Cipher is a key-bound encrypt/decrypt capability. The zero value is not
// usable; construct one with NewCipher.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher wraps derived key material in an authenticated AES-GCM cipher.
func NewCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeCrypto, "CIPHER_INIT_FAILED",
			"failed to initialise cipher").
			WithUserMessage("Unable to initialise encryption")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeCrypto, "CIPHER_INIT_FAILED",
			"failed to initialise cipher").
			WithUserMessage("Unable to initialise encryption")
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals data into a self-describing token. A fresh random nonce is
// generated per call and prepended to the sealed payload.
func (c *Cipher) Encrypt(data []byte) (string, error) {
	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, errors.ErrTypeCrypto, "ENCRYPT_FAILED", "failed to generate nonce").
			WithUserMessage("Unable to encrypt data. Please try again")
	}
	sealed := c.aead.Seal(nil, nonce, data, nil)
	return tokenPrefix + base64.URLEncoding.EncodeToString(append(nonce, sealed...)), nil
}

// Decrypt opens a token produced by Encrypt. A wrong key, a truncated token,
// or any tampering yields ErrDecryptionFailed; garbage is never returned.
func (c *Cipher) Decrypt(token string) ([]byte, error) {
	raw, ok := strings.CutPrefix(token, tokenPrefix)
	if !ok {
		return nil, errors.ErrDecryptionFailed.WithContext("reason", "missing token prefix")
	}
	blob, err := base64.URLEncoding.DecodeString(raw)
	if err != nil || len(blob) <= nonceLength {
		return nil, errors.Wrap(err, errors.ErrTypeCrypto, "DECRYPT_FAILED", "malformed ciphertext token")
	}
	plaintext, err := c.aead.Open(nil, blob[:nonceLength], blob[nonceLength:], nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeCrypto, "DECRYPT_FAILED", "decryption failed")
	}
	return plaintext, nil
}

// EncryptString is Encrypt for string content.
func (c *Cipher) EncryptString(s string) (string, error) {
	return c.Encrypt([]byte(s))
}

// DecryptString is Decrypt for string content.
func (c *Cipher) DecryptString(token string) (string, error) {
	b, err := c.Decrypt(token)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IsToken reports whether s looks like a ciphertext token from this package.
func IsToken(s string) bool {
	return strings.HasPrefix(s, tokenPrefix)
}

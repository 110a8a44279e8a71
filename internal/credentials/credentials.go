// Package credentials holds the roster login material stored per subject.
// The secret is kept Fernet-encrypted at rest and only revealed in memory
// for the duration of a sync pass.
package credentials

import (
	"errors"
	"fmt"

	"github.com/fernet/fernet-go"
)

// ErrNoKey is returned when a cipher is constructed without a usable key.
var ErrNoKey = errors.New("encryption key is not configured")

// ErrDecryptFailed is returned when a stored secret cannot be decrypted,
// typically because the encryption key was rotated without re-encrypting.
var ErrDecryptFailed = errors.New("failed to decrypt credential secret")

// Credentials is the revealed login material for the roster source.
type Credentials struct {
	Username string
	Secret   string
	SiteID   string
	TenantID string
}

// Encrypted is the at-rest form: everything except the secret is plaintext,
// the secret is a Fernet token.
type Encrypted struct {
	Username         string
	SiteID           string
	TenantID         string
	SecretCiphertext []byte
}

// Cipher encrypts and decrypts credential secrets with a Fernet key.
type Cipher struct {
	keys []*fernet.Key
}

// NewCipher parses a base64 Fernet key as produced by standard Fernet
// tooling and returns a cipher around it.
func NewCipher(key string) (*Cipher, error) {
	if key == "" {
		return nil, ErrNoKey
	}
	k, err := fernet.DecodeKey(key)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	return &Cipher{keys: []*fernet.Key{k}}, nil
}

// Encrypt seals the revealed credentials into their at-rest form.
func (c *Cipher) Encrypt(creds Credentials) (Encrypted, error) {
	tok, err := fernet.EncryptAndSign([]byte(creds.Secret), c.keys[0])
	if err != nil {
		return Encrypted{}, fmt.Errorf("failed to encrypt credential secret: %w", err)
	}
	return Encrypted{
		Username:         creds.Username,
		SiteID:           creds.SiteID,
		TenantID:         creds.TenantID,
		SecretCiphertext: tok,
	}, nil
}

// Reveal decrypts the secret and returns the usable credentials. Tokens do
// not expire; key rotation is handled by re-encrypting stored rows.
func (e Encrypted) Reveal(c *Cipher) (Credentials, error) {
	if c == nil {
		return Credentials{}, ErrNoKey
	}
	plain := fernet.VerifyAndDecrypt(e.SecretCiphertext, 0, c.keys)
	if plain == nil {
		return Credentials{}, ErrDecryptFailed
	}
	return Credentials{
		Username: e.Username,
		Secret:   string(plain),
		SiteID:   e.SiteID,
		TenantID: e.TenantID,
	}, nil
}

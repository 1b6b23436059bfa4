// Package crypto implements the authenticated encryption used for stored
// marketplace credentials. Each plaintext is sealed with AES-256-GCM under a
// per-message key derived from a long-lived master secret via PBKDF2, so two
// encryptions of the same value never produce the same blob and tampering is
// detected at decrypt time.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	gerrors "errors"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/relistr/relistr/internal/errors"
)

const (
	saltLength = 32
	ivLength   = 12
	tagLength  = 16
	keyLength  = 32
	iterations = 100_000
)

// ErrEmptyMasterKey is returned by NewCipher when no master secret is supplied.
var ErrEmptyMasterKey = gerrors.New("encryption master key must not be empty")

// Cipher seals and opens credential blobs. It is safe for concurrent use.
// Construct one at startup and pass it by reference; the master secret is
// required and its absence is a startup error, not a runtime fallback.
type Cipher struct {
	masterKey []byte
}

// NewCipher creates a Cipher from the master secret.
func NewCipher(masterKey string) (*Cipher, error) {
	if masterKey == "" {
		return nil, ErrEmptyMasterKey
	}
	return &Cipher{masterKey: []byte(masterKey)}, nil
}

// deriveKey stretches the master secret into a per-message AES key.
func (c *Cipher) deriveKey(salt []byte) []byte {
	return pbkdf2.Key(c.masterKey, salt, iterations, keyLength, sha256.New)
}

// Encrypt seals plaintext into a base64 blob laid out as
// salt | iv | tag | ciphertext. A fresh salt and IV are drawn per call.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	iv := make([]byte, ivLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	gcm, err := c.newGCM(salt)
	if err != nil {
		return "", err
	}

	// Seal appends the tag after the ciphertext; the stored layout keeps the
	// tag first, between the IV and the ciphertext.
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagLength]
	tag := sealed[len(sealed)-tagLength:]

	blob := make([]byte, 0, saltLength+ivLength+tagLength+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, iv...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. It fails closed: any malformed
// input, tag mismatch or wrong master key yields *errors.ErrDecryption and
// never partial plaintext.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &errors.ErrDecryption{Reason: "malformed base64 blob"}
	}
	if len(blob) < saltLength+ivLength+tagLength {
		return "", &errors.ErrDecryption{Reason: "blob too short"}
	}

	salt := blob[:saltLength]
	iv := blob[saltLength : saltLength+ivLength]
	tag := blob[saltLength+ivLength : saltLength+ivLength+tagLength]
	ciphertext := blob[saltLength+ivLength+tagLength:]

	gcm, err := c.newGCM(salt)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+tagLength)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", &errors.ErrDecryption{Reason: "authentication tag mismatch"}
	}
	return string(plaintext), nil
}

func (c *Cipher) newGCM(salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.deriveKey(salt))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

package crypto

import (
	"encoding/base64"
	gerrors "errors"
	"strings"
	"testing"

	"github.com/relistr/relistr/internal/errors"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher("test-master-key-do-not-use-in-prod")
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	return c
}

func TestNewCipherRequiresKey(t *testing.T) {
	if _, err := NewCipher(""); !gerrors.Is(err, ErrEmptyMasterKey) {
		t.Fatalf("expected ErrEmptyMasterKey, got %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	plaintexts := []string{
		"",
		"a",
		"closetqueen@example.com",
		"p@ssw0rd with spaces and ünïcode ♻",
		strings.Repeat("long", 1024),
	}

	for _, pt := range plaintexts {
		blob, err := c.Encrypt(pt)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", pt, err)
		}
		got, err := c.Decrypt(blob)
		if err != nil {
			t.Fatalf("Decrypt(Encrypt(%q)): %v", pt, err)
		}
		if got != pt {
			t.Errorf("round trip mismatch: got %q, want %q", got, pt)
		}
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	c := newTestCipher(t)

	first, err := c.Encrypt("same input")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Encrypt("same input")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("two encryptions of the same plaintext produced identical blobs")
	}
}

func TestDecryptDetectsTampering(t *testing.T) {
	c := newTestCipher(t)

	blob, err := c.Encrypt("tamper target")
	if err != nil {
		t.Fatal(err)
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatal(err)
	}

	// Flipping any byte -- salt, IV, tag or ciphertext -- must fail closed.
	for i := range raw {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		mutated[i] ^= 0xFF

		got, err := c.Decrypt(base64.StdEncoding.EncodeToString(mutated))
		if err == nil {
			t.Fatalf("byte %d: tampered blob decrypted to %q", i, got)
		}
		var decErr *errors.ErrDecryption
		if !gerrors.As(err, &decErr) {
			t.Fatalf("byte %d: expected ErrDecryption, got %T", i, err)
		}
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	c := newTestCipher(t)
	blob, err := c.Encrypt("secret")
	if err != nil {
		t.Fatal(err)
	}

	other, err := NewCipher("a-different-master-key")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Decrypt(blob); err == nil {
		t.Fatal("decryption with the wrong master key succeeded")
	}
}

func TestDecryptMalformedInput(t *testing.T) {
	c := newTestCipher(t)

	cases := map[string]string{
		"not base64":   "!!!not-base64!!!",
		"empty":        "",
		"too short":    base64.StdEncoding.EncodeToString([]byte("short")),
		"only salt+iv": base64.StdEncoding.EncodeToString(make([]byte, saltLength+ivLength)),
	}

	for name, input := range cases {
		_, err := c.Decrypt(input)
		var decErr *errors.ErrDecryption
		if !gerrors.As(err, &decErr) {
			t.Errorf("%s: expected ErrDecryption, got %v", name, err)
		}
	}
}

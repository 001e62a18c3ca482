package token

import (
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// MinSecretLen is the minimum accepted signing secret length in bytes.
const MinSecretLen = 32

// Separator joins the envelope and tag segments. It is outside the base64url
// alphabet, so it can never appear inside either segment.
const Separator = "."

const (
	macKeyInfo  = "fluentz/assessment-token/mac/v1"
	sealKeyInfo = "fluentz/assessment-token/seal/v1"
)

// Signer issues and verifies tamper-evident tokens. It is safe for
// concurrent use; keys are derived once and never mutated.
type Signer struct {
	macKey []byte
	aead   cipher.AEAD
}

// NewSigner derives the MAC and seal keys from the process-wide secret.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrWeakSecret
	}

	macKey, err := deriveKey(secret, macKeyInfo, 32)
	if err != nil {
		return nil, err
	}
	sealKey, err := deriveKey(secret, sealKeyInfo, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(sealKey)
	if err != nil {
		return nil, fmt.Errorf("init seal cipher: %w", err)
	}

	return &Signer{macKey: macKey, aead: aead}, nil
}

func deriveKey(secret []byte, info string, size int) ([]byte, error) {
	key := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive %s: %w", info, err)
	}
	return key, nil
}

// Sign computes the HMAC-SHA256 tag over the envelope text.
func (s *Signer) Sign(envelope string) ([]byte, error) {
	tag, err := jwt.SigningMethodHS256.Sign(envelope, s.macKey)
	if err != nil {
		return nil, fmt.Errorf("sign envelope: %w", err)
	}
	return tag, nil
}

// Pack joins an envelope and its tag into a single URL-safe token.
func Pack(envelope string, tag []byte) string {
	return envelope + Separator + segmentEncoding.EncodeToString(tag)
}

// VerifyAndUnpack checks the token's tag and returns the envelope text.
func (s *Signer) VerifyAndUnpack(tok string) (string, error) {
	envelope, encodedTag, ok := strings.Cut(tok, Separator)
	if !ok {
		return "", invalid("missing separator")
	}
	if !validSegment(envelope) || !validSegment(encodedTag) {
		return "", invalid("bad segment encoding")
	}
	if _, err := segmentEncoding.DecodeString(envelope); err != nil {
		return "", invalid("bad envelope segment")
	}
	tag, err := segmentEncoding.DecodeString(encodedTag)
	if err != nil {
		return "", invalid("bad tag segment")
	}

	// SigningMethodHMAC.Verify compares with hmac.Equal (constant time).
	if err := jwt.SigningMethodHS256.Verify(envelope, tag, s.macKey); err != nil {
		return "", invalid("signature mismatch")
	}
	return envelope, nil
}

// Issue encodes, signs and packs fields.
func (s *Signer) Issue(f Fields) (string, error) {
	envelope, err := Encode(f)
	if err != nil {
		return "", err
	}
	tag, err := s.Sign(envelope)
	if err != nil {
		return "", err
	}
	return Pack(envelope, tag), nil
}

// Open verifies a token and decodes its fields. Every failure satisfies
// errors.Is(err, ErrInvalidToken).
func (s *Signer) Open(tok string) (Fields, error) {
	envelope, err := s.VerifyAndUnpack(tok)
	if err != nil {
		return nil, err
	}
	f, err := Decode(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return f, nil
}

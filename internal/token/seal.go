package token

import (
	"crypto/rand"
	"fmt"
)

// Seal encrypts plaintext so it can ride inside a token without being readable
// by the client. aad binds the ciphertext to its surrounding context.
func (s *Signer) Seal(plaintext, aad []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("seal nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, plaintext, aad)
	return segmentEncoding.EncodeToString(out), nil
}

// Unseal reverses Seal. A wrong aad or modified ciphertext is an invalid token.
func (s *Signer) Unseal(sealed string, aad []byte) ([]byte, error) {
	if !validSegment(sealed) {
		return nil, invalid("bad sealed segment")
	}
	raw, err := segmentEncoding.DecodeString(sealed)
	if err != nil {
		return nil, invalid("bad sealed segment")
	}
	if len(raw) < s.aead.NonceSize()+s.aead.Overhead() {
		return nil, invalid("sealed value too short")
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, invalid("sealed value rejected")
	}
	return plain, nil
}

package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-0123456789"

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func sampleFields() Fields {
	return Fields{
		"v": int64(1), "typ": "st", "sub": int64(42), "top": int64(4),
		"step": int64(3), "lvl": "B2", "ph": "mcq", "iat": int64(1760000000),
	}
}

func TestNewSigner_RejectsShortSecret(t *testing.T) {
	_, err := NewSigner([]byte("short"))
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestIssueOpen_RoundTrip(t *testing.T) {
	s := newTestSigner(t)

	tok, err := s.Issue(sampleFields())
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(tok, Separator))

	got, err := s.Open(tok)
	require.NoError(t, err)
	assert.Equal(t, sampleFields(), got)
}

func TestVerifyAndUnpack_SingleBitFlipsAreRejected(t *testing.T) {
	s := newTestSigner(t)
	tok, err := s.Issue(sampleFields())
	require.NoError(t, err)

	raw := []byte(tok)
	for i := range raw {
		for bit := 0; bit < 8; bit++ {
			mutated := make([]byte, len(raw))
			copy(mutated, raw)
			mutated[i] ^= 1 << bit

			_, err := s.VerifyAndUnpack(string(mutated))
			require.ErrorIs(t, err, ErrInvalidToken, "byte %d bit %d", i, bit)
		}
	}
}

func TestVerifyAndUnpack_StructuralFailures(t *testing.T) {
	s := newTestSigner(t)
	tok, err := s.Issue(sampleFields())
	require.NoError(t, err)
	envelope, tag, _ := strings.Cut(tok, Separator)

	cases := map[string]string{
		"no separator":    envelope + tag,
		"extra separator": tok + ".AAAA",
		"empty envelope":  "." + tag,
		"empty tag":       envelope + ".",
		"swapped":         tag + "." + envelope,
		"empty":           "",
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.VerifyAndUnpack(bad)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestOpen_RejectsTokenFromOtherSecret(t *testing.T) {
	s := newTestSigner(t)
	other, err := NewSigner([]byte(strings.Repeat("x", MinSecretLen)))
	require.NoError(t, err)

	tok, err := other.Issue(sampleFields())
	require.NoError(t, err)

	_, err = s.Open(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestOpen_SignedButMalformedEnvelope(t *testing.T) {
	s := newTestSigner(t)
	envelope := segmentEncoding.EncodeToString([]byte(`{"a":[1]}`))
	tag, err := s.Sign(envelope)
	require.NoError(t, err)

	_, err = s.Open(Pack(envelope, tag))
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestTokenExpired_IsInvalidToken(t *testing.T) {
	assert.ErrorIs(t, ErrTokenExpired, ErrInvalidToken)
}

func TestSealUnseal(t *testing.T) {
	s := newTestSigner(t)
	aad := []byte("42:4:3")

	sealed, err := s.Seal([]byte(`{"correct":"C"}`), aad)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "correct")

	plain, err := s.Unseal(sealed, aad)
	require.NoError(t, err)
	assert.Equal(t, `{"correct":"C"}`, string(plain))

	_, err = s.Unseal(sealed, []byte("42:4:4"))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Unseal("AAAA", aad)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSeal_UsesFreshNonce(t *testing.T) {
	s := newTestSigner(t)
	a, err := s.Seal([]byte("A"), nil)
	require.NoError(t, err)
	b, err := s.Seal([]byte("A"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

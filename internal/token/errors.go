package token

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEnvelope means the text is not a canonical encoding of a flat
	// mapping of strings and integers.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrInvalidToken means the token failed integrity verification or could not
	// be unpacked into a well-formed envelope.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is an invalid token whose exp has passed.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)

	// ErrWeakSecret is returned when the configured signing secret is too short.
	ErrWeakSecret = errors.New("signing secret must be at least 32 bytes")
)

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidToken, reason)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformedEnvelope}, args...)...)
}

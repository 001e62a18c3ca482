// Package token implements the signed, URL-safe envelopes that carry assessment
// state between requests.
package token

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"unicode/utf8"
)

// segmentEncoding is the alphabet for both envelope and tag segments. Strict
// mode rejects non-zero padding bits so every segment has one spelling.
var segmentEncoding = base64.RawURLEncoding.Strict()

// Fields is a flat mapping of names to strings or int64 integers.
type Fields map[string]any

// Encode renders fields as canonical JSON (sorted keys, no whitespace) wrapped
// in unpadded base64url. Equal mappings always produce identical envelopes.
func Encode(f Fields) (string, error) {
	norm := make(map[string]any, len(f))
	for k, v := range f {
		switch val := v.(type) {
		case string:
			if !utf8.ValidString(val) {
				return "", malformed("field %q is not valid UTF-8", k)
			}
			norm[k] = val
		case int64:
			norm[k] = val
		case int:
			norm[k] = int64(val)
		default:
			return "", malformed("field %q has unsupported type %T", k, v)
		}
	}

	raw, err := json.Marshal(norm)
	if err != nil {
		return "", malformed("marshal: %v", err)
	}
	return segmentEncoding.EncodeToString(raw), nil
}

// Decode parses an envelope produced by Encode. Anything that is not the
// canonical encoding of a flat string/integer mapping is rejected.
func Decode(envelope string) (Fields, error) {
	if !validSegment(envelope) {
		return nil, malformed("invalid characters")
	}
	raw, err := segmentEncoding.DecodeString(envelope)
	if err != nil {
		return nil, malformed("base64: %v", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, malformed("json: %v", err)
	}
	if obj == nil {
		return nil, malformed("not an object")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, malformed("trailing data")
	}

	out := make(Fields, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case string:
			out[k] = val
		case json.Number:
			n, err := val.Int64()
			if err != nil {
				return nil, malformed("field %q is not an integer", k)
			}
			out[k] = n
		default:
			return nil, malformed("field %q has unsupported type", k)
		}
	}

	// Duplicate keys, reordered keys or alternative number spellings decode
	// fine but would let one state have several envelopes.
	again, err := Encode(out)
	if err != nil {
		return nil, err
	}
	if again != envelope {
		return nil, malformed("non-canonical encoding")
	}
	return out, nil
}

// String returns a required string field.
func (f Fields) String(name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", malformed("missing field %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", malformed("field %q is not a string", name)
	}
	return s, nil
}

// Int returns a required integer field.
func (f Fields) Int(name string) (int64, error) {
	v, ok := f[name]
	if !ok {
		return 0, malformed("missing field %q", name)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, malformed("field %q is not an integer", name)
	}
}

// Has reports whether name is present.
func (f Fields) Has(name string) bool {
	_, ok := f[name]
	return ok
}

func validSegment(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

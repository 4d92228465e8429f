// Package canonical provides deterministic hashing of JSON-representable
// values. All functions are pure: two logically equal values produce the
// same digest regardless of map key order, struct field order, or nesting.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Hash serializes v to canonical JSON and returns the SHA-256 hex digest.
func Hash(v any) (string, error) {
	b, err := MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// MustHash is Hash for values already known to be JSON-representable
// (domain structs with json tags). Panics otherwise.
func MustHash(v any) string {
	h, err := Hash(v)
	if err != nil {
		panic(fmt.Sprintf("canonical: hash: %v", err))
	}
	return h
}

// MarshalCanonical serializes v to a single canonical JSON form: object keys
// recursively sorted, array order preserved, no insignificant whitespace.
// Numbers keep the exact textual representation produced by encoding/json,
// so the output is stable across platforms.
func MarshalCanonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}

	// Round-trip through a generic tree with json.Number so numeric
	// representations survive untouched.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var node any
	if err := dec.Decode(&node); err != nil {
		return nil, fmt.Errorf("canonical: decode: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, node); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, node any) error {
	switch n := node.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if n {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(n.String())
	case string:
		b, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("canonical: encode string: %w", err)
		}
		buf.Write(b)
	case []any:
		buf.WriteByte('[')
		for i, el := range n {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, el); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("canonical: encode key: %w", err)
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, n[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonical: unsupported type %T", node)
	}
	return nil
}

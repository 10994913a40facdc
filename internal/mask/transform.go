package mask

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// digestPII computes the irreversible PII digest sha256(salt || value),
// hex-encoded, per spec.md §4.4.
func digestPII(salt []byte, value []byte) string {
	h := sha256.New()
	h.Write(salt)
	h.Write(value)
	return hex.EncodeToString(h.Sum(nil))
}

// macPHI computes the deterministic keyed MAC hmac-sha256(key, value),
// hex-encoded, per spec.md §4.4.
func macPHI(key []byte, value []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write(value)
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalize renders a value into a stable byte representation for
// digesting. Binary values are used raw; structured values (maps/sets)
// are sorted by key/lexicographic order first, per spec.md §4.4, so that
// semantically identical values always digest to the same token.
func canonicalize(value any) []byte {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return v
	case string:
		return []byte(v)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf := make([]byte, 0, 64)
		for _, k := range keys {
			buf = append(buf, k...)
			buf = append(buf, '=')
			buf = append(buf, canonicalize(v[k])...)
			buf = append(buf, ';')
		}
		return buf
	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = string(canonicalize(item))
		}
		sort.Strings(items)
		buf := make([]byte, 0, 64)
		for _, item := range items {
			buf = append(buf, item...)
			buf = append(buf, ';')
		}
		return buf
	default:
		return []byte(fmt.Sprintf("%v", v))
	}
}

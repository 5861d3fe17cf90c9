// Package fingerprint produces stable digests over mutation requests.
//
// The digest must be invariant under JSON object key ordering but sensitive
// to every structural difference, including number-vs-string encodings of the
// same value (no normalization happens here).
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Compute digests (method, path, body) into a 64-char hex sha256.
// The path is expected with the query already stripped. The body is the raw
// JSON request body; an empty body hashes as the empty canonical string.
func Compute(method, path string, body []byte) (string, error) {
	canonical, err := CanonicalBody(body)
	if err != nil {
		return "", err
	}
	payload := strings.ToUpper(method) + "|" + path + "|" + canonical
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalBody deterministically serializes a JSON body: object keys sorted
// lexicographically by code point, arrays in order, primitives as literals.
func CanonicalBody(body []byte) (string, error) {
	if len(body) == 0 {
		return "", nil
	}

	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return "", fmt.Errorf("request body is not valid JSON: %w", err)
	}

	var b strings.Builder
	writeCanonical(&b, value)
	return b.String(), nil
}

func writeCanonical(b *strings.Builder, value interface{}) {
	switch v := value.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(v))
	case json.Number:
		b.WriteString(v.String())
	case string:
		// Marshal never fails for a string.
		quoted, _ := json.Marshal(v)
		b.Write(quoted)
	case []interface{}:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			quoted, _ := json.Marshal(k)
			b.Write(quoted)
			b.WriteByte(':')
			writeCanonical(b, v[k])
		}
		b.WriteByte('}')
	}
}

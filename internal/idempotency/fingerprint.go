package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Fingerprint hashes the request shape so the same key with a different
// request can be detected. The hash covers method, path, and the body with
// object keys sorted; it deliberately carries no time component so a retry
// always produces the same fingerprint.
func Fingerprint(method, path string, body []byte) string {
	normalized := struct {
		Method string      `json:"method"`
		Path   string      `json:"path"`
		Body   interface{} `json:"body"`
	}{
		Method: strings.ToUpper(method),
		Path:   path,
		Body:   normalizeBody(body),
	}

	content, _ := json.Marshal(normalized)
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// normalizeBody decodes the body so that re-encoding is key-order stable.
// Non-JSON bodies are hashed as raw strings.
func normalizeBody(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return string(body)
	}
	return decoded
}

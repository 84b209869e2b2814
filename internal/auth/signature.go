package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalJSON re-encodes a JSON payload with recursively sorted object
// keys so both sides of a webhook compute the HMAC over identical bytes.
// encoding/json sorts map keys on marshal, which gives us the canonical
// form for free.
func CanonicalJSON(raw []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}
	return json.Marshal(v)
}

// SignPayload computes the hex HMAC-SHA256 over the canonical form of raw.
func SignPayload(secret string, raw []byte) (string, error) {
	canonical, err := CanonicalJSON(raw)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifySignature checks a hex HMAC-SHA256 signature against the canonical
// payload. Comparison is constant time.
func VerifySignature(secret string, raw []byte, signatureHex string) error {
	if signatureHex == "" {
		return fmt.Errorf("signature is missing")
	}
	expected, err := SignPayload(secret, raw)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(signatureHex)) {
		return fmt.Errorf("invalid signature: payload integrity check failed")
	}
	return nil
}

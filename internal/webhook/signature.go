package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	dErrors "compliance-gateway/pkg/domain-errors"
)

// SignatureValidator authenticates inbound payloads: hex-encoded HMAC-SHA256
// of the raw body, keyed by the shared webhook secret. Pure over its inputs.
type SignatureValidator struct {
	secret        []byte
	allowUnsigned bool
}

// NewSignatureValidator builds a validator. allowUnsigned permits payloads
// with no signature at all (platform-compatibility mode); it never relaxes
// verification of a signature that is present.
func NewSignatureValidator(secret string, allowUnsigned bool) *SignatureValidator {
	return &SignatureValidator{secret: []byte(secret), allowUnsigned: allowUnsigned}
}

// Validate checks provided against the expected digest of payload. The
// comparison is constant-time; a short-circuit byte compare would leak digest
// prefixes through response timing.
func (v *SignatureValidator) Validate(payload []byte, provided string) error {
	if provided == "" {
		if v.allowUnsigned {
			return nil
		}
		return dErrors.New(dErrors.CodeSignatureMissing, "payload signature required")
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return dErrors.New(dErrors.CodeSignatureMismatch, "payload signature mismatch")
	}
	return nil
}

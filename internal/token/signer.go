package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"unicode/utf16"
)

// Signer derives a deterministic, tamper-evident signature over the two
// payload fields covered by it. Verify recomputes and compares; it returns
// false on mismatch and never errors.
type Signer interface {
	Sign(subjectID, issuedAt string) string
	Verify(subjectID, issuedAt, signature string) bool
}

const (
	SchemeLegacy = "legacy"
	SchemeHMAC   = "hmac"

	// DefaultSecret is the shared constant the legacy scheme ships with.
	DefaultSecret = "CanteenPass-Secret-Key"
)

// New returns the signer for the configured scheme, defaulting to legacy.
func New(scheme, secret string) Signer {
	if secret == "" {
		secret = DefaultSecret
	}
	if scheme == SchemeHMAC {
		return &HMACSigner{key: []byte(secret)}
	}
	return &LegacySigner{secret: secret}
}

// LegacySigner implements the original rolling-hash scheme: a 32-bit
// additive/multiplicative hash over the UTF-16 code units of
// "<subjectID>|<issuedAt>|<secret>", formatted as "sig-<integer>".
//
// This provides tamper-evidence only. Anyone holding the shared constant can
// mint valid signatures, which is why the HMAC scheme exists.
type LegacySigner struct {
	secret string
}

func (s *LegacySigner) Sign(subjectID, issuedAt string) string {
	data := subjectID + "|" + issuedAt + "|" + s.secret
	units := utf16.Encode([]rune(data))
	if len(units) == 0 {
		return "sig-0"
	}
	var hash int32
	for _, c := range units {
		hash = (hash << 5) - hash + int32(c)
	}
	return fmt.Sprintf("sig-%d", hash)
}

func (s *LegacySigner) Verify(subjectID, issuedAt, signature string) bool {
	return s.Sign(subjectID, issuedAt) == signature
}

// HMACSigner signs the same two fields with HMAC-SHA256 under a key that is
// only ever distributed through server configuration. Signatures are
// formatted "sig2-<hex>" so the two schemes can never be confused.
type HMACSigner struct {
	key []byte
}

func (s *HMACSigner) Sign(subjectID, issuedAt string) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(subjectID + "|" + issuedAt))
	return "sig2-" + hex.EncodeToString(h.Sum(nil))
}

func (s *HMACSigner) Verify(subjectID, issuedAt, signature string) bool {
	expected := s.Sign(subjectID, issuedAt)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

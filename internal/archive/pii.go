package archive

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"regexp"
)

var (
	emailRe  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	mobileRe = regexp.MustCompile(`(\+?91[-\s]?)?\b[6-9]\d{9}\b`)
)

// HashPhone returns the hex-encoded SHA-256 hash of a mobile number.
func HashPhone(phone string) string {
	h := sha256.Sum256([]byte(phone))
	return fmt.Sprintf("%x", h)
}

// ScrubPII replaces emails with [EMAIL] and Indian mobile numbers with [PHONE].
// Names and addresses are kept so operators can reconcile fallback orders.
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = mobileRe.ReplaceAllString(text, "[PHONE]")
	return text
}

// ScrubPayload applies ScrubPII to a JSON document. Invalid JSON is dropped.
func ScrubPayload(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	scrubbed := json.RawMessage(ScrubPII(string(raw)))
	if !json.Valid(scrubbed) {
		return nil
	}
	return scrubbed
}

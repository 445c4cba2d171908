package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MaskEmail keeps the first two characters of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "***"
	}
	local, domain := email[:at], email[at+1:]
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}

// HashID returns a short stable digest of an identifier so log lines can be
// correlated without carrying the raw employee id.
func HashID(id string) string {
	if id == "" {
		return "***"
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:8]
}

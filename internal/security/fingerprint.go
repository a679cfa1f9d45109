package security

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DeviceFingerprint derives a stable identifier for a client from its
// self-reported device id and user agent. It is informational only and is
// never used to authorize a request.
func DeviceFingerprint(deviceID, userAgent string) string {
	deviceID = strings.TrimSpace(deviceID)
	userAgent = strings.TrimSpace(userAgent)
	if deviceID == "" && userAgent == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(deviceID + "\x00" + userAgent))
	return hex.EncodeToString(sum[:16])
}

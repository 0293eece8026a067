package ws

import (
	"crypto/rand"
	"encoding/hex"
)

// newConnID tags a session for lifecycle telemetry. The id only needs to be
// unique per process lifetime, not cryptographically meaningful.
func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf)
}

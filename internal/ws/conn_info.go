package ws

import "time"

// ConnInfo captures per-connection identity and tracing context, attached
// at handshake time and carried into every audit event for the session.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

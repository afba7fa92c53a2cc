package domain

// WebSocket event names pushed to clients.
const (
	EventOnlineUsers = "getOnlineUsers"
	EventNewMessage  = "newMessage"
)

// Event is the envelope for every server→client push.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Handshake rejection reasons. Sent verbatim to the caller before the
// connection is closed.
const (
	HandshakeNoToken      = "Unauthorized: No token provided"
	HandshakeInvalidToken = "Unauthorized: Invalid token"
	HandshakeUserNotFound = "Unauthorized: User not found"
)

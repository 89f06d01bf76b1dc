// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the match handler.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	DuplicateSessionError = 3004 // The identity already has a live connection.
	ServerShutdownError   = 3005 // The server is stopping; all matches were terminated.
)

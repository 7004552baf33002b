package handler

import "fmt"

// WSConfig holds the WebSocket URL base for responses.
type WSConfig struct {
	BaseURL string
}

// WSURL returns the live channel URL for a session and participant
// (e.g. wss://host/ws/session/sessionID/participantID).
func (c *WSConfig) WSURL(sessionID, participantID string) string {
	if c == nil || c.BaseURL == "" {
		return fmt.Sprintf("/ws/session/%s/%s", sessionID, participantID)
	}
	base := c.BaseURL
	if base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return fmt.Sprintf("%s/ws/session/%s/%s", base, sessionID, participantID)
}

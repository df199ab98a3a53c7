package domain

import "fmt"

// SessionKey identifies at most one live session: one user on one server.
type SessionKey struct {
	UserID     string
	ServerName string
}

// NewSessionKey returns the key for the given user and server.
func NewSessionKey(userID string, serverName string) SessionKey {
	return SessionKey{UserID: userID, ServerName: serverName}
}

// String renders the key in its canonical "user/server" form.
func (k SessionKey) String() string {
	return fmt.Sprintf("%s/%s", k.UserID, k.ServerName)
}

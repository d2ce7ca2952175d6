package model

import "time"

// Session is a server-side login. Token is only populated on creation; the
// store keeps a digest of it.
type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token,omitempty"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

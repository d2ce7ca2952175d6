package model

import "time"

// OutOfOfficeEntry is a user's declared absence window. While it is active,
// bookings for UserID are redirected to ToUserID when one is set.
type OutOfOfficeEntry struct {
	ID        int64     `json:"id"`
	UUID      string    `json:"uuid"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	UserID    int64     `json:"user_id"`
	ToUserID  *int64    `json:"to_user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DelegateRef struct {
	Username string `json:"username"`
}

// OutOfOfficeListItem is the list projection of an entry joined with its delegate.
type OutOfOfficeListItem struct {
	ID       int64        `json:"id"`
	UUID     string       `json:"uuid"`
	Start    time.Time    `json:"start"`
	End      time.Time    `json:"end"`
	ToUserID *int64       `json:"toUserId,omitempty"`
	ToUser   *DelegateRef `json:"toUser,omitempty"`
}

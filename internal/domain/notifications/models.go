package notifications

import "time"

type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	RefID     string     `json:"refId,omitempty"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Event is one domain occurrence fanned out to every recipient.
type Event struct {
	Type       string
	Recipients []string
	Title      string
	Body       string
	RefID      string
}

package model

import "time"

// Email is the candidate shape returned by the mail gateway.
// Body is never part of a candidate; it is fetched separately and only
// when the privacy policy allows it.
type Email struct {
	ID       string    `json:"id"`
	From     string    `json:"from"`
	Subject  string    `json:"subject"`
	Snippet  string    `json:"snippet"`
	Labels   []string  `json:"labels"`
	Date     time.Time `json:"date"`
	IsUnread bool      `json:"is_unread"`
}

// EmailInput is what the classifier pipeline sees. Body stays empty in
// metadata-only mode.
type EmailInput struct {
	Email
	Body string `json:"body,omitempty"`
}

package domain

import "time"

// Identity is the authenticated handle published by the auth collaborator.
// A nil *Identity means "signed out".
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SessionView is returned by GET /v1/auth/session and after sign-in.
type SessionView struct {
	Authenticated bool         `json:"authenticated"`
	View          string       `json:"view"` // "sign-in" or "dashboard"
	Profile       *UserProfile `json:"profile,omitempty"`
}

// SignInRequest is the body for POST /v1/auth/sign-in.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordResetRequest is the body for POST /v1/auth/password-reset.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// NotificationRequest is the body for POST /v1/notifications.
type NotificationRequest struct {
	Text string `json:"text"`
}

// NotificationReceipt acknowledges a relayed message.
type NotificationReceipt struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	SentAt time.Time `json:"sentAt"`
}

// WriteAccepted is returned by every create/update/delete. The change becomes
// visible only when the next subscription push arrives.
type WriteAccepted struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

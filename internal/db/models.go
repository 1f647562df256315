package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/gitping/relay/internal/mail"
)

// User is an account plus its notification routing configuration.
// Email and PasswordHash are nil for anonymous and OAuth-only accounts.
type User struct {
	ID                  uuid.UUID  `json:"id"`
	Email               *string    `json:"email,omitempty"`
	PasswordHash        *string    `json:"-"`
	Hook                string     `json:"hookId"`
	PushTokens          []string   `json:"-"`
	OnboardingCompleted bool       `json:"onboardingCompleted"`
	MutedUntil          *time.Time `json:"mutedUntil,omitempty"`
	LastLogin           *time.Time `json:"lastLogin,omitempty"`
	GitlabID            *int64     `json:"-"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Notification is a single normalized inbound event.
// ContentHash is unique across the whole table: a webhook redelivery of the
// same logical event must collapse to the row that already exists.
type Notification struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"userId"`
	Subject     string       `json:"subject"`
	Text        string       `json:"text"`
	HTML        string       `json:"html"`
	Headers     mail.Headers `json:"headers"`
	ContentHash string       `json:"-"`
	ReceivedAt  time.Time    `json:"receivedAt"`
	Viewed      bool         `json:"viewed"`
}

// UserUpdate carries the client-writable user fields for a partial update.
// Nil pointers leave the column untouched. Unmuting is done by setting
// MutedUntil to a timestamp in the past.
type UserUpdate struct {
	Email        *string
	PasswordHash *string
	Hook         *string
	PushTokens   *[]string
	MutedUntil   *time.Time
	GitlabID     *int64
}

// NotificationUpdate carries the client-writable notification fields.
// Headers is deliberately absent: it is never client-writable.
type NotificationUpdate struct {
	Subject *string
	Text    *string
	HTML    *string
	Viewed  *bool
}

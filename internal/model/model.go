// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is an account privilege level.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// NotificationType tags the origin of a notification.
type NotificationType string

const (
	NotificationAdmin  NotificationType = "ADMIN"
	NotificationSystem NotificationType = "SYSTEM"
	NotificationSolve  NotificationType = "SOLVE"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationAdmin, NotificationSystem, NotificationSolve:
		return true
	}
	return false
}

// Tokens collects an issued session token.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID        uuid.UUID // PK
	Email     string    // unique, lower-cased
	Username  string    // unique
	PwdHash   string    // encoded argon2id hash
	Role      Role
	IsBlocked bool
	Score     int64 // >= 0
	CreatedAt time.Time
}

// Identity is the resolved caller attached to an authenticated request.
type Identity struct {
	UserID   uuid.UUID
	Username string
	Role     Role
}

// Notification is a durable per-user message. Read transitions only false -> true.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"-"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Category groups challenges.
type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Challenge is a task whose flag is stored only as a digest.
type Challenge struct {
	ID          uuid.UUID
	CategoryID  uuid.UUID
	Title       string
	Description string
	Points      int64
	FlagDigest  []byte
	CreatedAt   time.Time
}

// ChallengeView is a challenge as seen by a particular user.
type ChallengeView struct {
	ID          uuid.UUID `json:"id"`
	CategoryID  uuid.UUID `json:"categoryId"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Points      int64     `json:"points"`
	Solves      int64     `json:"solves"`
	Solved      bool      `json:"solved"`
}

// SubmitResult reports the outcome of a flag submission.
type SubmitResult struct {
	Correct bool  `json:"correct"`
	Points  int64 `json:"points,omitempty"`
	Score   int64 `json:"score,omitempty"`
}

// LeaderboardEntry is one ranked row of the scoreboard.
type LeaderboardEntry struct {
	Rank      int        `json:"rank"`
	UserID    uuid.UUID  `json:"userId"`
	Username  string     `json:"username"`
	Score     int64      `json:"score"`
	LastSolve *time.Time `json:"lastSolve,omitempty"`
}

// Stats aggregates platform-wide counters.
type Stats struct {
	Users          int64   `json:"users"`
	Challenges     int64   `json:"challenges"`
	Solves         int64   `json:"solves"`
	CompletionRate float64 `json:"completionRate"`
}

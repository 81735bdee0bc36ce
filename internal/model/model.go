package model

import "time"

// Kind selects which identity collection a record belongs to. The kind,
// not a stored role field, is the authority for access level.
type Kind string

const (
	KindAdmin Kind = "admin"
	KindUser  Kind = "user"
)

// Role returns the access-level name implied by the kind.
func (k Kind) Role() string {
	if k == KindAdmin {
		return "admin"
	}
	return "user"
}

type Identity struct {
	ID           string
	Kind         Kind
	Username     string
	Email        string
	PasswordHash string  // empty for OAuth-created accounts
	ExternalID   *string // OAuth subject id, when linked
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// NewIdentity carries the fields for creating an identity. Password is
// plaintext here; the store hashes it before anything touches disk. It is
// empty for OAuth-created accounts, which then have no password at all.
type NewIdentity struct {
	Kind       Kind
	Username   string
	Email      string
	Password   string
	ExternalID string
}

type Event struct {
	ID          string
	AdminID     string
	Title       string
	Description string
	Location    string
	StartDate   time.Time
	EndDate     time.Time
	CreatedAt   time.Time
}

type EventApplication struct {
	ID           string
	EventID      string
	IdentityID   string
	StudentName  string
	PhoneNumber  string
	College      string
	YearOfStudy  string
	FieldOfStudy string
	Status       string
	AppliedAt    time.Time
}

// Application statuses.
const (
	StatusApplied    = "applied"
	StatusAccepted   = "accepted"
	StatusRejected   = "rejected"
	StatusInterested = "interested"
)

func IsValidStatus(status string) bool {
	switch status {
	case StatusApplied, StatusAccepted, StatusRejected, StatusInterested:
		return true
	default:
		return false
	}
}

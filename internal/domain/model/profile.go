package model

import "time"

type CandidateStatus string

const (
	CandidateStatusFree    CandidateStatus = "free"
	CandidateStatusPending CandidateStatus = "pending"
	CandidateStatusActive  CandidateStatus = "active"
)

// Candidate is a public profile. Status, IsPrivatePaid and AccessCode are
// entitlement state and are never written by profile editing.
type Candidate struct {
	ID            string
	UserID        string
	Slug          string
	Firstname     string
	Lastname      string
	Description   string
	ImageKey      *string
	IsPrivate     bool
	IsPrivatePaid bool
	Status        CandidateStatus
	AccessCode    *string // bcrypt hash
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Portfolio struct {
	ID          string
	UserID      string
	CandidateID string
	IsPaid      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Event struct {
	ID            string
	UserID        string
	Category      string
	Slug          string
	Title         string
	Description   string
	StartsAt      *time.Time
	IsPrivate     bool
	IsPrivatePaid bool
	AccessCode    *string // bcrypt hash
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

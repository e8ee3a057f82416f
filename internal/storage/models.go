package storage

import (
	"time"

	"github.com/google/uuid"
)

const (
	TaxStatusPending   = "pending"
	TaxStatusCompleted = "completed"
)

const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

const (
	SessionKindClient = "client"
	SessionKindAdmin  = "admin"
)

type Account struct {
	ID                  uuid.UUID
	Name                string
	Email               string
	PasswordHash        string
	Role                string
	TaxStatus           string
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time
	CreatedAt           time.Time
}

type Session struct {
	ID        uuid.UUID
	TokenHash string
	AccountID uuid.UUID
	Kind      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type ContactSubmission struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     string
	Message   string
	CreatedAt time.Time
}

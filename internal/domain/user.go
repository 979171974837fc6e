package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuthMethod records how a request proved its identity.
type AuthMethod string

const (
	AuthToken   AuthMethod = "token"
	AuthSession AuthMethod = "session"
)

// Access is the capability of the data handle bound to a request. Privileged
// handles may write ledger rows on the user's behalf; every query is still
// scoped to Principal.UserID.
type Access string

const (
	AccessRestricted Access = "restricted"
	AccessPrivileged Access = "privileged"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID  uuid.UUID
	Email   string
	Method  AuthMethod
	Access  Access
	TokenID *uuid.UUID
	Admin   bool
}

// APIToken is a long-lived credential for external integrations.
type APIToken struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Name       string     `json:"name"`
	Token      string     `json:"token"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
	IsActive   bool       `json:"is_active"`
}

// Usable reports whether the token may authenticate at now.
func (t APIToken) Usable(now time.Time) bool {
	if !t.IsActive {
		return false
	}
	return t.ExpiresAt == nil || now.Before(*t.ExpiresAt)
}

// Stats is the admin dashboard summary.
type Stats struct {
	Users              int            `json:"users"`
	TotalBalance       string         `json:"total_balance"`
	Revenue            string         `json:"revenue"`
	GenerationsByState map[string]int `json:"generations_by_status"`
	GenerationsByKind  map[string]int `json:"generations_by_kind"`
	Last24h            int            `json:"generations_last_24h"`
	ChargeFailures     int            `json:"charge_failures"`
}

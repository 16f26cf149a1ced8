package account

import "time"

// Account is the security principal behind every session token.
//
// TokenVersion starts at 1 and only ever increases. Bumping it invalidates
// every previously issued token for the account, because tokens embed the
// version they were minted under and the session validator compares it
// against the stored value.
type Account struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	TokenVersion     int        `json:"-"`
	Active           bool       `json:"active"`
	SuspendedAt      *time.Time `json:"suspended_at,omitempty"`
	SuspensionReason string     `json:"suspension_reason,omitempty"`
	DeletedAt        *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Usable reports whether the account may hold a live session: it must be
// active, not suspended, and not soft-deleted.
func (a Account) Usable() bool {
	return a.Active && a.SuspendedAt == nil && a.DeletedAt == nil
}

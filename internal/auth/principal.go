package auth

import "github.com/google/uuid"

// Principal is an authenticated actor
type Principal struct {
	ID     uuid.UUID `json:"id"`
	Role   Role      `json:"role"`
	Status Status    `json:"status"`
}

// IsActive reports whether the principal may act at all
func (p Principal) IsActive() bool {
	return p.Status == StatusActive
}

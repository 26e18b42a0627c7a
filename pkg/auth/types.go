package auth

import "time"

// Principal is a registered account
type Principal struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialized
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Redacted returns a copy of the principal with the password hash cleared
func (p *Principal) Redacted() *Principal {
	if p == nil {
		return nil
	}
	out := *p
	out.PasswordHash = ""
	return &out
}

// HasRole reports whether the principal holds any of the given roles
func (p *Principal) HasRole(roles ...Role) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Role is the access level of a principal
type Role string

const (
	RoleAdmin Role = "admin" // Full access to administrative routes
	RoleUser  Role = "user"  // Self-service only
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Credentials is the result of a successful login or signup
type Credentials struct {
	Principal *Principal
	Token     string
}

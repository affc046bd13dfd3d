package model

import "time"

// Role constants for account authorization.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account represents a registered pet owner or administrator.
type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"` // Never serialize
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin returns true if the account has the admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Contact returns the subset of account fields shown to whoever finds the pet.
func (a *Account) Contact() Contact {
	return Contact{
		Name:  a.Name,
		Phone: a.Phone,
		Email: a.Email,
	}
}

// Contact holds owner contact details. Missing values are empty strings.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// IsEmpty reports whether no contact field is known.
func (c Contact) IsEmpty() bool {
	return c.Name == "" && c.Phone == "" && c.Email == ""
}

// Session holds the authenticated caller for a request.
// Injected into the request context by the auth middleware.
type Session struct {
	AccountID string
	Role      Role
}

// IsAdmin returns true if the session belongs to an administrator.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

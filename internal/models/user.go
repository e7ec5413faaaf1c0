package models

import (
	"time"
)

// UserRole is the residency type a resident registers with
type UserRole string

const (
	RoleOwner  UserRole = "owner"
	RoleTenant UserRole = "tenant"
)

// UserStatus tracks the approval lifecycle of a resident
type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusApproved UserStatus = "approved"
	UserStatusRejected UserStatus = "rejected"
)

// User represents a resident of the society
type User struct {
	ID           string     `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Email        string     `json:"email" db:"email"`
	Mobile       NullString `json:"mobile,omitempty" db:"mobile"`
	FlatNumber   string     `json:"flat_number" db:"flat_number"`
	Role         UserRole   `json:"role" db:"role"`
	Status       UserStatus `json:"status" db:"status"`
	PasswordHash string     `json:"-" db:"password_hash"` // Never expose password hash in JSON
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// IsApproved reports whether the resident may sign in
func (u *User) IsApproved() bool {
	return u.Status == UserStatusApproved
}

// RegisterRequest represents the resident registration payload
type RegisterRequest struct {
	Name       string `json:"name" validate:"required,min=3"`
	Email      string `json:"email" validate:"required,email"`
	Mobile     string `json:"mobile" validate:"omitempty,e164"`
	FlatNumber string `json:"flat_number" validate:"required"`
	Role       string `json:"role" validate:"required,oneof=owner tenant"`
	Password   string `json:"password" validate:"required,min=6,password"`
}

// LoginRequest represents the login payload for residents and administrators
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents the token refresh and logout payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

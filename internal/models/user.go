package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role on the platform.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// MembershipStatus represents paid access to the materials area.
type MembershipStatus string

const (
	MembershipNone   MembershipStatus = "none"
	MembershipActive MembershipStatus = "active"
)

// User represents a platform user.
type User struct {
	ID               uuid.UUID        `json:"id"`
	Email            string           `json:"email"`
	Password         string           `json:"-"`
	FullName         string           `json:"full_name"`
	Role             Role             `json:"role"`
	MembershipStatus MembershipStatus `json:"membership_status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID               uuid.UUID        `json:"id"`
	Email            string           `json:"email"`
	FullName         string           `json:"full_name"`
	Role             Role             `json:"role"`
	MembershipStatus MembershipStatus `json:"membership_status"`
	CreatedAt        time.Time        `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:               u.ID,
		Email:            u.Email,
		FullName:         u.FullName,
		Role:             u.Role,
		MembershipStatus: u.MembershipStatus,
		CreatedAt:        u.CreatedAt,
	}
}

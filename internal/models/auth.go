package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresIn   int64     `json:"expiresIn"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issuedAt"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FullName     string     `json:"fullName"`
	Role         UserRole   `json:"role"`
	DepartmentID *string    `json:"departmentId,omitempty"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID       string   `json:"user_id"`
	Role         UserRole `json:"role"`
	Email        string   `json:"email"`
	FullName     string   `json:"full_name"`
	DepartmentID string   `json:"department_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	UserID       string
	Role         UserRole
	DepartmentID string
}

// Actor extracts the caller identity from the token claims.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{UserID: c.UserID, Role: c.Role, DepartmentID: c.DepartmentID}
}

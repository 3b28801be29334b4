package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expires_in"`
	IssuedAt  time.Time `json:"issued_at"`
	User      UserInfo  `json:"user"`
}

// UserInfo describes the authenticated user, with the teacher profile joined
// when one is linked.
type UserInfo struct {
	ID               string   `json:"id"`
	Username         string   `json:"username"`
	Role             UserRole `json:"role"`
	TeacherProfileID *string  `json:"teacherProfileId,omitempty"`
	Teacher          *Teacher `json:"teacherProfile,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens. Verification is
// stateless; there is no server-side session store.
type JWTClaims struct {
	UserID           string   `json:"user_id"`
	Username         string   `json:"username"`
	Role             UserRole `json:"role"`
	TeacherProfileID *string  `json:"teacher_profile_id,omitempty"`
	jwt.RegisteredClaims
}

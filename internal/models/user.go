package models

import "time"

// UserRole represents the closed set of roles known to the RBAC system.
type UserRole string

const (
	RoleAdmin       UserRole = "ADMIN"
	RoleTeacher     UserRole = "TEACHER"
	RoleHeadteacher UserRole = "HEADTEACHER"
)

// Valid reports whether the role belongs to the closed set.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleHeadteacher:
		return true
	}
	return false
}

// User represents an application account stored in the users table.
// TeacherProfileID links teacher and headteacher accounts to their profile;
// admin accounts carry no profile.
type User struct {
	ID               string    `db:"id" json:"id"`
	Username         string    `db:"username" json:"username"`
	PasswordHash     string    `db:"password_hash" json:"-"`
	Role             UserRole  `db:"role" json:"role"`
	TeacherProfileID *string   `db:"teacher_profile_id" json:"teacherProfileId,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

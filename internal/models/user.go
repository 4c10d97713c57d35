package models

import "time"

// UserRole scopes what a school account may do.
type UserRole string

const (
	RoleSchoolAdmin UserRole = "school_admin"
	RoleTeacher     UserRole = "teacher"
	RoleStudent     UserRole = "student"
	RoleParent      UserRole = "parent"
)

// User is a school-scoped account. The first one for each school is its
// administrator, created with a temporary password on approval.
type User struct {
	BaseModel

	SchoolID     *string `gorm:"type:uuid;index" json:"school_id,omitempty"`
	Email        string  `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Phone        *string `gorm:"size:20" json:"phone,omitempty"`
	PasswordHash string  `gorm:"not null" json:"-"`

	FirstName string   `gorm:"size:100;not null" json:"first_name"`
	LastName  string   `gorm:"size:100" json:"last_name"`
	Role      UserRole `gorm:"size:32;not null;index" json:"role"`

	IsActive           bool       `gorm:"not null;default:true" json:"is_active"`
	IsVerified         bool       `gorm:"not null;default:false" json:"is_verified"`
	MustChangePassword bool       `gorm:"not null;default:false" json:"must_change_password"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
}

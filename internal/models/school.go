package models

import "gorm.io/datatypes"

// SchoolStatus is the lifecycle state of a provisioned school tenant.
type SchoolStatus string

const (
	SchoolStatusActive      SchoolStatus = "active"
	SchoolStatusSuspended   SchoolStatus = "suspended"
	SchoolStatusDeactivated SchoolStatus = "deactivated"
)

// School is the tenant created when an application is approved.
type School struct {
	BaseModel

	Name              string            `gorm:"size:200;not null;index" json:"name"`
	SchoolType        SchoolType        `gorm:"size:32;not null" json:"school_type"`
	YearEstablished   int               `gorm:"not null" json:"year_established"`
	StudentPopulation StudentPopulation `gorm:"size:32;not null" json:"student_population"`

	CountryCode string `gorm:"size:2;not null;index" json:"country_code"`
	City        string `gorm:"size:100;not null" json:"city"`
	Address     string `gorm:"size:500;not null" json:"address"`

	Email          string `gorm:"size:255" json:"email,omitempty"`
	Phone          string `gorm:"size:20" json:"phone,omitempty"`
	PrincipalName  string `gorm:"size:200;not null" json:"principal_name"`
	PrincipalEmail string `gorm:"size:255;not null" json:"principal_email"`
	PrincipalPhone string `gorm:"size:20" json:"principal_phone,omitempty"`

	OnlinePresence datatypes.JSONSlice[OnlinePresence] `json:"online_presence"`

	Status        SchoolStatus `gorm:"size:20;not null" json:"status"`
	IsActive      bool         `gorm:"not null;default:true" json:"is_active"`
	ApplicationID *string      `gorm:"type:uuid;uniqueIndex" json:"application_id,omitempty"`

	Users []User `gorm:"foreignKey:SchoolID" json:"users,omitempty"`
}

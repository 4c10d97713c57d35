package models

import (
	"time"

	"gorm.io/gorm"
)

// InternalNote is a reviewer-only annotation on an application.
type InternalNote struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	ApplicationID string    `gorm:"type:uuid;not null;index" json:"application_id"`
	Note          string    `gorm:"type:text;not null" json:"note"`
	CreatedBy     string    `gorm:"size:255;not null" json:"created_by"`
	CreatedAt     time.Time `gorm:"not null;index" json:"created_at"`
}

func (InternalNote) TableName() string { return "application_notes" }

func (n *InternalNote) BeforeCreate(tx *gorm.DB) error {
	n.ID = newID(n.ID)
	return nil
}

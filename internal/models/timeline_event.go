package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TimelineEventType enumerates the audit events recorded for an application.
type TimelineEventType string

const (
	EventSubmitted          TimelineEventType = "submitted"
	EventEmailVerified      TimelineEventType = "email_verified"
	EventPrincipalConfirmed TimelineEventType = "principal_confirmed"
	EventMovedToReview      TimelineEventType = "moved_to_review"
	EventReviewStarted      TimelineEventType = "review_started"
	EventDecisionMade       TimelineEventType = "decision_made"
	EventInfoRequested      TimelineEventType = "info_requested"
	EventExpired            TimelineEventType = "expired"
)

// TimelineEvent is an immutable record of one status transition.
type TimelineEvent struct {
	ID            string            `gorm:"primaryKey;type:uuid" json:"id"`
	ApplicationID string            `gorm:"type:uuid;not null;uniqueIndex:idx_timeline_app_seq,priority:1" json:"application_id"`
	Sequence      int               `gorm:"not null;uniqueIndex:idx_timeline_app_seq,priority:2" json:"sequence"`
	EventType     TimelineEventType `gorm:"size:40;not null;index" json:"event_type"`
	Label         string            `gorm:"size:200;not null" json:"label"`
	FromStatus    ApplicationStatus `gorm:"size:40" json:"from_status,omitempty"`
	ToStatus      ApplicationStatus `gorm:"size:40;not null" json:"to_status"`
	Actor         string            `gorm:"size:255" json:"actor,omitempty"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	OccurredAt    time.Time         `gorm:"not null;index" json:"timestamp"`
}

// TableName pins the table name.
func (TimelineEvent) TableName() string { return "application_timeline_events" }

// BeforeCreate assigns the identifier.
func (e *TimelineEvent) BeforeCreate(tx *gorm.DB) error {
	e.ID = newID(e.ID)
	return nil
}

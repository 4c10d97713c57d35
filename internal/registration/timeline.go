package registration

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/models"
)

var eventLabels = map[models.TimelineEventType]string{
	models.EventSubmitted:          "Application submitted",
	models.EventEmailVerified:      "Email verified",
	models.EventPrincipalConfirmed: "Principal confirmed",
	models.EventMovedToReview:      "Moved back to review",
	models.EventReviewStarted:      "Review started",
	models.EventDecisionMade:       "Decision made",
	models.EventInfoRequested:      "More information requested",
	models.EventExpired:            "Application expired",
}

// EventLabel returns the default human-readable label for an event type.
func EventLabel(eventType models.TimelineEventType) string {
	if label, ok := eventLabels[eventType]; ok {
		return label
	}
	return string(eventType)
}

// TimelineEntry describes one event to record.
type TimelineEntry struct {
	ApplicationID string
	Type          models.TimelineEventType
	Label         string
	From          models.ApplicationStatus
	To            models.ApplicationStatus
	Actor         string
	Metadata      map[string]any
}

// TimelineRecorder appends immutable audit events. Events are only ever inserted.
type TimelineRecorder struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTimelineRecorder constructs a TimelineRecorder.
func NewTimelineRecorder(db *gorm.DB, clock func() time.Time) (*TimelineRecorder, error) {
	if db == nil {
		return nil, errors.New("timeline recorder: db is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &TimelineRecorder{db: db, now: clock}, nil
}

// WithTx returns a copy of the recorder bound to tx.
func (r *TimelineRecorder) WithTx(tx *gorm.DB) *TimelineRecorder {
	cpy := *r
	cpy.db = tx
	return &cpy
}

// Append records the next event for the application.
func (r *TimelineRecorder) Append(ctx context.Context, entry TimelineEntry) (*models.TimelineEvent, error) {
	if entry.ApplicationID == "" {
		return nil, errors.New("timeline recorder: application id is required")
	}

	db := r.db.WithContext(ctx)

	var last int
	if err := db.Model(&models.TimelineEvent{}).
		Where("application_id = ?", entry.ApplicationID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error; err != nil {
		return nil, storageError("read timeline sequence", err)
	}

	label := entry.Label
	if label == "" {
		label = EventLabel(entry.Type)
	}

	event := &models.TimelineEvent{
		ApplicationID: entry.ApplicationID,
		Sequence:      last + 1,
		EventType:     entry.Type,
		Label:         label,
		FromStatus:    entry.From,
		ToStatus:      entry.To,
		Actor:         entry.Actor,
		OccurredAt:    r.now().UTC(),
	}
	if len(entry.Metadata) > 0 {
		event.Metadata = datatypes.JSONMap(entry.Metadata)
	}

	if err := db.Create(event).Error; err != nil {
		return nil, storageError("append timeline event", err)
	}
	return event, nil
}

// ListFor returns the application's events in the order they occurred.
func (r *TimelineRecorder) ListFor(ctx context.Context, applicationID string) ([]models.TimelineEvent, error) {
	var events []models.TimelineEvent
	err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("occurred_at ASC").
		Order("sequence ASC").
		Find(&events).Error
	if err != nil {
		return nil, storageError("list timeline", err)
	}
	return events, nil
}

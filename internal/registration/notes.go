package registration

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/models"
)

// NotesStore keeps reviewer-only annotations. Notes are append-only.
type NotesStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewNotesStore constructs a NotesStore.
func NewNotesStore(db *gorm.DB, clock func() time.Time) (*NotesStore, error) {
	if db == nil {
		return nil, errors.New("notes store: db is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &NotesStore{db: db, now: clock}, nil
}

// Add appends a note to the application.
func (s *NotesStore) Add(ctx context.Context, applicationID, author, text string) (*models.InternalNote, error) {
	note := &models.InternalNote{
		ApplicationID: applicationID,
		Note:          text,
		CreatedBy:     author,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(note).Error; err != nil {
		return nil, storageError("add note", err)
	}
	return note, nil
}

// ListFor returns the application's notes oldest first.
func (s *NotesStore) ListFor(ctx context.Context, applicationID string) ([]models.InternalNote, error) {
	var notes []models.InternalNote
	err := s.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&notes).Error
	if err != nil {
		return nil, storageError("list notes", err)
	}
	return notes, nil
}

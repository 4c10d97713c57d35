package registration

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/models"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100

	reviewWindow = 30 * 24 * time.Hour
	weekWindow   = 7 * 24 * time.Hour
)

// Change carries the timestamp and reviewer fields written alongside a status change.
type Change struct {
	ApplicantVerifiedAt  *time.Time
	PrincipalConfirmedAt *time.Time
	ReviewedAt           *time.Time
	ReviewedBy           *string
	DecisionReason       *string
}

// ListFilter narrows and orders the administrative application listing.
type ListFilter struct {
	Status      models.ApplicationStatus `form:"status" json:"status" validate:"omitempty,max=40"`
	CountryCode string                   `form:"country_code" json:"country_code" validate:"omitempty,len=2"`
	Search      string                   `form:"search" json:"search" validate:"omitempty,max=200"`
	SortBy      string                   `form:"sort_by" json:"sort_by" validate:"omitempty,oneof=submitted_at school_name"`
	SortOrder   string                   `form:"sort_order" json:"sort_order" validate:"omitempty,oneof=asc desc"`
	Page        int                      `form:"page" json:"page" validate:"omitempty,min=1"`
	PerPage     int                      `form:"per_page" json:"per_page" validate:"omitempty,min=1,max=100"`
}

func (f ListFilter) normalized() ListFilter {
	f.CountryCode = strings.ToUpper(strings.TrimSpace(f.CountryCode))
	f.Search = strings.TrimSpace(f.Search)
	if f.SortBy == "" {
		f.SortBy = "submitted_at"
	}
	if f.SortOrder == "" {
		f.SortOrder = "desc"
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = defaultPerPage
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}
	return f
}

// Stats summarises the review queue.
type Stats struct {
	PendingReview     int64    `json:"pending_review"`
	UnderReview       int64    `json:"under_review"`
	MoreInfoRequested int64    `json:"more_info_requested"`
	ApprovedThisWeek  int64    `json:"approved_this_week"`
	TotalThisMonth    int64    `json:"total_this_month"`
	AvgReviewTimeDays *float64 `json:"avg_review_time_days"`
}

// Ledger owns the canonical application record and its status field.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLedger constructs a Ledger.
func NewLedger(db *gorm.DB, clock func() time.Time) (*Ledger, error) {
	if db == nil {
		return nil, errors.New("ledger: db is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{db: db, now: clock}, nil
}

// WithTx returns a copy of the ledger bound to tx.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	cpy := *l
	cpy.db = tx
	return &cpy
}

// Create inserts a new application in the initial status. A second in-flight
// application for the same contact email is rejected with ErrDuplicateActive.
func (l *Ledger) Create(ctx context.Context, app *models.SchoolApplication) error {
	app.Status = models.StatusAwaitingApplicantVerification
	app.ContactEmail = models.NormalizeEmail(app.EffectiveApplicantEmail())
	if app.SubmittedAt.IsZero() {
		app.SubmittedAt = l.now().UTC()
	}
	app.SyncActiveKey()

	if err := l.db.WithContext(ctx).Create(app).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateActive
		}
		return storageError("create application", err)
	}
	return nil
}

// Get loads an application by id.
func (l *Ledger) Get(ctx context.Context, id string) (*models.SchoolApplication, error) {
	return l.load(ctx, id, false)
}

// GetForUpdate loads an application by id, taking a row lock where the database supports it.
func (l *Ledger) GetForUpdate(ctx context.Context, id string) (*models.SchoolApplication, error) {
	return l.load(ctx, id, true)
}

// FindActiveByEmail returns the non-terminal application keyed by email, if any.
func (l *Ledger) FindActiveByEmail(ctx context.Context, email string) (*models.SchoolApplication, error) {
	var app models.SchoolApplication
	err := l.db.WithContext(ctx).
		Where("active_email_key = ?", models.NormalizeEmail(email)).
		First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("find active application", err)
	}
	return &app, nil
}

// FindActiveBySchool returns a non-terminal application for the same school
// name in the same city, compared case-insensitively.
func (l *Ledger) FindActiveBySchool(ctx context.Context, name, city string) (*models.SchoolApplication, error) {
	var app models.SchoolApplication
	err := l.db.WithContext(ctx).
		Where("LOWER(school_name) = ? AND LOWER(city) = ?", strings.ToLower(strings.TrimSpace(name)), strings.ToLower(strings.TrimSpace(city))).
		Where("status IN ?", models.ActiveStatuses()).
		First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("find active school", err)
	}
	return &app, nil
}

// Transition moves app to the target status if the transition table allows it
// and the stored status still equals app.Status. Losing a race yields ErrInvalidTransition.
func (l *Ledger) Transition(ctx context.Context, app *models.SchoolApplication, to models.ApplicationStatus, change Change) error {
	from := app.Status
	if !from.CanTransitionTo(to) {
		return ErrInvalidTransition
	}

	updates := map[string]any{"status": to}
	if to.Terminal() {
		updates["active_email_key"] = nil
	}
	if change.ApplicantVerifiedAt != nil {
		updates["applicant_verified_at"] = *change.ApplicantVerifiedAt
	}
	if change.PrincipalConfirmedAt != nil {
		updates["principal_confirmed_at"] = *change.PrincipalConfirmedAt
	}
	if change.ReviewedAt != nil {
		updates["reviewed_at"] = *change.ReviewedAt
	}
	if change.ReviewedBy != nil {
		updates["reviewed_by"] = *change.ReviewedBy
	}
	if change.DecisionReason != nil {
		updates["decision_reason"] = *change.DecisionReason
	}

	res := l.db.WithContext(ctx).
		Model(&models.SchoolApplication{}).
		Where("id = ? AND status = ?", app.ID, from).
		Updates(updates)
	if res.Error != nil {
		return storageError("update status", res.Error)
	}
	if res.RowsAffected != 1 {
		return ErrInvalidTransition
	}

	app.Status = to
	app.SyncActiveKey()
	if change.ApplicantVerifiedAt != nil {
		app.ApplicantVerifiedAt = change.ApplicantVerifiedAt
	}
	if change.PrincipalConfirmedAt != nil {
		app.PrincipalConfirmedAt = change.PrincipalConfirmedAt
	}
	if change.ReviewedAt != nil {
		app.ReviewedAt = change.ReviewedAt
	}
	if change.ReviewedBy != nil {
		app.ReviewedBy = change.ReviewedBy
	}
	if change.DecisionReason != nil {
		app.DecisionReason = change.DecisionReason
	}
	return nil
}

// List returns one page of applications matching filter together with the total match count.
func (l *Ledger) List(ctx context.Context, filter ListFilter) ([]models.SchoolApplication, int64, error) {
	filter = filter.normalized()

	query := l.db.WithContext(ctx).Model(&models.SchoolApplication{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CountryCode != "" {
		query = query.Where("country_code = ?", filter.CountryCode)
	}
	if filter.Search != "" {
		like := containsPattern(filter.Search)
		query = query.Where(
			"LOWER(school_name) LIKE ? ESCAPE '!' OR contact_email LIKE ? ESCAPE '!' OR LOWER(principal_email) LIKE ? ESCAPE '!'",
			like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storageError("count applications", err)
	}

	var apps []models.SchoolApplication
	err := query.
		Order(clause.OrderByColumn{Column: clause.Column{Name: filter.SortBy}, Desc: filter.SortOrder == "desc"}).
		Order("id").
		Offset((filter.Page - 1) * filter.PerPage).
		Limit(filter.PerPage).
		Find(&apps).Error
	if err != nil {
		return nil, 0, storageError("list applications", err)
	}
	return apps, total, nil
}

// Stale lists non-terminal applications submitted before cutoff.
func (l *Ledger) Stale(ctx context.Context, cutoff time.Time) ([]models.SchoolApplication, error) {
	var apps []models.SchoolApplication
	err := l.db.WithContext(ctx).
		Where("status IN ? AND submitted_at < ?", models.ActiveStatuses(), cutoff).
		Order("submitted_at ASC").
		Find(&apps).Error
	if err != nil {
		return nil, storageError("list stale applications", err)
	}
	return apps, nil
}

// Stats computes queue counters relative to the ledger clock.
func (l *Ledger) Stats(ctx context.Context) (*Stats, error) {
	now := l.now().UTC()
	db := l.db.WithContext(ctx)

	var counts []struct {
		Status models.ApplicationStatus
		Total  int64
	}
	err := db.Model(&models.SchoolApplication{}).
		Select("status, COUNT(*) AS total").
		Where("status IN ?", []models.ApplicationStatus{
			models.StatusPendingReview,
			models.StatusUnderReview,
			models.StatusMoreInfoRequested,
		}).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, storageError("count by status", err)
	}

	stats := &Stats{}
	for _, row := range counts {
		switch row.Status {
		case models.StatusPendingReview:
			stats.PendingReview = row.Total
		case models.StatusUnderReview:
			stats.UnderReview = row.Total
		case models.StatusMoreInfoRequested:
			stats.MoreInfoRequested = row.Total
		}
	}

	if err := db.Model(&models.SchoolApplication{}).
		Where("status = ? AND reviewed_at >= ?", models.StatusApproved, now.Add(-weekWindow)).
		Count(&stats.ApprovedThisWeek).Error; err != nil {
		return nil, storageError("count approved", err)
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if err := db.Model(&models.SchoolApplication{}).
		Where("submitted_at >= ?", monthStart).
		Count(&stats.TotalThisMonth).Error; err != nil {
		return nil, storageError("count monthly", err)
	}

	var decided []struct {
		SubmittedAt time.Time
		ReviewedAt  time.Time
	}
	err = db.Model(&models.SchoolApplication{}).
		Select("submitted_at, reviewed_at").
		Where("status IN ? AND reviewed_at >= ?", []models.ApplicationStatus{models.StatusApproved, models.StatusRejected}, now.Add(-reviewWindow)).
		Scan(&decided).Error
	if err != nil {
		return nil, storageError("load review times", err)
	}
	if len(decided) > 0 {
		var sum time.Duration
		for _, row := range decided {
			sum += row.ReviewedAt.Sub(row.SubmittedAt)
		}
		days := sum.Hours() / 24 / float64(len(decided))
		days = float64(int64(days*10+0.5)) / 10
		stats.AvgReviewTimeDays = &days
	}

	return stats, nil
}

func (l *Ledger) load(ctx context.Context, id string, lock bool) (*models.SchoolApplication, error) {
	id, err := canonicalID(id)
	if err != nil {
		return nil, err
	}

	query := l.db.WithContext(ctx)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var app models.SchoolApplication
	err = query.First(&app, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, storageError("load application", err)
	}
	return &app, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern builds a case-insensitive substring LIKE pattern in which
// the search term's own wildcards match literally.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

// canonicalID returns id in the lower-case hyphenated form ids are stored in.
// Anything that is not a UUID cannot name an application and is reported as
// not found rather than reaching the database.
func canonicalID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", ErrApplicationNotFound
	}
	return parsed.String(), nil
}

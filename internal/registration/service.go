package registration

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/models"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/notifications"
	apperrors "github.com/EL-KENDEH-TEAM/EK-SMS/pkg/errors"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/logger"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/metrics"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/privacy"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/validator"
)

const (
	defaultLockTimeout   = 5 * time.Second
	defaultReminderAfter = 48 * time.Hour

	expiryFormat = "02 Jan 2006 15:04 MST"
)

// Config tunes the workflow.
type Config struct {
	TokenTTL         time.Duration
	TokenBytes       int
	ReminderAfter    time.Duration
	SubmissionMaxAge time.Duration
	LockTimeout      time.Duration
	FrontendURL      string
	AdminEmails      []string
}

// Option customises a Service.
type Option func(*Service)

// WithClock injects a custom time source shared by every component.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithLogger overrides the service logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// SubmitResult is returned to the applicant after submission.
type SubmitResult struct {
	ID          string                   `json:"id"`
	Status      models.ApplicationStatus `json:"status"`
	MaskedEmail string                   `json:"masked_email"`
}

// VerifyResult is returned after a successful applicant verification.
type VerifyResult struct {
	Status             models.ApplicationStatus `json:"status"`
	PrincipalEmailHint string                   `json:"principal_email_hint,omitempty"`
}

// ConfirmResult is returned after a successful principal confirmation.
type ConfirmResult struct {
	Status models.ApplicationStatus `json:"status"`
}

// ResendResult acknowledges a reissued token.
type ResendResult struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PrincipalView is what the principal sees before confirming.
type PrincipalView struct {
	ApplicationID   string             `json:"application_id"`
	SchoolName      string             `json:"school_name"`
	SchoolType      models.SchoolType  `json:"school_type"`
	City            string             `json:"city"`
	CountryCode     string             `json:"country_code"`
	CountryName     string             `json:"country_name"`
	PrincipalName   string             `json:"principal_name"`
	ApplicantName   string             `json:"applicant_name"`
	ApplicantRole   string             `json:"applicant_role,omitempty"`
	AdminChoice     models.AdminChoice `json:"admin_choice"`
	DesignatedAdmin string             `json:"designated_admin"`
	SubmittedAt     time.Time          `json:"submitted_at"`
	ExpiresAt       time.Time          `json:"expires_at"`
}

// ApproveResult is the approved application with the ids of the provisioned
// school and administrator account.
type ApproveResult struct {
	*models.SchoolApplication
	SchoolID    string `json:"school_id"`
	AdminUserID string `json:"admin_user_id"`
	Message     string `json:"message"`
}

// ListResult is one page of the administrative listing.
type ListResult struct {
	Items   []models.SchoolApplication `json:"items"`
	Total   int64                      `json:"total"`
	Page    int                        `json:"page"`
	PerPage int                        `json:"per_page"`
}

// Detail is the administrative view of a single application.
type Detail struct {
	Application *models.SchoolApplication `json:"application"`
	StatusLabel string                    `json:"status_label"`
	CountryName string                    `json:"country_name"`
	Timeline    []models.TimelineEvent    `json:"timeline"`
	Notes       []models.InternalNote     `json:"notes"`
}

// Service is the review workflow orchestrator. Each mutating operation runs its
// ledger transition, token consumption and timeline append in one transaction
// under a per-application lock, then dispatches notifications after commit.
type Service struct {
	db         *gorm.DB
	ledger     *Ledger
	tokens     *TokenIssuer
	timeline   *TimelineRecorder
	notes      *NotesStore
	schools    *Provisioner
	dispatcher notifications.Dispatcher
	locks      *lockSet
	cfg        Config
	now        func() time.Time
	log        *zap.Logger
}

// NewService wires the workflow components around db.
func NewService(db *gorm.DB, dispatcher notifications.Dispatcher, cfg Config, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, errors.New("registration service: db is required")
	}
	if dispatcher == nil {
		return nil, errors.New("registration service: dispatcher is required")
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = defaultLockTimeout
	}
	if cfg.ReminderAfter <= 0 {
		cfg.ReminderAfter = defaultReminderAfter
	}
	cfg.FrontendURL = strings.TrimRight(strings.TrimSpace(cfg.FrontendURL), "/")

	s := &Service{
		db:         db,
		dispatcher: dispatcher,
		locks:      newLockSet(),
		cfg:        cfg,
		now:        time.Now,
		log:        logger.WithModule("registration"),
	}
	for _, opt := range opts {
		opt(s)
	}

	clock := func() time.Time { return s.now() }

	var err error
	if s.ledger, err = NewLedger(db, clock); err != nil {
		return nil, err
	}
	if s.tokens, err = NewTokenIssuer(db, WithTokenClock(clock), WithTokenTTL(cfg.TokenTTL), WithTokenBytes(cfg.TokenBytes)); err != nil {
		return nil, err
	}
	if s.timeline, err = NewTimelineRecorder(db, clock); err != nil {
		return nil, err
	}
	if s.notes, err = NewNotesStore(db, clock); err != nil {
		return nil, err
	}
	if s.schools, err = NewProvisioner(db); err != nil {
		return nil, err
	}
	return s, nil
}

// Submit validates the payload, creates the application, issues the applicant
// verification token and emails it.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	now := s.now().UTC()
	if err := validateSubmission(&input, now); err != nil {
		return nil, err
	}

	app := toApplication(&input)
	app.SubmittedAt = now

	var u *unit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u = s.newUnit(ctx, tx)

		inFlight, err := u.ledger.FindActiveByEmail(ctx, app.EffectiveApplicantEmail())
		if err != nil {
			return err
		}
		if inFlight != nil {
			return ErrDuplicateActive.WithMessage(fmt.Sprintf(
				"An application for %s is already in progress; follow the link in your email to continue it",
				privacy.MaskEmail(app.EffectiveApplicantEmail()),
			))
		}

		existing, err := u.ledger.FindActiveBySchool(ctx, app.SchoolName, app.City)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicateActive.WithMessage("An application for this school is already in progress")
		}

		if err := u.ledger.Create(ctx, app); err != nil {
			return err
		}
		if err := u.record(app, "", TimelineEntry{Type: models.EventSubmitted, Actor: app.ContactEmail}); err != nil {
			return err
		}

		raw, token, err := u.tokens.Issue(ctx, app.ID, models.PurposeApplicantVerification)
		if err != nil {
			return err
		}
		u.notify(app.ID, notifications.TemplateApplicantVerification, app.EffectiveApplicantEmail(), s.tokenVars(app, raw, token))
		return nil
	})
	if err != nil {
		return nil, storageError("submit application", err)
	}
	s.flush(ctx, u)

	return &SubmitResult{
		ID:          app.ID,
		Status:      app.Status,
		MaskedEmail: privacy.MaskEmail(app.EffectiveApplicantEmail()),
	}, nil
}

// VerifyApplicant consumes an applicant verification token. Self-attested
// principals go straight to pending_review; otherwise the principal is asked to confirm.
func (s *Service) VerifyApplicant(ctx context.Context, rawToken string) (*VerifyResult, error) {
	purpose := models.PurposeApplicantVerification
	token, err := s.tokens.Lookup(ctx, rawToken, purpose)
	if err != nil {
		recordConsumption(purpose, err)
		return nil, err
	}

	result := &VerifyResult{}
	app, err := s.mutate(ctx, token.ApplicationID, func(u *unit, app *models.SchoolApplication) error {
		if _, err := u.tokens.Consume(ctx, rawToken, purpose); err != nil {
			return err
		}

		now := s.now().UTC()
		entry := TimelineEntry{Type: models.EventEmailVerified, Actor: app.ContactEmail}

		if app.IsPrincipal {
			if err := u.transition(app, models.StatusPendingReview, entry, Change{ApplicantVerifiedAt: &now}); err != nil {
				return err
			}
			s.queueReviewNotices(u, app)
			return nil
		}

		if err := u.transition(app, models.StatusAwaitingPrincipalConfirmation, entry, Change{ApplicantVerifiedAt: &now}); err != nil {
			return err
		}
		raw, confirmation, err := u.tokens.Issue(ctx, app.ID, models.PurposePrincipalConfirmation)
		if err != nil {
			return err
		}
		u.notify(app.ID, notifications.TemplatePrincipalConfirmation, app.PrincipalEmail, s.tokenVars(app, raw, confirmation))
		result.PrincipalEmailHint = privacy.MaskEmail(app.PrincipalEmail)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Status = app.Status
	return result, nil
}

// ConfirmPrincipal consumes a principal confirmation token and queues the application for review.
func (s *Service) ConfirmPrincipal(ctx context.Context, rawToken string) (*ConfirmResult, error) {
	purpose := models.PurposePrincipalConfirmation
	token, err := s.tokens.Lookup(ctx, rawToken, purpose)
	if err != nil {
		recordConsumption(purpose, err)
		return nil, err
	}

	app, err := s.mutate(ctx, token.ApplicationID, func(u *unit, app *models.SchoolApplication) error {
		if _, err := u.tokens.Consume(ctx, rawToken, purpose); err != nil {
			return err
		}
		now := s.now().UTC()
		entry := TimelineEntry{Type: models.EventPrincipalConfirmed, Actor: models.NormalizeEmail(app.PrincipalEmail)}
		if err := u.transition(app, models.StatusPendingReview, entry, Change{PrincipalConfirmedAt: &now}); err != nil {
			return err
		}
		s.queueReviewNotices(u, app)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{Status: app.Status}, nil
}

// PrincipalView shows the principal what they are asked to confirm without consuming the token.
func (s *Service) PrincipalView(ctx context.Context, rawToken string) (*PrincipalView, error) {
	token, err := s.tokens.Peek(ctx, rawToken, models.PurposePrincipalConfirmation)
	if err != nil {
		return nil, err
	}
	app, err := s.ledger.Get(ctx, token.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusAwaitingPrincipalConfirmation {
		return nil, ErrInvalidTransition
	}

	country, _ := CountryName(app.CountryCode)
	view := &PrincipalView{
		ApplicationID:   app.ID,
		SchoolName:      app.SchoolName,
		SchoolType:      app.SchoolType,
		City:            app.City,
		CountryCode:     app.CountryCode,
		CountryName:     country,
		PrincipalName:   app.PrincipalName,
		ApplicantName:   app.EffectiveApplicantName(),
		AdminChoice:     app.AdminChoice,
		DesignatedAdmin: app.DesignatedAdminName(),
		SubmittedAt:     app.SubmittedAt,
		ExpiresAt:       token.ExpiresAt,
	}
	if app.ApplicantRole != nil {
		view.ApplicantRole = *app.ApplicantRole
	}
	return view, nil
}

// ResendVerification reissues the pending token when email matches the contact
// for that step. Unknown ids and mismatched emails are indistinguishable.
func (s *Service) ResendVerification(ctx context.Context, applicationID, email string) (*ResendResult, error) {
	if models.NormalizeEmail(email) == "" {
		return nil, ErrApplicationNotFound
	}

	var result *ResendResult
	_, err := s.mutate(ctx, applicationID, func(u *unit, app *models.SchoolApplication) error {
		purpose, awaiting := models.PurposeForStatus(app.Status)
		if !awaiting {
			if app.MatchesContactEmail(email) || app.MatchesPrincipalEmail(email) {
				return ErrInvalidTransition.WithMessage("This application has already been verified")
			}
			return ErrApplicationNotFound
		}

		recipient := app.EffectiveApplicantEmail()
		template := notifications.TemplateApplicantVerification
		matches := app.MatchesContactEmail(email)
		if purpose == models.PurposePrincipalConfirmation {
			recipient = app.PrincipalEmail
			template = notifications.TemplatePrincipalConfirmation
			matches = app.MatchesPrincipalEmail(email)
		}
		if !matches {
			return ErrApplicationNotFound
		}

		raw, token, err := u.tokens.Reissue(ctx, app, purpose)
		if err != nil {
			return err
		}
		u.notify(app.ID, template, recipient, s.tokenVars(app, raw, token))
		result = &ResendResult{
			Message:   "A new verification link has been sent.",
			ExpiresAt: token.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetStatus returns the applicant-facing progress view. A wrong email yields the
// same ErrApplicationNotFound as an unknown id.
func (s *Service) GetStatus(ctx context.Context, applicationID, email string) (*StatusView, error) {
	app, err := s.ledger.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !app.MatchesContactEmail(email) {
		return nil, ErrApplicationNotFound
	}

	events, err := s.timeline.ListFor(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	return buildStatusView(app, events), nil
}

// StartReview moves a queued application under review. Calling it on an
// application awaiting more information resumes the review.
func (s *Service) StartReview(ctx context.Context, applicationID, reviewer string) (*models.SchoolApplication, error) {
	reviewer, err := requireReviewer(reviewer)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, applicationID, func(u *unit, app *models.SchoolApplication) error {
		entry := TimelineEntry{Type: models.EventReviewStarted, Actor: reviewer}
		if app.Status == models.StatusMoreInfoRequested {
			entry.Type = models.EventMovedToReview
		}
		return u.transition(app, models.StatusUnderReview, entry, Change{})
	})
}

// RequestMoreInfo asks the applicant for additional information.
func (s *Service) RequestMoreInfo(ctx context.Context, applicationID, reviewer, message string) (*models.SchoolApplication, error) {
	reviewer, err := requireReviewer(reviewer)
	if err != nil {
		return nil, err
	}
	message, err = boundedText("message", message, MinInfoMessage, MaxInfoMessage)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, applicationID, func(u *unit, app *models.SchoolApplication) error {
		entry := TimelineEntry{
			Type:     models.EventInfoRequested,
			Actor:    reviewer,
			Metadata: map[string]any{"message": message},
		}
		if err := u.transition(app, models.StatusMoreInfoRequested, entry, Change{}); err != nil {
			return err
		}
		vars := s.baseVars(app)
		vars["message"] = message
		u.notify(app.ID, notifications.TemplateMoreInfoRequested, app.EffectiveApplicantEmail(), vars)
		return nil
	})
}

// Approve records a positive decision and provisions the school: the tenant
// and its administrator account are created in the same transaction as the
// status change, so a provisioning failure leaves the application under review.
func (s *Service) Approve(ctx context.Context, applicationID, reviewer string) (*ApproveResult, error) {
	reviewer, err := requireReviewer(reviewer)
	if err != nil {
		return nil, err
	}

	var provisioned *Provisioned
	app, err := s.mutate(ctx, applicationID, func(u *unit, app *models.SchoolApplication) error {
		if !app.Status.CanTransitionTo(models.StatusApproved) {
			return ErrInvalidTransition
		}

		var err error
		provisioned, err = u.provisioner.Provision(u.ctx, app)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		entry := TimelineEntry{
			Type:  models.EventDecisionMade,
			Label: "Application approved",
			Actor: reviewer,
			Metadata: map[string]any{
				"decision":      string(models.StatusApproved),
				"school_id":     provisioned.School.ID,
				"admin_user_id": provisioned.Admin.ID,
			},
		}
		if err := u.transition(app, models.StatusApproved, entry, Change{ReviewedAt: &now, ReviewedBy: &reviewer}); err != nil {
			return err
		}

		vars := s.baseVars(app)
		vars["admin_name"] = app.DesignatedAdminName()
		u.notify(app.ID, notifications.TemplateApproved, provisioned.Admin.Email, vars)

		credentials := s.baseVars(app)
		credentials["admin_name"] = app.DesignatedAdminName()
		credentials["login_email"] = provisioned.Admin.Email
		credentials["temporary_password"] = provisioned.TemporaryPassword
		credentials["login_link"] = s.link("/login", "", "")
		u.notify(app.ID, notifications.TemplateAdminCredentials, provisioned.Admin.Email, credentials)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("school provisioned",
		zap.String("application_id", app.ID),
		zap.String("school_id", provisioned.School.ID),
		zap.String("admin_user_id", provisioned.Admin.ID),
		zap.String("reviewer", reviewer),
	)
	return &ApproveResult{
		SchoolApplication: app,
		SchoolID:          provisioned.School.ID,
		AdminUserID:       provisioned.Admin.ID,
		Message:           "Application approved. School and admin account created successfully.",
	}, nil
}

// Reject records a negative decision with the reason shown to the applicant.
func (s *Service) Reject(ctx context.Context, applicationID, reviewer, reason string) (*models.SchoolApplication, error) {
	reviewer, err := requireReviewer(reviewer)
	if err != nil {
		return nil, err
	}
	reason, err = boundedText("reason", reason, MinRejectReason, MaxRejectReason)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, applicationID, func(u *unit, app *models.SchoolApplication) error {
		now := s.now().UTC()
		entry := TimelineEntry{
			Type:     models.EventDecisionMade,
			Label:    "Application rejected",
			Actor:    reviewer,
			Metadata: map[string]any{"decision": string(models.StatusRejected), "reason": reason},
		}
		change := Change{ReviewedAt: &now, ReviewedBy: &reviewer, DecisionReason: &reason}
		if err := u.transition(app, models.StatusRejected, entry, change); err != nil {
			return err
		}
		vars := s.baseVars(app)
		vars["reason"] = reason
		u.notify(app.ID, notifications.TemplateRejected, app.EffectiveApplicantEmail(), vars)
		return nil
	})
}

// AddNote attaches a reviewer-only note. It has no effect on status.
func (s *Service) AddNote(ctx context.Context, applicationID, author, note string) (*models.InternalNote, error) {
	author, err := requireReviewer(author)
	if err != nil {
		return nil, err
	}
	note, err = boundedText("note", note, MinNote, MaxNote)
	if err != nil {
		return nil, err
	}

	app, err := s.ledger.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return s.notes.Add(ctx, app.ID, author, note)
}

// ListApplications returns a filtered, sorted page of applications.
func (s *Service) ListApplications(ctx context.Context, filter ListFilter) (*ListResult, error) {
	if err := validator.ValidateStruct(filter); err != nil {
		return nil, validationError(err, validator.Message(err))
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.ErrValidation.WithMessage(fmt.Sprintf("unknown status %q", filter.Status))
	}

	filter = filter.normalized()
	items, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.SchoolApplication{}
	}
	return &ListResult{Items: items, Total: total, Page: filter.Page, PerPage: filter.PerPage}, nil
}

// GetDetail returns the application with its timeline and notes.
func (s *Service) GetDetail(ctx context.Context, applicationID string) (*Detail, error) {
	app, err := s.ledger.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	events, err := s.timeline.ListFor(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	notes, err := s.notes.ListFor(ctx, app.ID)
	if err != nil {
		return nil, err
	}

	country, _ := CountryName(app.CountryCode)
	return &Detail{
		Application: app,
		StatusLabel: StatusLabel(app.Status),
		CountryName: country,
		Timeline:    events,
		Notes:       notes,
	}, nil
}

// Stats summarises the review queue.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.ledger.Stats(ctx)
}

// Countries lists the supported countries.
func (s *Service) Countries() []Country {
	return SupportedCountries()
}

// mutate runs fn inside a transaction holding the application's lock and row,
// then publishes metrics and notifications once the transaction has committed.
func (s *Service) mutate(ctx context.Context, applicationID string, fn func(u *unit, app *models.SchoolApplication) error) (*models.SchoolApplication, error) {
	applicationID, err := canonicalID(applicationID)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		app *models.SchoolApplication
		u   *unit
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u = s.newUnit(ctx, tx)
		loaded, err := u.ledger.GetForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		app = loaded
		return fn(u, app)
	})
	release()
	if err != nil {
		return nil, storageError("apply transition", err)
	}

	s.flush(ctx, u)
	return app, nil
}

func (s *Service) lock(ctx context.Context, applicationID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	defer cancel()

	release, err := s.locks.acquire(lockCtx, applicationID)
	if err != nil {
		return nil, apperrors.ErrTransient.WithInternal(fmt.Errorf("registration: lock application %s: %w", applicationID, err))
	}
	return release, nil
}

// flush publishes the side effects of a committed unit. Notification failures
// are logged and counted, never retried.
func (s *Service) flush(ctx context.Context, u *unit) {
	if u == nil {
		return
	}
	for _, t := range u.transitions {
		metrics.ApplicationTransitions.WithLabelValues(statusLabel(t.from), string(t.to)).Inc()
		s.log.Debug("application transitioned",
			zap.String("application_id", t.applicationID),
			zap.String("from", string(t.from)),
			zap.String("to", string(t.to)),
		)
	}

	sendCtx := context.WithoutCancel(ctx)
	for _, n := range u.notices {
		if err := s.dispatcher.Send(sendCtx, n.template, n.to, n.vars); err != nil {
			metrics.NotificationsSent.WithLabelValues(n.template, "failed").Inc()
			s.log.Warn("notification dispatch failed",
				zap.String("application_id", n.applicationID),
				zap.String("template", n.template),
				zap.Error(err),
			)
			continue
		}
		metrics.NotificationsSent.WithLabelValues(n.template, "sent").Inc()
	}
}

func (s *Service) queueReviewNotices(u *unit, app *models.SchoolApplication) {
	vars := s.baseVars(app)
	u.notify(app.ID, notifications.TemplateSubmittedForReview, app.EffectiveApplicantEmail(), vars)

	country, _ := CountryName(app.CountryCode)
	for _, admin := range s.cfg.AdminEmails {
		adminVars := s.baseVars(app)
		adminVars["country"] = country
		u.notify(app.ID, notifications.TemplateAdminTriage, admin, adminVars)
	}
}

func (s *Service) baseVars(app *models.SchoolApplication) map[string]string {
	return map[string]string{
		"application_id": app.ID,
		"school_name":    app.SchoolName,
		"applicant_name": app.EffectiveApplicantName(),
		"principal_name": app.PrincipalName,
		"status_link":    s.link("/register/status", "id", app.ID),
		"register_link":  s.link("/register", "", ""),
	}
}

func (s *Service) tokenVars(app *models.SchoolApplication, raw string, token *models.VerificationToken) map[string]string {
	vars := s.baseVars(app)
	path := "/register/verify"
	if token.Purpose == models.PurposePrincipalConfirmation {
		path = "/register/confirm-principal"
	}
	vars["link"] = s.link(path, "token", raw)
	vars["expires_at"] = token.ExpiresAt.UTC().Format(expiryFormat)
	return vars
}

func (s *Service) link(path, key, value string) string {
	link := s.cfg.FrontendURL + path
	if key != "" {
		link += "?" + url.Values{key: {value}}.Encode()
	}
	return link
}

func requireReviewer(reviewer string) (string, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return "", ErrReviewerRequired
	}
	return reviewer, nil
}

func statusLabel(status models.ApplicationStatus) string {
	if status == "" {
		return "none"
	}
	return string(status)
}

// unit collects the transaction-bound components and the side effects a
// mutation produces.
type unit struct {
	ctx         context.Context
	ledger      *Ledger
	tokens      *TokenIssuer
	timeline    *TimelineRecorder
	provisioner *Provisioner
	transitions []transitionRecord
	notices     []notice
}

type transitionRecord struct {
	applicationID string
	from          models.ApplicationStatus
	to            models.ApplicationStatus
}

type notice struct {
	applicationID string
	template      string
	to            string
	vars          map[string]string
}

func (s *Service) newUnit(ctx context.Context, tx *gorm.DB) *unit {
	return &unit{
		ctx:         ctx,
		ledger:      s.ledger.WithTx(tx),
		tokens:      s.tokens.WithTx(tx),
		timeline:    s.timeline.WithTx(tx),
		provisioner: s.schools.WithTx(tx),
	}
}

// transition changes the status and appends the matching timeline event.
func (u *unit) transition(app *models.SchoolApplication, to models.ApplicationStatus, entry TimelineEntry, change Change) error {
	from := app.Status
	if err := u.ledger.Transition(u.ctx, app, to, change); err != nil {
		return err
	}
	return u.record(app, from, entry)
}

func (u *unit) record(app *models.SchoolApplication, from models.ApplicationStatus, entry TimelineEntry) error {
	entry.ApplicationID = app.ID
	entry.From = from
	entry.To = app.Status
	if _, err := u.timeline.Append(u.ctx, entry); err != nil {
		return err
	}
	u.transitions = append(u.transitions, transitionRecord{applicationID: app.ID, from: from, to: app.Status})
	return nil
}

func (u *unit) notify(applicationID, template, to string, vars map[string]string) {
	if strings.TrimSpace(to) == "" {
		return
	}
	u.notices = append(u.notices, notice{applicationID: applicationID, template: template, to: to, vars: vars})
}

package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/models"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/crypto"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/metrics"
)

const (
	defaultTokenTTL   = 72 * time.Hour
	defaultTokenBytes = 32
)

// TokenOption customises a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithTokenTTL overrides the token lifetime.
func WithTokenTTL(d time.Duration) TokenOption {
	return func(i *TokenIssuer) {
		if d > 0 {
			i.ttl = d
		}
	}
}

// WithTokenBytes adjusts the number of random bytes in generated tokens.
func WithTokenBytes(n int) TokenOption {
	return func(i *TokenIssuer) {
		if n > 0 {
			i.size = n
		}
	}
}

// WithTokenClock injects a custom time source.
func WithTokenClock(clock func() time.Time) TokenOption {
	return func(i *TokenIssuer) {
		if clock != nil {
			i.now = clock
		}
	}
}

// TokenIssuer generates, validates and invalidates single-use verification tokens.
// Raw token values are returned to the caller once; only their digest is stored.
type TokenIssuer struct {
	db   *gorm.DB
	ttl  time.Duration
	size int
	now  func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(db *gorm.DB, opts ...TokenOption) (*TokenIssuer, error) {
	if db == nil {
		return nil, errors.New("token issuer: db is required")
	}
	issuer := &TokenIssuer{
		db:   db,
		ttl:  defaultTokenTTL,
		size: defaultTokenBytes,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer, nil
}

// WithTx returns a copy of the issuer bound to tx.
func (i *TokenIssuer) WithTx(tx *gorm.DB) *TokenIssuer {
	cpy := *i
	cpy.db = tx
	return &cpy
}

// TTL reports the configured token lifetime.
func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Issue generates a fresh token for the application, revoking any live token of
// the same purpose so at most one is live per purpose.
func (i *TokenIssuer) Issue(ctx context.Context, applicationID string, purpose models.TokenPurpose) (string, *models.VerificationToken, error) {
	if !purpose.Valid() {
		return "", nil, fmt.Errorf("token issuer: unknown purpose %q", purpose)
	}

	now := i.now().UTC()
	return i.issue(ctx, &models.VerificationToken{
		ApplicationID: applicationID,
		Purpose:       purpose,
		IssuedAt:      now,
		ExpiresAt:     now.Add(i.ttl),
	})
}

// Rotate replaces a live token with a fresh value that keeps the original
// deadline and is marked as reminded. Raw values are never stored, so this is
// how a reminder obtains a usable link.
func (i *TokenIssuer) Rotate(ctx context.Context, current *models.VerificationToken) (string, *models.VerificationToken, error) {
	if current == nil || !current.Purpose.Valid() {
		return "", nil, ErrTokenInvalid
	}
	now := i.now().UTC()
	if !current.Live(now) {
		return "", nil, classifyToken(current, now)
	}
	return i.issue(ctx, &models.VerificationToken{
		ApplicationID:  current.ApplicationID,
		Purpose:        current.Purpose,
		IssuedAt:       now,
		ExpiresAt:      current.ExpiresAt,
		ReminderSentAt: &now,
	})
}

func (i *TokenIssuer) issue(ctx context.Context, token *models.VerificationToken) (string, *models.VerificationToken, error) {
	raw, err := crypto.GenerateToken(i.size)
	if err != nil {
		return "", nil, fmt.Errorf("token issuer: generate token: %w", err)
	}

	if err := i.revokeLive(ctx, token.ApplicationID, token.Purpose, token.IssuedAt); err != nil {
		return "", nil, err
	}

	token.TokenHash = crypto.HashToken(raw)
	if err := i.db.WithContext(ctx).Create(token).Error; err != nil {
		return "", nil, storageError("create token", err)
	}
	return raw, token, nil
}

// Reissue is the resend path: it is only permitted while the application is
// still awaiting the step the purpose corresponds to.
func (i *TokenIssuer) Reissue(ctx context.Context, app *models.SchoolApplication, purpose models.TokenPurpose) (string, *models.VerificationToken, error) {
	if app == nil {
		return "", nil, ErrApplicationNotFound
	}
	if app.Status != purpose.AwaitingStatus() {
		return "", nil, ErrInvalidTransition
	}
	return i.Issue(ctx, app.ID, purpose)
}

// Lookup resolves a raw token of the given purpose without checking its state.
func (i *TokenIssuer) Lookup(ctx context.Context, raw string, purpose models.TokenPurpose) (*models.VerificationToken, error) {
	return i.find(ctx, raw, purpose, false)
}

// Peek returns the token when it is live, and the consumption error it would
// produce otherwise. It never marks the token.
func (i *TokenIssuer) Peek(ctx context.Context, raw string, purpose models.TokenPurpose) (*models.VerificationToken, error) {
	token, err := i.find(ctx, raw, purpose, false)
	if err != nil {
		return nil, err
	}
	if err := classifyToken(token, i.now()); err != nil {
		return nil, err
	}
	return token, nil
}

// Consume marks a live token as used and returns it. A revoked or unknown token
// yields ErrTokenInvalid, a used one ErrTokenAlreadyUsed and a lapsed one ErrTokenExpired.
func (i *TokenIssuer) Consume(ctx context.Context, raw string, purpose models.TokenPurpose) (*models.VerificationToken, error) {
	token, err := i.find(ctx, raw, purpose, true)
	if err != nil {
		recordConsumption(purpose, err)
		return nil, err
	}

	now := i.now().UTC()
	if err := classifyToken(token, now); err != nil {
		recordConsumption(purpose, err)
		return nil, err
	}

	res := i.db.WithContext(ctx).
		Model(&models.VerificationToken{}).
		Where("id = ? AND consumed_at IS NULL AND revoked_at IS NULL", token.ID).
		Update("consumed_at", now)
	if res.Error != nil {
		return nil, storageError("consume token", res.Error)
	}
	if res.RowsAffected != 1 {
		recordConsumption(purpose, ErrTokenAlreadyUsed)
		return nil, ErrTokenAlreadyUsed
	}

	token.ConsumedAt = &now
	recordConsumption(purpose, nil)
	return token, nil
}

// LatestLive returns the live token of the given purpose for the application, if any.
func (i *TokenIssuer) LatestLive(ctx context.Context, applicationID string, purpose models.TokenPurpose) (*models.VerificationToken, error) {
	var token models.VerificationToken
	err := i.db.WithContext(ctx).
		Where("application_id = ? AND purpose = ? AND consumed_at IS NULL AND revoked_at IS NULL", applicationID, purpose).
		Order("issued_at DESC").
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("load live token", err)
	}
	return &token, nil
}

// RevokeAll invalidates every unconsumed token of the application.
func (i *TokenIssuer) RevokeAll(ctx context.Context, applicationID string) error {
	return i.revoke(ctx, i.now().UTC(), "application_id = ?", applicationID)
}

// DueReminders lists live tokens issued before cutoff that have not had a reminder.
func (i *TokenIssuer) DueReminders(ctx context.Context, cutoff time.Time) ([]models.VerificationToken, error) {
	var tokens []models.VerificationToken
	err := i.db.WithContext(ctx).
		Where("consumed_at IS NULL AND revoked_at IS NULL AND reminder_sent_at IS NULL").
		Where("issued_at <= ? AND expires_at > ?", cutoff, i.now().UTC()).
		Order("issued_at ASC").
		Find(&tokens).Error
	if err != nil {
		return nil, storageError("list due reminders", err)
	}
	return tokens, nil
}

// Lapsed lists unconsumed, unrevoked tokens whose deadline has passed.
func (i *TokenIssuer) Lapsed(ctx context.Context) ([]models.VerificationToken, error) {
	var tokens []models.VerificationToken
	err := i.db.WithContext(ctx).
		Where("consumed_at IS NULL AND revoked_at IS NULL AND expires_at <= ?", i.now().UTC()).
		Order("expires_at ASC").
		Find(&tokens).Error
	if err != nil {
		return nil, storageError("list lapsed tokens", err)
	}
	return tokens, nil
}

func (i *TokenIssuer) find(ctx context.Context, raw string, purpose models.TokenPurpose, lock bool) (*models.VerificationToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	query := i.db.WithContext(ctx)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var token models.VerificationToken
	err := query.Where("token_hash = ?", crypto.HashToken(raw)).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, storageError("find token", err)
	}
	if token.Purpose != purpose {
		return nil, ErrTokenInvalid
	}
	return &token, nil
}

func (i *TokenIssuer) revokeLive(ctx context.Context, applicationID string, purpose models.TokenPurpose, now time.Time) error {
	return i.revoke(ctx, now, "application_id = ? AND purpose = ?", applicationID, purpose)
}

func (i *TokenIssuer) revoke(ctx context.Context, now time.Time, query string, args ...any) error {
	err := i.db.WithContext(ctx).
		Model(&models.VerificationToken{}).
		Where(query, args...).
		Where("consumed_at IS NULL AND revoked_at IS NULL").
		Update("revoked_at", now).Error
	if err != nil {
		return storageError("revoke tokens", err)
	}
	return nil
}

func classifyToken(token *models.VerificationToken, now time.Time) error {
	switch {
	case token.RevokedAt != nil:
		return ErrTokenInvalid
	case token.ConsumedAt != nil:
		return ErrTokenAlreadyUsed
	case !now.Before(token.ExpiresAt):
		return ErrTokenExpired
	default:
		return nil
	}
}

func recordConsumption(purpose models.TokenPurpose, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrTokenExpired):
		result = "expired"
	case errors.Is(err, ErrTokenAlreadyUsed):
		result = "used"
	case errors.Is(err, ErrTokenInvalid):
		result = "invalid"
	default:
		result = "error"
	}
	metrics.TokenConsumptions.WithLabelValues(string(purpose), result).Inc()
}

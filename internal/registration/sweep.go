package registration

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/models"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/notifications"
)

// Expiry reasons recorded in the timeline metadata.
const (
	ExpiryReasonTokenLapsed = "token_lapsed"
	ExpiryReasonMaxAge      = "submission_max_age"
)

// ExpireStale transitions applications whose pending token lapsed unconsumed
// and, when a maximum submission age is configured, any non-terminal
// application older than it. It returns the number of applications expired.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	var (
		expired int
		errs    error
	)

	lapsed, err := s.tokens.Lapsed(ctx)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(lapsed))
	for _, token := range lapsed {
		if _, dup := seen[token.ApplicationID]; dup {
			continue
		}
		seen[token.ApplicationID] = struct{}{}

		purpose := token.Purpose
		ok, err := s.expire(ctx, token.ApplicationID, ExpiryReasonTokenLapsed, func(u *unit, app *models.SchoolApplication) (bool, error) {
			if app.Status != purpose.AwaitingStatus() {
				return false, nil
			}
			live, err := u.tokens.LatestLive(ctx, app.ID, purpose)
			if err != nil {
				return false, err
			}
			return live == nil || !live.Live(s.now()), nil
		})
		errs = multierr.Append(errs, err)
		if ok {
			expired++
		}
	}

	if s.cfg.SubmissionMaxAge > 0 {
		stale, err := s.ledger.Stale(ctx, s.now().UTC().Add(-s.cfg.SubmissionMaxAge))
		if err != nil {
			return expired, multierr.Append(errs, err)
		}
		for _, app := range stale {
			if _, dup := seen[app.ID]; dup {
				continue
			}
			ok, err := s.expire(ctx, app.ID, ExpiryReasonMaxAge, func(_ *unit, current *models.SchoolApplication) (bool, error) {
				return !current.SubmittedAt.After(s.now().UTC().Add(-s.cfg.SubmissionMaxAge)), nil
			})
			errs = multierr.Append(errs, err)
			if ok {
				expired++
			}
		}
	}

	return expired, errs
}

// expire moves one application to expired under its lock when guard agrees.
func (s *Service) expire(ctx context.Context, applicationID, reason string, guard func(*unit, *models.SchoolApplication) (bool, error)) (bool, error) {
	var changed bool
	_, err := s.mutate(ctx, applicationID, func(u *unit, app *models.SchoolApplication) error {
		if app.Status.Terminal() {
			return nil
		}
		ok, err := guard(u, app)
		if err != nil || !ok {
			return err
		}

		entry := TimelineEntry{
			Type:     models.EventExpired,
			Actor:    "system",
			Metadata: map[string]any{"reason": reason},
		}
		if err := u.transition(app, models.StatusExpired, entry, Change{}); err != nil {
			return err
		}
		if err := u.tokens.RevokeAll(ctx, app.ID); err != nil {
			return err
		}
		u.notify(app.ID, notifications.TemplateExpired, app.EffectiveApplicantEmail(), s.baseVars(app))
		changed = true
		return nil
	})
	if errors.Is(err, ErrApplicationNotFound) {
		return false, nil
	}
	return changed, err
}

// SendReminders emails one reminder per pending token once it is older than the
// configured reminder delay. The reminder carries a rotated token with the same
// deadline, so each step is reminded at most once.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	due, err := s.tokens.DueReminders(ctx, s.now().UTC().Add(-s.cfg.ReminderAfter))
	if err != nil {
		return 0, err
	}

	var (
		sent int
		errs error
	)
	for _, token := range due {
		var reminded bool
		_, err := s.mutate(ctx, token.ApplicationID, func(u *unit, app *models.SchoolApplication) error {
			if app.Status != token.Purpose.AwaitingStatus() {
				return nil
			}
			live, err := u.tokens.LatestLive(ctx, app.ID, token.Purpose)
			if err != nil {
				return err
			}
			if live == nil || live.ID != token.ID || live.ReminderSentAt != nil {
				return nil
			}
			raw, rotated, err := u.tokens.Rotate(ctx, live)
			if errors.Is(err, ErrTokenExpired) {
				return nil
			}
			if err != nil {
				return err
			}

			template, recipient := notifications.TemplateVerificationReminder, app.EffectiveApplicantEmail()
			if token.Purpose == models.PurposePrincipalConfirmation {
				template, recipient = notifications.TemplateConfirmationReminder, app.PrincipalEmail
			}
			u.notify(app.ID, template, recipient, s.tokenVars(app, raw, rotated))
			reminded = true
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			s.log.Warn("reminder failed", zap.String("application_id", token.ApplicationID), zap.Error(err))
			continue
		}
		if reminded {
			sent++
		}
	}
	return sent, errs
}

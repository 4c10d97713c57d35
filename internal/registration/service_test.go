package registration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/models"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/notifications"
	apperrors "github.com/EL-KENDEH-TEAM/EK-SMS/pkg/errors"
)

const reviewer = "reviewer@eksms.test"

func TestSelfAttestedPrincipalGoesStraightToPendingReview(t *testing.T) {
	env := newTestEnv(t, Config{AdminEmails: []string{"triage@eksms.test"}})
	ctx := context.Background()

	res, err := env.svc.Submit(ctx, principalSubmission("Harbel Mission School", "head@harbel.edu.lr"))
	require.NoError(t, err)
	require.Equal(t, models.StatusAwaitingApplicantVerification, res.Status)
	require.Equal(t, "h***@harbel.edu.lr", res.MaskedEmail)
	require.Equal(t, "head@harbel.edu.lr", env.dispatcher.last(t, notifications.TemplateApplicantVerification).to)

	verified, err := env.svc.VerifyApplicant(ctx, env.dispatcher.token(t, notifications.TemplateApplicantVerification))
	require.NoError(t, err)
	require.Equal(t, models.StatusPendingReview, verified.Status)
	require.Empty(t, verified.PrincipalEmailHint)

	var tokens int64
	require.NoError(t, env.db.Model(&models.VerificationToken{}).Where("application_id = ?", res.ID).Count(&tokens).Error)
	require.EqualValues(t, 1, tokens, "no principal confirmation token is issued")
	require.Zero(t, env.dispatcher.count(notifications.TemplatePrincipalConfirmation))
	require.Equal(t, 1, env.dispatcher.count(notifications.TemplateSubmittedForReview))
	require.Equal(t, "triage@eksms.test", env.dispatcher.last(t, notifications.TemplateAdminTriage).to)

	app := env.application(t, res.ID)
	require.NotNil(t, app.ApplicantVerifiedAt)
	events := env.events(t, res.ID)
	require.Equal(t, []models.TimelineEventType{models.EventSubmitted, models.EventEmailVerified}, eventTypes(events))
	requireConsistentHistory(t, app, events)
}

func TestDelegatedApplicantRequiresPrincipalConfirmation(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	res, err := env.svc.Submit(ctx, delegatedSubmission("Kakata Public School", "Musu@Example.com", "head@kakata.edu.lr"))
	require.NoError(t, err)
	require.Equal(t, "M***@Example.com", res.MaskedEmail)

	verified, err := env.svc.VerifyApplicant(ctx, env.dispatcher.token(t, notifications.TemplateApplicantVerification))
	require.NoError(t, err)
	require.Equal(t, models.StatusAwaitingPrincipalConfirmation, verified.Status)
	require.Equal(t, "h***@kakata.edu.lr", verified.PrincipalEmailHint)

	confirmation := env.dispatcher.last(t, notifications.TemplatePrincipalConfirmation)
	require.Equal(t, "head@kakata.edu.lr", confirmation.to)
	require.Contains(t, confirmation.vars["link"], "https://eksms.test/register/confirm-principal?token=")

	confirmed, err := env.svc.ConfirmPrincipal(ctx, env.dispatcher.token(t, notifications.TemplatePrincipalConfirmation))
	require.NoError(t, err)
	require.Equal(t, models.StatusPendingReview, confirmed.Status)

	app := env.application(t, res.ID)
	require.NotNil(t, app.PrincipalConfirmedAt)
	require.Equal(t, "musu@example.com", app.ContactEmail)
	events := env.events(t, res.ID)
	require.Equal(t, []models.TimelineEventType{
		models.EventSubmitted,
		models.EventEmailVerified,
		models.EventPrincipalConfirmed,
	}, eventTypes(events))
	requireConsistentHistory(t, app, events)
}

func TestConsumingTokenTwiceReturnsAlreadyUsed(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	res, err := env.svc.Submit(ctx, delegatedSubmission("Gbarnga High", "musu@example.com", "head@gbarnga.edu.lr"))
	require.NoError(t, err)
	raw := env.dispatcher.token(t, notifications.TemplateApplicantVerification)

	_, err = env.svc.VerifyApplicant(ctx, raw)
	require.NoError(t, err)
	before := env.application(t, res.ID)
	eventsBefore := len(env.events(t, res.ID))

	_, err = env.svc.VerifyApplicant(ctx, raw)
	require.ErrorIs(t, err, ErrTokenAlreadyUsed)

	after := env.application(t, res.ID)
	require.Equal(t, before.Status, after.Status)
	require.Len(t, env.events(t, res.ID), eventsBefore)
}

func TestUnknownAndMistypedTokensAreInvalid(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	_, err := env.svc.VerifyApplicant(ctx, "not-a-token")
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = env.svc.VerifyApplicant(ctx, "   ")
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = env.svc.Submit(ctx, principalSubmission("Zwedru School", "head@zwedru.edu.lr"))
	require.NoError(t, err)

	// An applicant token cannot be used to confirm as principal.
	_, err = env.svc.ConfirmPrincipal(ctx, env.dispatcher.token(t, notifications.TemplateApplicantVerification))
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestExpiredTokenFailsWithoutMutatingState(t *testing.T) {
	env := newTestEnv(t, Config{TokenTTL: time.Hour})
	ctx := context.Background()

	res, err := env.svc.Submit(ctx, principalSubmission("Voinjama School", "head@voinjama.edu.lr"))
	require.NoError(t, err)
	raw := env.dispatcher.token(t, notifications.TemplateApplicantVerification)

	env.clock.Advance(time.Hour)

	_, err = env.svc.VerifyApplicant(ctx, raw)
	require.ErrorIs(t, err, ErrTokenExpired)

	app := env.application(t, res.ID)
	require.Equal(t, models.StatusAwaitingApplicantVerification, app.Status)
	require.Nil(t, app.ApplicantVerifiedAt)
	require.Len(t, env.events(t, res.ID), 1)

	var token models.VerificationToken
	require.NoError(t, env.db.Where("application_id = ?", res.ID).First(&token).Error)
	require.Nil(t, token.ConsumedAt)
}

func TestDuplicateActiveEmailConflictsUntilTerminal(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	first, err := env.svc.Submit(ctx, delegatedSubmission("Buchanan Academy", "musu@example.com", "head@buchanan.edu.lr"))
	require.NoError(t, err)

	_, err = env.svc.Submit(ctx, delegatedSubmission("Harper Academy", " MUSU@example.com ", "head@harper.edu.lr"))
	require.ErrorIs(t, err, apperrors.ErrConflict)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Contains(t, strings.ToLower(appErr.Message), "m***@example.com")
	var pending int64
	require.NoError(t, env.db.Model(&models.SchoolApplication{}).Count(&pending).Error)
	require.EqualValues(t, 1, pending)

	// Drive the first application to a terminal state.
	_, err = env.svc.VerifyApplicant(ctx, env.dispatcher.token(t, notifications.TemplateApplicantVerification))
	require.NoError(t, err)
	_, err = env.svc.ConfirmPrincipal(ctx, env.dispatcher.token(t, notifications.TemplatePrincipalConfirmation))
	require.NoError(t, err)
	_, err = env.svc.StartReview(ctx, first.ID, reviewer)
	require.NoError(t, err)
	_, err = env.svc.Reject(ctx, first.ID, reviewer, "The school registration documents could not be verified.")
	require.NoError(t, err)

	require.Nil(t, env.application(t, first.ID).ActiveEmailKey)

	second, err := env.svc.Submit(ctx, delegatedSubmission("Harper Academy", "musu@example.com", "head@harper.edu.lr"))
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
}

func TestDuplicateActiveSchoolInSameCityConflicts(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	_, err := env.svc.Submit(ctx, principalSubmission("Harbel Mission School", "head@harbel.edu.lr"))
	require.NoError(t, err)

	_, err = env.svc.Submit(ctx, principalSubmission("harbel mission school", "deputy@harbel.edu.lr"))
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestGetStatusWrongEmailMatchesUnknownID(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	res, err := env.svc.Submit(ctx, delegatedSubmission("Tubmanburg School", "musu@example.com", "head@tubmanburg.edu.lr"))
	require.NoError(t, err)

	view, err := env.svc.GetStatus(ctx, res.ID, "MUSU@example.com")
	require.NoError(t, err)
	require.Equal(t, models.StatusAwaitingApplicantVerification, view.Status)
	require.Equal(t, StatusLabel(models.StatusAwaitingApplicantVerification), view.StatusLabel)
	require.Len(t, view.Steps, 5)
	require.True(t, view.Steps[0].Completed)
	require.False(t, view.Steps[1].Completed)

	_, wrongEmail := env.svc.GetStatus(ctx, res.ID, "head@tubmanburg.edu.lr")
	_, unknownID := env.svc.GetStatus(ctx, "8a1f1d5e-4a4b-4c59-a9a4-000000000000", "musu@example.com")
	require.ErrorIs(t, wrongEmail, apperrors.ErrNotFound)
	require.Equal(t, unknownID, wrongEmail)
	require.Equal(t, unknownID.Error(), wrongEmail.Error())
}

func TestStatusStepsForSelfAttestedPrincipal(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	id := env.underReview(t, "Ganta United School", "head@ganta.edu.lr")

	view, err := env.svc.GetStatus(ctx, id, "head@ganta.edu.lr")
	require.NoError(t, err)

	completed := map[string]bool{}
	for _, step := range view.Steps {
		completed[step.Key] = step.Completed
	}
	require.Equal(t, map[string]bool{
		StepSubmitted:          true,
		StepEmailVerified:      true,
		StepPrincipalConfirmed: true,
		StepUnderReview:        true,
		StepDecision:           false,
	}, completed)
}

func TestConcurrentApproveAndRejectExactlyOneWins(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	id := env.underReview(t, "Robertsport School", "head@robertsport.edu.lr")

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]error, 2)
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, results[0] = env.svc.Approve(ctx, id, "alice@eksms.test")
	}()
	go func() {
		defer wg.Done()
		<-start
		_, results[1] = env.svc.Reject(ctx, id, "bob@eksms.test", "Insufficient documentation provided for accreditation.")
	}()
	close(start)
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, apperrors.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, conflicts)

	app := env.application(t, id)
	require.Contains(t, []models.ApplicationStatus{models.StatusApproved, models.StatusRejected}, app.Status)

	decisions := 0
	events := env.events(t, id)
	for _, e := range events {
		if e.EventType == models.EventDecisionMade {
			decisions++
		}
	}
	require.Equal(t, 1, decisions)
	requireConsistentHistory(t, app, events)
}

func TestRequestMoreInfoAndResumeReview(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	id := env.underReview(t, "Sanniquellie School", "head@sanniquellie.edu.lr")

	app, err := env.svc.RequestMoreInfo(ctx, id, reviewer, "  need transcript  ")
	require.NoError(t, err)
	require.Equal(t, models.StatusMoreInfoRequested, app.Status)

	events := env.events(t, id)
	last := events[len(events)-1]
	require.Equal(t, models.EventInfoRequested, last.EventType)
	require.Equal(t, "need transcript", last.Metadata["message"])
	require.Equal(t, reviewer, last.Actor)

	notice := env.dispatcher.last(t, notifications.TemplateMoreInfoRequested)
	require.Equal(t, "head@sanniquellie.edu.lr", notice.to)
	require.Equal(t, "need transcript", notice.vars["message"])

	app, err = env.svc.StartReview(ctx, id, reviewer)
	require.NoError(t, err)
	require.Equal(t, models.StatusUnderReview, app.Status)

	events = env.events(t, id)
	require.Equal(t, models.EventMovedToReview, events[len(events)-1].EventType)
	requireConsistentHistory(t, env.application(t, id), events)
}

func TestAdminInputBounds(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	id := env.underReview(t, "Greenville School", "head@greenville.edu.lr")

	_, err := env.svc.RequestMoreInfo(ctx, id, reviewer, "short")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = env.svc.Reject(ctx, id, reviewer, "too short")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = env.svc.AddNote(ctx, id, reviewer, "   ")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = env.svc.Approve(ctx, id, "  ")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	require.Equal(t, models.StatusUnderReview, env.application(t, id).Status)
}

func TestInvalidTransitionsConflictAndLeaveStateUnchanged(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	id := env.reviewReady(t, "Cestos School", "head@cestos.edu.lr")

	_, err := env.svc.Approve(ctx, id, reviewer)
	require.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = env.svc.RequestMoreInfo(ctx, id, reviewer, "please send your permit")
	require.ErrorIs(t, err, apperrors.ErrConflict)

	app := env.application(t, id)
	require.Equal(t, models.StatusPendingReview, app.Status)
	require.Nil(t, app.ReviewedBy)
	require.Len(t, env.events(t, id), 2)

	_, err = env.svc.StartReview(ctx, "missing", reviewer)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestApproveRecordsReviewerAndNotifiesDesignatedAdmin(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	in := delegatedSubmission("Bopolu School", "musu@example.com", "head@bopolu.edu.lr")
	in.Applicant.AdminChoice = models.AdminChoicePrincipal
	res, err := env.svc.Submit(ctx, in)
	require.NoError(t, err)
	_, err = env.svc.VerifyApplicant(ctx, env.dispatcher.token(t, notifications.TemplateApplicantVerification))
	require.NoError(t, err)
	_, err = env.svc.ConfirmPrincipal(ctx, env.dispatcher.token(t, notifications.TemplatePrincipalConfirmation))
	require.NoError(t, err)
	_, err = env.svc.StartReview(ctx, res.ID, reviewer)
	require.NoError(t, err)

	app, err := env.svc.Approve(ctx, res.ID, reviewer)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, app.Status)
	require.NotNil(t, app.ReviewedAt)
	require.Equal(t, reviewer, *app.ReviewedBy)
	require.Nil(t, app.DecisionReason)

	notice := env.dispatcher.last(t, notifications.TemplateApproved)
	require.Equal(t, "head@bopolu.edu.lr", notice.to)
	require.Equal(t, "Joseph Doe", notice.vars["admin_name"])

	stored := env.application(t, res.ID)
	require.Nil(t, stored.ActiveEmailKey)
	require.Equal(t, reviewer, *stored.ReviewedBy)
}

func TestRejectStoresReason(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	id := env.underReview(t, "Fish Town School", "head@fishtown.edu.lr")

	reason := "The accreditation certificate provided has expired."
	app, err := env.svc.Reject(ctx, id, reviewer, reason)
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, app.Status)

	stored := env.application(t, id)
	require.Equal(t, reason, *stored.DecisionReason)

	events := env.events(t, id)
	last := events[len(events)-1]
	require.Equal(t, "Application rejected", last.Label)
	require.Equal(t, reason, last.Metadata["reason"])
	require.Equal(t, reason, env.dispatcher.last(t, notifications.TemplateRejected).vars["reason"])

	_, err = env.svc.StartReview(ctx, id, reviewer)
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestResendInvalidatesPreviousToken(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	res, err := env.svc.Submit(ctx, delegatedSubmission("Careysburg School", "musu@example.com", "head@careysburg.edu.lr"))
	require.NoError(t, err)
	oldToken := env.dispatcher.token(t, notifications.TemplateApplicantVerification)

	env.clock.Advance(time.Hour)
	resent, err := env.svc.ResendVerification(ctx, res.ID, "Musu@Example.com")
	require.NoError(t, err)
	require.Equal(t, env.clock.Now().Add(defaultTokenTTL), resent.ExpiresAt)
	newToken := env.dispatcher.token(t, notifications.TemplateApplicantVerification)
	require.NotEqual(t, oldToken, newToken)

	_, err = env.svc.VerifyApplicant(ctx, oldToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
	require.Equal(t, models.StatusAwaitingApplicantVerification, env.application(t, res.ID).Status)

	verified, err := env.svc.VerifyApplicant(ctx, newToken)
	require.NoError(t, err)
	require.Equal(t, models.StatusAwaitingPrincipalConfirmation, verified.Status)
}

func TestResendVerificationGuards(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	res, err := env.svc.Submit(ctx, delegatedSubmission("Kle School", "musu@example.com", "head@kle.edu.lr"))
	require.NoError(t, err)

	_, err = env.svc.ResendVerification(ctx, res.ID, "stranger@example.com")
	require.ErrorIs(t, err, ErrApplicationNotFound)
	_, err = env.svc.ResendVerification(ctx, "unknown-id", "musu@example.com")
	require.ErrorIs(t, err, ErrApplicationNotFound)

	_, err = env.svc.VerifyApplicant(ctx, env.dispatcher.token(t, notifications.TemplateApplicantVerification))
	require.NoError(t, err)

	// The pending step is now principal confirmation, keyed by the principal email.
	_, err = env.svc.ResendVerification(ctx, res.ID, "musu@example.com")
	require.ErrorIs(t, err, ErrApplicationNotFound)
	resent, err := env.svc.ResendVerification(ctx, res.ID, "HEAD@kle.edu.lr")
	require.NoError(t, err)
	require.NotEmpty(t, resent.Message)
	require.Equal(t, "head@kle.edu.lr", env.dispatcher.last(t, notifications.TemplatePrincipalConfirmation).to)

	_, err = env.svc.ConfirmPrincipal(ctx, env.dispatcher.token(t, notifications.TemplatePrincipalConfirmation))
	require.NoError(t, err)

	_, err = env.svc.ResendVerification(ctx, res.ID, "musu@example.com")
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestPrincipalViewDoesNotConsumeToken(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	res, err := env.svc.Submit(ctx, delegatedSubmission("Pleebo School", "musu@example.com", "head@pleebo.edu.lr"))
	require.NoError(t, err)
	_, err = env.svc.VerifyApplicant(ctx, env.dispatcher.token(t, notifications.TemplateApplicantVerification))
	require.NoError(t, err)
	raw := env.dispatcher.token(t, notifications.TemplatePrincipalConfirmation)

	view, err := env.svc.PrincipalView(ctx, raw)
	require.NoError(t, err)
	require.Equal(t, res.ID, view.ApplicationID)
	require.Equal(t, "Musu Kollie", view.ApplicantName)
	require.Equal(t, "Registrar", view.ApplicantRole)
	require.Equal(t, "Liberia", view.CountryName)
	require.Equal(t, "Musu Kollie", view.DesignatedAdmin)

	_, err = env.svc.PrincipalView(ctx, raw)
	require.NoError(t, err)

	_, err = env.svc.ConfirmPrincipal(ctx, raw)
	require.NoError(t, err)

	_, err = env.svc.PrincipalView(ctx, raw)
	require.ErrorIs(t, err, ErrTokenAlreadyUsed)
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	env := newTestEnv(t, Config{}, WithLogger(zap.New(core)))
	env.dispatcher.err = errors.New("smtp unavailable")
	ctx := context.Background()

	res, err := env.svc.Submit(ctx, principalSubmission("Barclayville School", "head@barclayville.edu.lr"))
	require.NoError(t, err)
	require.Equal(t, models.StatusAwaitingApplicantVerification, env.application(t, res.ID).Status)

	entries := logs.FilterMessage("notification dispatch failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, res.ID, fields["application_id"])
	require.Equal(t, notifications.TemplateApplicantVerification, fields["template"])
	require.Equal(t, 1, env.dispatcher.count(notifications.TemplateApplicantVerification), "no retry")
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	cases := map[string]func(*SubmitInput){
		"missing school name":     func(in *SubmitInput) { in.School.Name = " " },
		"unknown school type":     func(in *SubmitInput) { in.School.Type = "charter" },
		"year in the future":      func(in *SubmitInput) { in.School.YearEstablished = 2099 },
		"unsupported country":     func(in *SubmitInput) { in.Location.CountryCode = "US" },
		"no school channel":       func(in *SubmitInput) { in.Contact.SchoolEmail, in.Contact.SchoolPhone = "", "" },
		"bad principal email":     func(in *SubmitInput) { in.Contact.PrincipalEmail = "not-an-email" },
		"missing applicant email": func(in *SubmitInput) { in.Applicant.Email = "" },
		"missing admin choice":    func(in *SubmitInput) { in.Applicant.AdminChoice = "" },
		"no reasons":              func(in *SubmitInput) { in.Details.Reasons = nil },
		"bad presence url":        func(in *SubmitInput) { in.Details.OnlinePresence = []OnlinePresenceInput{{Type: "site", URL: "nope"}} },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := delegatedSubmission("Validation School", "musu@example.com", "head@validation.edu.lr")
			mutate(&in)
			_, err := env.svc.Submit(ctx, in)
			require.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&models.SchoolApplication{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSubmitSchoolPhoneSatisfiesContactChannel(t *testing.T) {
	env := newTestEnv(t, Config{})

	in := principalSubmission("Phone Only School", "head@phone.edu.lr")
	in.Contact.SchoolEmail = ""
	in.Contact.SchoolPhone = "+231880000000"

	res, err := env.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	app := env.application(t, res.ID)
	require.Equal(t, "LR", app.CountryCode)
	require.Equal(t, models.AdminChoicePrincipal, app.AdminChoice)
	require.Nil(t, app.ApplicantEmail)
}

func TestAddNoteAndDetail(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	id := env.reviewReady(t, "Gbarpolu School", "head@gbarpolu.edu.lr")

	note, err := env.svc.AddNote(ctx, id, reviewer, "  called the principal  ")
	require.NoError(t, err)
	require.Equal(t, "called the principal", note.Note)

	_, err = env.svc.AddNote(ctx, "missing", reviewer, "anything")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	detail, err := env.svc.GetDetail(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, detail.Application.ID)
	require.Equal(t, "Liberia", detail.CountryName)
	require.Len(t, detail.Timeline, 2)
	require.Len(t, detail.Notes, 1)
	require.Equal(t, reviewer, detail.Notes[0].CreatedBy)

	// Notes never change status or the timeline.
	require.Equal(t, models.StatusPendingReview, detail.Application.Status)
}

func TestListApplicationsFiltersAndSorts(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	env.reviewReady(t, "Alpha School", "alpha@example.com")
	env.clock.Advance(time.Minute)
	_, err := env.svc.Submit(ctx, principalSubmission("Bravo School", "bravo@example.com"))
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	in := principalSubmission("Charlie School", "charlie@example.com")
	in.Location.CountryCode = "GH"
	_, err = env.svc.Submit(ctx, in)
	require.NoError(t, err)

	all, err := env.svc.ListApplications(ctx, ListFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 3, all.Total)
	require.Equal(t, 1, all.Page)
	require.Equal(t, defaultPerPage, all.PerPage)
	require.Equal(t, "Charlie School", all.Items[0].SchoolName, "newest first by default")

	pending, err := env.svc.ListApplications(ctx, ListFilter{Status: models.StatusPendingReview})
	require.NoError(t, err)
	require.EqualValues(t, 1, pending.Total)
	require.Equal(t, "Alpha School", pending.Items[0].SchoolName)

	ghana, err := env.svc.ListApplications(ctx, ListFilter{CountryCode: "gh"})
	require.NoError(t, err)
	require.EqualValues(t, 1, ghana.Total)

	search, err := env.svc.ListApplications(ctx, ListFilter{Search: "BRAVO"})
	require.NoError(t, err)
	require.EqualValues(t, 1, search.Total)

	paged, err := env.svc.ListApplications(ctx, ListFilter{SortBy: "school_name", SortOrder: "asc", Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.EqualValues(t, 3, paged.Total)
	require.Len(t, paged.Items, 1)
	require.Equal(t, "Charlie School", paged.Items[0].SchoolName)

	_, err = env.svc.ListApplications(ctx, ListFilter{SortBy: "email"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = env.svc.ListApplications(ctx, ListFilter{Status: "archived"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = env.svc.ListApplications(ctx, ListFilter{PerPage: 500})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	env.reviewReady(t, "Pending School", "pending@example.com")
	underReview := env.underReview(t, "Review School", "review@example.com")
	_, err := env.svc.RequestMoreInfo(ctx, underReview, reviewer, "please send the permit")
	require.NoError(t, err)

	approved := env.underReview(t, "Approved School", "approved@example.com")
	env.clock.Advance(48 * time.Hour)
	_, err = env.svc.Approve(ctx, approved, reviewer)
	require.NoError(t, err)

	stats, err := env.svc.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.PendingReview)
	require.EqualValues(t, 0, stats.UnderReview)
	require.EqualValues(t, 1, stats.MoreInfoRequested)
	require.EqualValues(t, 1, stats.ApprovedThisWeek)
	require.EqualValues(t, 3, stats.TotalThisMonth)
	require.NotNil(t, stats.AvgReviewTimeDays)
	require.InDelta(t, 2.0, *stats.AvgReviewTimeDays, 0.01)
}

func TestCountries(t *testing.T) {
	env := newTestEnv(t, Config{})

	countries := env.svc.Countries()
	require.Len(t, countries, 8)
	require.Equal(t, Country{Code: "LR", Name: "Liberia"}, countries[0])

	countries[0].Name = "changed"
	require.Equal(t, "Liberia", env.svc.Countries()[0].Name)
}

func TestLockTimeoutIsTransient(t *testing.T) {
	env := newTestEnv(t, Config{LockTimeout: 20 * time.Millisecond})
	ctx := context.Background()
	id := env.reviewReady(t, "Locked School", "locked@example.com")

	release, err := env.svc.locks.acquire(ctx, id)
	require.NoError(t, err)
	defer release()

	_, err = env.svc.StartReview(ctx, id, reviewer)
	require.ErrorIs(t, err, apperrors.ErrTransient)
	require.True(t, apperrors.IsRetryable(err))
	require.Equal(t, models.StatusPendingReview, env.application(t, id).Status)
}

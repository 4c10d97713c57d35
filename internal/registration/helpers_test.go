package registration

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/database/testutil"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/models"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/notifications"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentNotice struct {
	template string
	to       string
	vars     map[string]string
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []sentNotice
	err  error
}

func (f *fakeDispatcher) Send(_ context.Context, templateID, to string, vars map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotice{template: templateID, to: to, vars: vars})
	return f.err
}

func (f *fakeDispatcher) count(templateID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.template == templateID {
			n++
		}
	}
	return n
}

func (f *fakeDispatcher) last(t *testing.T, templateID string) sentNotice {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].template == templateID {
			return f.sent[i]
		}
	}
	t.Fatalf("no %s notification sent", templateID)
	return sentNotice{}
}

// token extracts the raw token from the link of the latest notice of templateID.
func (f *fakeDispatcher) token(t *testing.T, templateID string) string {
	t.Helper()
	link, err := url.Parse(f.last(t, templateID).vars["link"])
	require.NoError(t, err)
	raw := link.Query().Get("token")
	require.NotEmpty(t, raw)
	return raw
}

type testEnv struct {
	svc        *Service
	db         *gorm.DB
	clock      *testClock
	dispatcher *fakeDispatcher
}

func newTestEnv(t *testing.T, cfg Config, opts ...Option) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := newTestClock()
	dispatcher := &fakeDispatcher{}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = "https://eksms.test"
	}

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	svc, err := NewService(db, dispatcher, cfg, opts...)
	require.NoError(t, err)

	return &testEnv{svc: svc, db: db, clock: clock, dispatcher: dispatcher}
}

func principalSubmission(school, principalEmail string) SubmitInput {
	return SubmitInput{
		School: SchoolInput{
			Name:              school,
			Type:              models.SchoolTypeMission,
			YearEstablished:   1985,
			StudentPopulation: models.Population100To300,
		},
		Location: LocationInput{CountryCode: "lr", City: "Harbel", Address: "12 Firestone Road"},
		Contact: ContactInput{
			SchoolEmail:    "office@harbel.edu.lr",
			PrincipalName:  "Joseph Doe",
			PrincipalEmail: principalEmail,
			PrincipalPhone: "+231770000001",
		},
		Applicant: ApplicantInput{IsPrincipal: true},
		Details: DetailsInput{
			OnlinePresence: []OnlinePresenceInput{{Type: "website", URL: "https://harbel.edu.lr"}},
			Reasons:        []string{"digitise student records"},
		},
	}
}

func delegatedSubmission(school, applicantEmail, principalEmail string) SubmitInput {
	in := principalSubmission(school, principalEmail)
	in.Applicant = ApplicantInput{
		IsPrincipal: false,
		Name:        "Musu Kollie",
		Email:       applicantEmail,
		Phone:       "+231770000002",
		Role:        "Registrar",
		AdminChoice: models.AdminChoiceApplicant,
	}
	return in
}

// reviewReady submits a self-attested application and verifies it so it sits in pending_review.
func (e *testEnv) reviewReady(t *testing.T, school, email string) string {
	t.Helper()
	ctx := context.Background()

	res, err := e.svc.Submit(ctx, principalSubmission(school, email))
	require.NoError(t, err)

	_, err = e.svc.VerifyApplicant(ctx, e.dispatcher.token(t, notifications.TemplateApplicantVerification))
	require.NoError(t, err)
	return res.ID
}

func (e *testEnv) underReview(t *testing.T, school, email string) string {
	t.Helper()
	id := e.reviewReady(t, school, email)
	_, err := e.svc.StartReview(context.Background(), id, "reviewer@eksms.test")
	require.NoError(t, err)
	return id
}

func (e *testEnv) application(t *testing.T, id string) models.SchoolApplication {
	t.Helper()
	var app models.SchoolApplication
	require.NoError(t, e.db.First(&app, "id = ?", id).Error)
	return app
}

func (e *testEnv) events(t *testing.T, id string) []models.TimelineEvent {
	t.Helper()
	var events []models.TimelineEvent
	require.NoError(t, e.db.Where("application_id = ?", id).Order("sequence").Find(&events).Error)
	return events
}

func eventTypes(events []models.TimelineEvent) []models.TimelineEventType {
	out := make([]models.TimelineEventType, len(events))
	for i, e := range events {
		out[i] = e.EventType
	}
	return out
}

// requireConsistentHistory asserts each event starts where the previous one ended
// and the last one ends at the ledger status.
func requireConsistentHistory(t *testing.T, app models.SchoolApplication, events []models.TimelineEvent) {
	t.Helper()
	require.NotEmpty(t, events)
	require.Equal(t, models.ApplicationStatus(""), events[0].FromStatus)
	for i := 1; i < len(events); i++ {
		require.Equal(t, events[i-1].ToStatus, events[i].FromStatus, "event %d", i)
		require.True(t, events[i].FromStatus.CanTransitionTo(events[i].ToStatus), "event %d", i)
		require.Equal(t, i+1, events[i].Sequence)
	}
	require.Equal(t, app.Status, events[len(events)-1].ToStatus)
}

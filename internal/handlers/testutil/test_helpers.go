package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/api"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/app"
	iauth "github.com/EL-KENDEH-TEAM/EK-SMS/internal/auth"
	sharedtestutil "github.com/EL-KENDEH-TEAM/EK-SMS/internal/database/testutil"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/middleware"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/registration"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/response"
)

const (
	jwtSecret   = "test-suite-super-secret-key-32-bytes!!"
	jwtIssuer   = "test-suite"
	FrontendURL = "https://eksms.test"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T          *testing.T
	DB         *gorm.DB
	Router     *gin.Engine
	JWT        *iauth.JWTService
	Service    *registration.Service
	Dispatcher *RecordingDispatcher
	Config     *app.Config
}

// EnvOption adjusts the configuration before the router is built.
type EnvOption func(*app.Config)

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())

	cfg := &app.Config{
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{Secret: jwtSecret, Issuer: jwtIssuer, TTL: time.Hour},
		},
		Registration: app.RegistrationConfig{
			TokenTTL:    72 * time.Hour,
			TokenBytes:  32,
			LockTimeout: 5 * time.Second,
			FrontendURL: FrontendURL,
			AdminEmails: []string{"triage@eksms.test"},
		},
		RateLimits: app.RateLimitConfig{
			ResendPerHour: 3,
			Admin: app.AdminRateLimit{
				StartReview: 30,
				RequestInfo: 20,
				Approve:     10,
				Reject:      10,
				Notes:       30,
			},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	dispatcher := &RecordingDispatcher{}
	svc, err := registration.NewService(db, dispatcher, cfg.Registration.ServiceConfig())
	require.NoError(t, err)

	router, err := api.NewRouter(cfg, api.Dependencies{
		Registration: svc,
		JWT:          jwtSvc,
		RateStore:    middleware.NewMemoryRateStore(time.Now),
	})
	require.NoError(t, err)

	return &Env{
		T:          t,
		DB:         db,
		Router:     router,
		JWT:        jwtSvc,
		Service:    svc,
		Dispatcher: dispatcher,
		Config:     cfg,
	}
}

// AdminToken issues a platform administrator access token for email.
func (e *Env) AdminToken(email string) string {
	e.T.Helper()
	return e.Token(email, iauth.RolePlatformAdmin)
}

// Token issues an access token for subject with the given role.
func (e *Env) Token(email, role string) string {
	e.T.Helper()
	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{
		Subject: "user-" + email,
		Role:    role,
		Email:   email,
	})
	require.NoError(e.T, err)
	return token
}

// SubmissionPayload returns a valid submission from a principal applying for their own school.
func SubmissionPayload(school, principalEmail string) map[string]any {
	return map[string]any{
		"school": map[string]any{
			"name":               school,
			"type":               "private",
			"year_established":   1998,
			"student_population": "300_to_500",
		},
		"location": map[string]any{
			"country_code": "LR",
			"city":         "Monrovia",
			"address":      "14 Broad Street",
		},
		"contact": map[string]any{
			"school_email":    "office@school.lr",
			"principal_name":  "Grace Kamara",
			"principal_email": principalEmail,
			"principal_phone": "+231770000010",
		},
		"applicant": map[string]any{
			"is_principal": true,
		},
		"details": map[string]any{
			"reasons": []string{"manage enrolment"},
		},
	}
}

// SubmitResult mirrors the submission response payload.
type SubmitResult struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	MaskedEmail string `json:"masked_email"`
}

// Submit posts payload and returns the created application.
func (e *Env) Submit(payload map[string]any) SubmitResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/applications", payload, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	var result SubmitResult
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &result)
	require.NotEmpty(e.T, result.ID)
	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// Notice is one recorded notification.
type Notice struct {
	Template string
	To       string
	Vars     map[string]string
}

// RecordingDispatcher captures notifications instead of sending them.
type RecordingDispatcher struct {
	mu   sync.Mutex
	sent []Notice
}

func (d *RecordingDispatcher) Send(_ context.Context, templateID, to string, vars map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, Notice{Template: templateID, To: to, Vars: vars})
	return nil
}

// Last returns the most recent notice rendered from templateID.
func (d *RecordingDispatcher) Last(t *testing.T, templateID string) Notice {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.sent) - 1; i >= 0; i-- {
		if d.sent[i].Template == templateID {
			return d.sent[i]
		}
	}
	t.Fatalf("no %s notification sent", templateID)
	return Notice{}
}

// Token extracts the raw token from the link of the latest notice of templateID.
func (d *RecordingDispatcher) Token(t *testing.T, templateID string) string {
	t.Helper()
	link, err := url.Parse(d.Last(t, templateID).Vars["link"])
	require.NoError(t, err)
	raw := link.Query().Get("token")
	require.NotEmpty(t, raw)
	return raw
}

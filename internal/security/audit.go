// Package security audits the runtime configuration for unsafe settings
// before the server starts accepting traffic.
package security

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/app"
)

const minJWTSecretLength = 32

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// Failed reports whether any check failed outright.
func (r Result) Failed() bool {
	return r.Summary[string(StatusFail)] > 0
}

// AuditConfig evaluates cfg. generated lists keys filled in by
// app.ApplyRuntimeDefaults.
func AuditConfig(cfg *app.Config, generated map[string]bool, now time.Time) Result {
	var checks []Check
	if cfg == nil {
		checks = []Check{{ID: "config_present", Status: StatusFail, Message: "No configuration loaded"}}
	} else {
		checks = []Check{
			checkJWTSecret(cfg, generated),
			checkTokenLifetime(cfg.Registration),
			checkFrontendURL(cfg.Registration.FrontendURL),
			checkMailDelivery(cfg.Email),
			checkAdminRecipients(cfg.Registration.AdminEmails),
		}
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{CheckedAt: now.UTC(), Checks: checks, Summary: summary}
}

func checkJWTSecret(cfg *app.Config, generated map[string]bool) Check {
	secret := strings.TrimSpace(cfg.Auth.JWT.Secret)
	switch {
	case secret == "":
		return Check{
			ID:          "jwt_secret",
			Status:      StatusFail,
			Message:     "JWT secret is not configured",
			Remediation: "Set auth.jwt.secret or EKSMS_AUTH_JWT_SECRET.",
		}
	case generated["auth.jwt.secret"]:
		return Check{
			ID:          "jwt_secret",
			Status:      StatusWarn,
			Message:     "JWT secret was generated at startup; reviewer sessions end on restart",
			Remediation: "Persist a secret in configuration.",
		}
	case len(secret) < minJWTSecretLength:
		return Check{
			ID:          "jwt_secret",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT secret is shorter than %d characters", minJWTSecretLength),
			Remediation: "Use a longer random secret.",
		}
	}
	return Check{ID: "jwt_secret", Status: StatusPass, Message: "JWT secret configured"}
}

func checkTokenLifetime(cfg app.RegistrationConfig) Check {
	switch {
	case cfg.TokenTTL < time.Hour:
		return Check{
			ID:          "token_lifetime",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Verification links expire after %s", cfg.TokenTTL),
			Remediation: "Allow applicants at least an hour to verify.",
		}
	case cfg.ReminderAfter > 0 && cfg.ReminderAfter >= cfg.TokenTTL:
		return Check{
			ID:          "token_lifetime",
			Status:      StatusWarn,
			Message:     "Reminders are scheduled after verification links expire and will never be sent",
			Remediation: "Set registration.reminder_after below registration.token_ttl.",
		}
	}
	return Check{ID: "token_lifetime", Status: StatusPass, Message: "Verification link lifetime is reasonable"}
}

func checkFrontendURL(raw string) Check {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Check{
			ID:          "frontend_url",
			Status:      StatusFail,
			Message:     "Frontend URL is not an absolute URL; emailed links will be broken",
			Remediation: "Set registration.frontend_url, e.g. https://register.example.com.",
		}
	}
	host := u.Hostname()
	if u.Scheme != "https" && host != "localhost" && host != "127.0.0.1" {
		return Check{
			ID:          "frontend_url",
			Status:      StatusWarn,
			Message:     "Verification links are sent over plain HTTP",
			Remediation: "Serve the registration frontend over HTTPS.",
		}
	}
	return Check{ID: "frontend_url", Status: StatusPass, Message: "Frontend URL configured"}
}

func checkMailDelivery(cfg app.EmailConfig) Check {
	if !cfg.SMTP.Enabled {
		return Check{
			ID:          "mail_delivery",
			Status:      StatusWarn,
			Message:     "SMTP is disabled; notifications are only written to the log",
			Remediation: "Enable email.smtp to deliver verification links.",
		}
	}
	if !cfg.SMTP.UseTLS {
		return Check{
			ID:          "mail_delivery",
			Status:      StatusWarn,
			Message:     "SMTP connects without implicit TLS; STARTTLS is used only when offered",
			Remediation: "Enable email.smtp.use_tls where the relay supports it.",
		}
	}
	return Check{ID: "mail_delivery", Status: StatusPass, Message: "SMTP delivery enabled"}
}

func checkAdminRecipients(emails []string) Check {
	for _, email := range emails {
		if strings.TrimSpace(email) != "" {
			return Check{ID: "admin_recipients", Status: StatusPass, Message: "Triage notifications have recipients"}
		}
	}
	return Check{
		ID:          "admin_recipients",
		Status:      StatusWarn,
		Message:     "No administrators receive new-application notices",
		Remediation: "Set registration.admin_emails.",
	}
}

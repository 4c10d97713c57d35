package app

import (
	"strings"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/registration"
)

const defaultSweepSchedule = "@hourly"

// ServiceConfig converts RegistrationConfig into the workflow configuration.
func (c RegistrationConfig) ServiceConfig() registration.Config {
	admins := make([]string, 0, len(c.AdminEmails))
	for _, email := range c.AdminEmails {
		if email = strings.TrimSpace(email); email != "" {
			admins = append(admins, email)
		}
	}

	return registration.Config{
		TokenTTL:         c.TokenTTL,
		TokenBytes:       c.TokenBytes,
		ReminderAfter:    c.ReminderAfter,
		SubmissionMaxAge: c.SubmissionMaxAge,
		LockTimeout:      c.LockTimeout,
		FrontendURL:      strings.TrimSpace(c.FrontendURL),
		AdminEmails:      admins,
	}
}

// Schedule returns the cron spec for the maintenance sweeps.
func (c RegistrationConfig) Schedule() string {
	if spec := strings.TrimSpace(c.SweepSchedule); spec != "" {
		return spec
	}
	return defaultSweepSchedule
}

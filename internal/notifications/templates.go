package notifications

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// Template identifiers understood by the catalogue.
const (
	TemplateApplicantVerification = "applicant_verification"
	TemplatePrincipalConfirmation = "principal_confirmation"
	TemplateVerificationReminder  = "verification_reminder"
	TemplateConfirmationReminder  = "confirmation_reminder"
	TemplateSubmittedForReview    = "submitted_for_review"
	TemplateAdminTriage           = "admin_triage"
	TemplateMoreInfoRequested     = "more_info_requested"
	TemplateApproved              = "application_approved"
	TemplateAdminCredentials      = "admin_credentials"
	TemplateRejected              = "application_rejected"
	TemplateExpired               = "application_expired"
)

// ErrUnknownTemplate is returned when a template id is not in the catalogue.
var ErrUnknownTemplate = errors.New("notifications: unknown template")

const footer = `
--
EK-SMS - School Management System`

var sources = map[string]struct {
	subject string
	body    string
}{
	TemplateApplicantVerification: {
		subject: `Verify your EK-SMS application for {{.school_name}}`,
		body: `Hello {{.applicant_name}},

Thank you for submitting a registration application for {{.school_name}} on EK-SMS.

Please verify your email address by opening the link below:
{{.link}}

This link expires at {{.expires_at}}.

If you didn't submit this application, you can safely ignore this email.`,
	},
	TemplatePrincipalConfirmation: {
		subject: `Please confirm EK-SMS registration for {{.school_name}}`,
		body: `Hello {{.principal_name}},

{{.applicant_name}} has applied to register {{.school_name}} on EK-SMS and listed you as the principal.

Please review and confirm the registration here:
{{.link}}

This link expires at {{.expires_at}}.

If you did not expect this request, no action is needed.`,
	},
	TemplateVerificationReminder: {
		subject: `Reminder: Verify your EK-SMS application for {{.school_name}}`,
		body: `Hello {{.applicant_name}},

Your application for {{.school_name}} is still waiting for email verification.

{{.link}}

This link expires at {{.expires_at}}.`,
	},
	TemplateConfirmationReminder: {
		subject: `Reminder: Please confirm EK-SMS registration for {{.school_name}}`,
		body: `Hello {{.principal_name}},

The registration of {{.school_name}} is still waiting for your confirmation.

{{.link}}

This link expires at {{.expires_at}}.`,
	},
	TemplateSubmittedForReview: {
		subject: `Your EK-SMS application for {{.school_name}} is under review`,
		body: `Hello {{.applicant_name}},

Your application for {{.school_name}} has been verified and submitted for review.
We will email you once a decision has been made.

Track progress here:
{{.status_link}}`,
	},
	TemplateAdminTriage: {
		subject: `New school application awaiting review: {{.school_name}}`,
		body: `A new application is ready for review.

School: {{.school_name}}
Country: {{.country}}
Applicant: {{.applicant_name}}

Application ID: {{.application_id}}`,
	},
	TemplateMoreInfoRequested: {
		subject: `Additional information needed for your EK-SMS application`,
		body: `Hello {{.applicant_name}},

Our team needs some additional information to process the application for {{.school_name}}:

{{.message}}

Please reply to this email with the requested information.`,
	},
	TemplateApproved: {
		subject: `Welcome to EK-SMS! Your school is approved`,
		body: `Hello {{.admin_name}},

Congratulations! {{.school_name}} has been approved on EK-SMS.
You will receive your sign-in details in a separate email.`,
	},
	TemplateAdminCredentials: {
		subject: `Your EK-SMS administrator account for {{.school_name}}`,
		body: `Hello {{.admin_name}},

An administrator account has been created for you on EK-SMS.

Sign-in email: {{.login_email}}
Temporary password: {{.temporary_password}}

Sign in here:
{{.login_link}}

You will be asked to choose a new password and set up two-factor authentication when you first sign in. Do not share this email.`,
	},
	TemplateRejected: {
		subject: `Update on your EK-SMS application`,
		body: `Hello {{.applicant_name}},

Thank you for your interest in EK-SMS. After careful review we are unable to approve the application for {{.school_name}} at this time.

Reason:
{{.reason}}

You are welcome to submit a new application once the points above have been addressed.`,
	},
	TemplateExpired: {
		subject: `Your EK-SMS application for {{.school_name}} has expired`,
		body: `Hello {{.applicant_name}},

Your application for {{.school_name}} expired before it was completed.
You can start a new application at any time:
{{.register_link}}`,
	},
}

type compiled struct {
	subject *template.Template
	body    *template.Template
}

// Catalogue renders plain-text notifications by template id.
type Catalogue struct {
	templates map[string]compiled
}

// NewCatalogue parses every built-in template.
func NewCatalogue() (*Catalogue, error) {
	c := &Catalogue{templates: make(map[string]compiled, len(sources))}
	for id, src := range sources {
		subject, err := template.New(id + ".subject").Option("missingkey=zero").Parse(src.subject)
		if err != nil {
			return nil, fmt.Errorf("notifications: parse %s subject: %w", id, err)
		}
		body, err := template.New(id + ".body").Option("missingkey=zero").Parse(src.body + "\n" + footer + "\n")
		if err != nil {
			return nil, fmt.Errorf("notifications: parse %s body: %w", id, err)
		}
		c.templates[id] = compiled{subject: subject, body: body}
	}
	return c, nil
}

// Render produces the subject and body for templateID.
func (c *Catalogue) Render(templateID string, vars map[string]string) (string, string, error) {
	tpl, ok := c.templates[templateID]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, templateID)
	}
	if vars == nil {
		vars = map[string]string{}
	}

	var subject, body bytes.Buffer
	if err := tpl.subject.Execute(&subject, vars); err != nil {
		return "", "", fmt.Errorf("notifications: render %s subject: %w", templateID, err)
	}
	if err := tpl.body.Execute(&body, vars); err != nil {
		return "", "", fmt.Errorf("notifications: render %s body: %w", templateID, err)
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}

// Has reports whether templateID is known.
func (c *Catalogue) Has(templateID string) bool {
	_, ok := c.templates[templateID]
	return ok
}

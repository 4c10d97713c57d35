package registration

import (
	"time"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/models"
)

type statusText struct {
	label       string
	description string
}

var statusTexts = map[models.ApplicationStatus]statusText{
	models.StatusAwaitingApplicantVerification: {
		label:       "Awaiting email verification",
		description: "Check your inbox and follow the verification link to continue.",
	},
	models.StatusAwaitingPrincipalConfirmation: {
		label:       "Awaiting principal confirmation",
		description: "We have asked the principal to confirm this registration.",
	},
	models.StatusPendingReview: {
		label:       "Pending review",
		description: "Your application is queued for review by our team.",
	},
	models.StatusUnderReview: {
		label:       "Under review",
		description: "A reviewer is assessing your application.",
	},
	models.StatusMoreInfoRequested: {
		label:       "More information requested",
		description: "We emailed you a request for additional information. Reply to continue the review.",
	},
	models.StatusApproved: {
		label:       "Approved",
		description: "Your school has been approved. Check your email for next steps.",
	},
	models.StatusRejected: {
		label:       "Not approved",
		description: "Your application was not approved. Check your email for details.",
	},
	models.StatusExpired: {
		label:       "Expired",
		description: "This application expired before it was completed. You may submit a new one.",
	},
}

// StatusLabel returns the short label for a status.
func StatusLabel(status models.ApplicationStatus) string {
	if text, ok := statusTexts[status]; ok {
		return text.label
	}
	return string(status)
}

// StatusDescription returns the applicant-facing explanation of a status.
func StatusDescription(status models.ApplicationStatus) string {
	return statusTexts[status].description
}

// Progress step keys in display order.
const (
	StepSubmitted          = "submitted"
	StepEmailVerified      = "email_verified"
	StepPrincipalConfirmed = "principal_confirmed"
	StepUnderReview        = "under_review"
	StepDecision           = "decision"
)

// ProgressStep is one milestone of the applicant-facing progress tracker.
type ProgressStep struct {
	Key         string     `json:"key"`
	Label       string     `json:"label"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StatusView is the applicant-facing read model. It never includes notes.
type StatusView struct {
	ApplicationID     string                   `json:"application_id"`
	SchoolName        string                   `json:"school_name"`
	Status            models.ApplicationStatus `json:"status"`
	StatusLabel       string                   `json:"status_label"`
	StatusDescription string                   `json:"status_description"`
	SubmittedAt       time.Time                `json:"submitted_at"`
	Steps             []ProgressStep           `json:"steps"`
}

func buildStatusView(app *models.SchoolApplication, events []models.TimelineEvent) *StatusView {
	return &StatusView{
		ApplicationID:     app.ID,
		SchoolName:        app.SchoolName,
		Status:            app.Status,
		StatusLabel:       StatusLabel(app.Status),
		StatusDescription: StatusDescription(app.Status),
		SubmittedAt:       app.SubmittedAt,
		Steps:             buildSteps(app, events),
	}
}

// buildSteps derives progress from the first occurrence of each milestone event.
func buildSteps(app *models.SchoolApplication, events []models.TimelineEvent) []ProgressStep {
	first := make(map[models.TimelineEventType]time.Time, len(events))
	for _, e := range events {
		if _, seen := first[e.EventType]; !seen {
			first[e.EventType] = e.OccurredAt
		}
	}

	confirmEvent := models.EventPrincipalConfirmed
	if app.IsPrincipal {
		confirmEvent = models.EventEmailVerified
	}

	milestones := []struct {
		key   string
		label string
		event models.TimelineEventType
	}{
		{StepSubmitted, "Application submitted", models.EventSubmitted},
		{StepEmailVerified, "Email verified", models.EventEmailVerified},
		{StepPrincipalConfirmed, "Principal confirmed", confirmEvent},
		{StepUnderReview, "Under review", models.EventReviewStarted},
		{StepDecision, "Decision", models.EventDecisionMade},
	}

	steps := make([]ProgressStep, 0, len(milestones))
	for _, s := range milestones {
		step := ProgressStep{Key: s.key, Label: s.label}
		if at, ok := first[s.event]; ok {
			at := at
			step.Completed = true
			step.CompletedAt = &at
		}
		steps = append(steps, step)
	}
	return steps
}

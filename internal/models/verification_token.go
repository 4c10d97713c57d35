package models

import "time"

// TokenPurpose tags the lifecycle phase a verification token authorises.
type TokenPurpose string

const (
	PurposeApplicantVerification TokenPurpose = "applicant_verification"
	PurposePrincipalConfirmation TokenPurpose = "principal_confirmation"
)

// Valid reports whether p is a known purpose.
func (p TokenPurpose) Valid() bool {
	return p == PurposeApplicantVerification || p == PurposePrincipalConfirmation
}

// AwaitingStatus is the application status in which a token of purpose p is live.
func (p TokenPurpose) AwaitingStatus() ApplicationStatus {
	if p == PurposePrincipalConfirmation {
		return StatusAwaitingPrincipalConfirmation
	}
	return StatusAwaitingApplicantVerification
}

// PurposeForStatus returns the token purpose pending in status, if any.
func PurposeForStatus(status ApplicationStatus) (TokenPurpose, bool) {
	switch status {
	case StatusAwaitingApplicantVerification:
		return PurposeApplicantVerification, true
	case StatusAwaitingPrincipalConfirmation:
		return PurposePrincipalConfirmation, true
	default:
		return "", false
	}
}

// VerificationToken is a single-use, time-limited token bound to one application.
// Only the SHA-256 digest of the raw value is stored.
type VerificationToken struct {
	BaseModel

	ApplicationID  string       `gorm:"type:uuid;not null;index" json:"application_id"`
	Purpose        TokenPurpose `gorm:"size:40;not null;index" json:"purpose"`
	TokenHash      string       `gorm:"size:64;not null;uniqueIndex" json:"-"`
	IssuedAt       time.Time    `gorm:"not null" json:"issued_at"`
	ExpiresAt      time.Time    `gorm:"not null;index" json:"expires_at"`
	ConsumedAt     *time.Time   `json:"consumed_at,omitempty"`
	RevokedAt      *time.Time   `json:"revoked_at,omitempty"`
	ReminderSentAt *time.Time   `json:"reminder_sent_at,omitempty"`
}

// Live reports whether the token can still be consumed at now.
func (t *VerificationToken) Live(now time.Time) bool {
	return t.ConsumedAt == nil && t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// SchoolType classifies the applying institution.
type SchoolType string

const (
	SchoolTypePublic     SchoolType = "public"
	SchoolTypePrivate    SchoolType = "private"
	SchoolTypeMission    SchoolType = "mission"
	SchoolTypeUniversity SchoolType = "university"
	SchoolTypeVocational SchoolType = "vocational"
)

// StudentPopulation is a bucketed enrolment size.
type StudentPopulation string

const (
	PopulationUnder100 StudentPopulation = "under_100"
	Population100To300 StudentPopulation = "100_to_300"
	Population300To500 StudentPopulation = "300_to_500"
	PopulationOver500  StudentPopulation = "over_500"
)

// AdminChoice indicates who should administer the school account once approved.
type AdminChoice string

const (
	AdminChoiceApplicant AdminChoice = "applicant"
	AdminChoicePrincipal AdminChoice = "principal"
)

// OnlinePresence is a public link to the school (website, social page).
type OnlinePresence struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// SchoolApplication is the ledger record of a school's registration request.
type SchoolApplication struct {
	BaseModel

	SchoolName        string            `gorm:"size:200;not null;index" json:"school_name"`
	SchoolType        SchoolType        `gorm:"size:32;not null" json:"school_type"`
	YearEstablished   int               `gorm:"not null" json:"year_established"`
	StudentPopulation StudentPopulation `gorm:"size:32;not null" json:"student_population"`

	CountryCode string `gorm:"size:2;not null;index" json:"country_code"`
	City        string `gorm:"size:100;not null" json:"city"`
	Address     string `gorm:"size:500;not null" json:"address"`

	SchoolEmail    string `gorm:"size:255" json:"school_email,omitempty"`
	SchoolPhone    string `gorm:"size:20" json:"school_phone,omitempty"`
	PrincipalName  string `gorm:"size:200;not null" json:"principal_name"`
	PrincipalEmail string `gorm:"size:255;not null;index" json:"principal_email"`
	PrincipalPhone string `gorm:"size:20;not null" json:"principal_phone"`

	IsPrincipal    bool        `gorm:"not null;default:false" json:"is_principal"`
	ApplicantName  *string     `gorm:"size:200" json:"applicant_name,omitempty"`
	ApplicantEmail *string     `gorm:"size:255" json:"applicant_email,omitempty"`
	ApplicantPhone *string     `gorm:"size:20" json:"applicant_phone,omitempty"`
	ApplicantRole  *string     `gorm:"size:100" json:"applicant_role,omitempty"`
	AdminChoice    AdminChoice `gorm:"size:16;not null" json:"admin_choice"`

	OnlinePresence datatypes.JSONSlice[OnlinePresence] `json:"online_presence"`
	Reasons        datatypes.JSONSlice[string]         `json:"reasons"`
	OtherReason    string                              `gorm:"size:500" json:"other_reason,omitempty"`

	// ContactEmail is the lower-cased effective applicant email.
	ContactEmail string `gorm:"size:255;not null;index" json:"contact_email"`
	// ActiveEmailKey mirrors ContactEmail while the application is non-terminal
	// and is NULL afterwards; its unique index backs the one-active-per-email rule.
	ActiveEmailKey *string `gorm:"size:255;uniqueIndex" json:"-"`

	Status               ApplicationStatus `gorm:"size:40;not null;index" json:"status"`
	SubmittedAt          time.Time         `gorm:"not null;index" json:"submitted_at"`
	ApplicantVerifiedAt  *time.Time        `json:"applicant_verified_at,omitempty"`
	PrincipalConfirmedAt *time.Time        `json:"principal_confirmed_at,omitempty"`
	ReviewedAt           *time.Time        `json:"reviewed_at,omitempty"`
	ReviewedBy           *string           `gorm:"size:255" json:"reviewed_by,omitempty"`
	DecisionReason       *string           `gorm:"size:1000" json:"decision_reason,omitempty"`
}

// EffectiveApplicantName returns the principal's name for self-attested principals.
func (a *SchoolApplication) EffectiveApplicantName() string {
	if a.IsPrincipal || a.ApplicantName == nil {
		return a.PrincipalName
	}
	return *a.ApplicantName
}

// EffectiveApplicantEmail returns the address that receives applicant mail.
func (a *SchoolApplication) EffectiveApplicantEmail() string {
	if a.IsPrincipal || a.ApplicantEmail == nil {
		return a.PrincipalEmail
	}
	return *a.ApplicantEmail
}

// DesignatedAdminName names the person who will administer the school account.
func (a *SchoolApplication) DesignatedAdminName() string {
	if a.AdminChoice == AdminChoicePrincipal {
		return a.PrincipalName
	}
	return a.EffectiveApplicantName()
}

// MatchesContactEmail compares email with the contact email case-insensitively.
func (a *SchoolApplication) MatchesContactEmail(email string) bool {
	return NormalizeEmail(email) != "" && NormalizeEmail(email) == a.ContactEmail
}

// MatchesPrincipalEmail compares email with the principal's email case-insensitively.
func (a *SchoolApplication) MatchesPrincipalEmail(email string) bool {
	return NormalizeEmail(email) != "" && NormalizeEmail(email) == NormalizeEmail(a.PrincipalEmail)
}

// SyncActiveKey keeps ActiveEmailKey consistent with Status.
func (a *SchoolApplication) SyncActiveKey() {
	if a.Status.Terminal() {
		a.ActiveEmailKey = nil
		return
	}
	key := a.ContactEmail
	a.ActiveEmailKey = &key
}

// NormalizeEmail trims and lower-cases an address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

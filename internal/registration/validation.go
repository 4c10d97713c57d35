package registration

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/models"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/validator"
)

// Admin input bounds, counted in characters after trimming.
const (
	MinInfoMessage  = 10
	MaxInfoMessage  = 1000
	MinRejectReason = 20
	MaxRejectReason = 1000
	MinNote         = 1
	MaxNote         = 2000
)

// SchoolInput describes the institution.
type SchoolInput struct {
	Name              string                   `json:"name" validate:"required,max=200"`
	Type              models.SchoolType        `json:"type" validate:"required,oneof=public private mission university vocational"`
	YearEstablished   int                      `json:"year_established" validate:"required,gte=1000"`
	StudentPopulation models.StudentPopulation `json:"student_population" validate:"required,oneof=under_100 100_to_300 300_to_500 over_500"`
}

// LocationInput describes where the school operates.
type LocationInput struct {
	CountryCode string `json:"country_code" validate:"required,len=2"`
	City        string `json:"city" validate:"required,max=100"`
	Address     string `json:"address" validate:"required,max=500"`
}

// ContactInput carries the school channels and the principal's identity.
type ContactInput struct {
	SchoolEmail    string `json:"school_email" validate:"omitempty,email,max=255"`
	SchoolPhone    string `json:"school_phone" validate:"omitempty,max=20"`
	PrincipalName  string `json:"principal_name" validate:"required,max=200"`
	PrincipalEmail string `json:"principal_email" validate:"required,email,max=255"`
	PrincipalPhone string `json:"principal_phone" validate:"required,max=20"`
}

// ApplicantInput identifies who is filling in the form.
type ApplicantInput struct {
	IsPrincipal bool               `json:"is_principal"`
	Name        string             `json:"name" validate:"omitempty,max=200"`
	Email       string             `json:"email" validate:"omitempty,email,max=255"`
	Phone       string             `json:"phone" validate:"omitempty,max=20"`
	Role        string             `json:"role" validate:"omitempty,max=100"`
	AdminChoice models.AdminChoice `json:"admin_choice" validate:"omitempty,oneof=applicant principal"`
}

// OnlinePresenceInput is a public link to the school.
type OnlinePresenceInput struct {
	Type string `json:"type" validate:"required,max=50"`
	URL  string `json:"url" validate:"required,url,max=500"`
}

// DetailsInput holds free-form motivation.
type DetailsInput struct {
	OnlinePresence []OnlinePresenceInput `json:"online_presence" validate:"omitempty,max=10,dive"`
	Reasons        []string              `json:"reasons" validate:"required,min=1,max=20,dive,required,max=200"`
	OtherReason    string                `json:"other_reason" validate:"omitempty,max=500"`
}

// SubmitInput is the structured application payload.
type SubmitInput struct {
	School    SchoolInput    `json:"school"`
	Location  LocationInput  `json:"location"`
	Contact   ContactInput   `json:"contact"`
	Applicant ApplicantInput `json:"applicant"`
	Details   DetailsInput   `json:"details"`
}

func (in *SubmitInput) normalize() {
	in.School.Name = strings.TrimSpace(in.School.Name)
	in.Location.CountryCode = strings.ToUpper(strings.TrimSpace(in.Location.CountryCode))
	in.Location.City = strings.TrimSpace(in.Location.City)
	in.Location.Address = strings.TrimSpace(in.Location.Address)
	in.Contact.SchoolEmail = strings.TrimSpace(in.Contact.SchoolEmail)
	in.Contact.SchoolPhone = strings.TrimSpace(in.Contact.SchoolPhone)
	in.Contact.PrincipalName = strings.TrimSpace(in.Contact.PrincipalName)
	in.Contact.PrincipalEmail = strings.TrimSpace(in.Contact.PrincipalEmail)
	in.Contact.PrincipalPhone = strings.TrimSpace(in.Contact.PrincipalPhone)
	in.Applicant.Name = strings.TrimSpace(in.Applicant.Name)
	in.Applicant.Email = strings.TrimSpace(in.Applicant.Email)
	in.Applicant.Phone = strings.TrimSpace(in.Applicant.Phone)
	in.Applicant.Role = strings.TrimSpace(in.Applicant.Role)
	for i := range in.Details.OnlinePresence {
		in.Details.OnlinePresence[i].Type = strings.TrimSpace(in.Details.OnlinePresence[i].Type)
		in.Details.OnlinePresence[i].URL = strings.TrimSpace(in.Details.OnlinePresence[i].URL)
	}
	for i := range in.Details.Reasons {
		in.Details.Reasons[i] = strings.TrimSpace(in.Details.Reasons[i])
	}
	in.Details.OtherReason = strings.TrimSpace(in.Details.OtherReason)

	if in.Applicant.IsPrincipal {
		in.Applicant = ApplicantInput{IsPrincipal: true, AdminChoice: models.AdminChoicePrincipal}
	}
}

// validateSubmission checks tag rules and the cross-field rules tags cannot express.
func validateSubmission(in *SubmitInput, now time.Time) error {
	in.normalize()

	var failures validator.ValidationErrors
	if err := validator.ValidateStruct(in); err != nil {
		tagged, ok := err.(validator.ValidationErrors)
		if !ok {
			return validationError(err, "invalid request payload")
		}
		failures = append(failures, tagged...)
	}

	if in.School.YearEstablished > now.Year() {
		failures.Add("school.year_established", "lte", strconv.Itoa(now.Year()))
	}
	if in.Location.CountryCode != "" {
		if _, ok := CountryName(in.Location.CountryCode); !ok {
			failures.Add("location.country_code", "oneof", supportedCodes())
		}
	}
	if in.Contact.SchoolEmail == "" && in.Contact.SchoolPhone == "" {
		failures.Add("contact.school_email", "required", "")
	}
	if !in.Applicant.IsPrincipal {
		if in.Applicant.Name == "" {
			failures.Add("applicant.name", "required", "")
		}
		if in.Applicant.Email == "" {
			failures.Add("applicant.email", "required", "")
		}
		if in.Applicant.Phone == "" {
			failures.Add("applicant.phone", "required", "")
		}
		if in.Applicant.Role == "" {
			failures.Add("applicant.role", "required", "")
		}
		if in.Applicant.AdminChoice == "" {
			failures.Add("applicant.admin_choice", "required", "")
		}
	}

	if err := failures.Err(); err != nil {
		return validationError(err, validator.Message(err))
	}
	return nil
}

// boundedText trims s and checks its length in characters.
func boundedText(field, s string, min, max int) (string, error) {
	s = strings.TrimSpace(s)
	var failures validator.ValidationErrors
	n := utf8.RuneCountInString(s)
	switch {
	case n == 0:
		failures.Add(field, "required", "")
	case n < min:
		failures.Add(field, "min", strconv.Itoa(min))
	case n > max:
		failures.Add(field, "max", strconv.Itoa(max))
	}
	if err := failures.Err(); err != nil {
		return "", validationError(err, validator.Message(err))
	}
	return s, nil
}

func supportedCodes() string {
	codes := make([]string, len(supportedCountries))
	for i, c := range supportedCountries {
		codes[i] = c.Code
	}
	return strings.Join(codes, " ")
}

func toApplication(in *SubmitInput) *models.SchoolApplication {
	app := &models.SchoolApplication{
		SchoolName:        in.School.Name,
		SchoolType:        in.School.Type,
		YearEstablished:   in.School.YearEstablished,
		StudentPopulation: in.School.StudentPopulation,
		CountryCode:       in.Location.CountryCode,
		City:              in.Location.City,
		Address:           in.Location.Address,
		SchoolEmail:       in.Contact.SchoolEmail,
		SchoolPhone:       in.Contact.SchoolPhone,
		PrincipalName:     in.Contact.PrincipalName,
		PrincipalEmail:    in.Contact.PrincipalEmail,
		PrincipalPhone:    in.Contact.PrincipalPhone,
		IsPrincipal:       in.Applicant.IsPrincipal,
		AdminChoice:       in.Applicant.AdminChoice,
		OtherReason:       in.Details.OtherReason,
	}
	if !in.Applicant.IsPrincipal {
		app.ApplicantName = stringPtr(in.Applicant.Name)
		app.ApplicantEmail = stringPtr(in.Applicant.Email)
		app.ApplicantPhone = stringPtr(in.Applicant.Phone)
		app.ApplicantRole = stringPtr(in.Applicant.Role)
	}

	presence := make([]models.OnlinePresence, 0, len(in.Details.OnlinePresence))
	for _, p := range in.Details.OnlinePresence {
		presence = append(presence, models.OnlinePresence{Type: p.Type, URL: p.URL})
	}
	app.OnlinePresence = presence
	app.Reasons = append([]string(nil), in.Details.Reasons...)
	return app
}

func stringPtr(s string) *string {
	return &s
}

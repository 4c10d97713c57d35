package registration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/models"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/crypto"
	apperrors "github.com/EL-KENDEH-TEAM/EK-SMS/pkg/errors"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/privacy"
)

const temporaryPasswordBytes = 12

// ErrSchoolProvisioning signals that the school tenant or its administrator
// account could not be created. The approval is rolled back.
var ErrSchoolProvisioning = apperrors.New("SCHOOL_PROVISIONING_FAILED", "School account could not be created", http.StatusConflict)

// Provisioned is the tenant and administrator account created on approval.
type Provisioned struct {
	School            *models.School
	Admin             *models.User
	TemporaryPassword string
}

// Provisioner creates the school tenant and its first administrator.
type Provisioner struct {
	db           *gorm.DB
	hashPassword func(string) (string, error)
}

// NewProvisioner constructs a Provisioner.
func NewProvisioner(db *gorm.DB) (*Provisioner, error) {
	if db == nil {
		return nil, errors.New("provisioner: db is required")
	}
	return &Provisioner{db: db, hashPassword: crypto.HashPassword}, nil
}

// WithTx returns a copy of the provisioner bound to tx.
func (p *Provisioner) WithTx(tx *gorm.DB) *Provisioner {
	cpy := *p
	cpy.db = tx
	return &cpy
}

// Provision creates the school from app and an administrator account for the
// designated admin with a temporary password that must be changed on first sign-in.
func (p *Provisioner) Provision(ctx context.Context, app *models.SchoolApplication) (*Provisioned, error) {
	email := models.NormalizeEmail(designatedAdminEmail(app))
	if email == "" {
		return nil, ErrSchoolProvisioning.WithMessage("The designated administrator has no email address")
	}

	var existing int64
	if err := p.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, storageError("check admin account", err)
	}
	if existing > 0 {
		return nil, accountExists(email)
	}

	applicationID := app.ID
	school := &models.School{
		Name:              app.SchoolName,
		SchoolType:        app.SchoolType,
		YearEstablished:   app.YearEstablished,
		StudentPopulation: app.StudentPopulation,
		CountryCode:       app.CountryCode,
		City:              app.City,
		Address:           app.Address,
		Email:             app.SchoolEmail,
		Phone:             app.SchoolPhone,
		PrincipalName:     app.PrincipalName,
		PrincipalEmail:    app.PrincipalEmail,
		PrincipalPhone:    app.PrincipalPhone,
		OnlinePresence:    app.OnlinePresence,
		Status:            models.SchoolStatusActive,
		IsActive:          true,
		ApplicationID:     &applicationID,
	}
	if err := p.db.WithContext(ctx).Create(school).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrSchoolProvisioning.WithMessage("A school has already been created for this application")
		}
		return nil, storageError("create school", err)
	}

	password, err := crypto.GenerateToken(temporaryPasswordBytes)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(fmt.Errorf("registration: temporary password: %w", err))
	}
	hash, err := p.hashPassword(password)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(fmt.Errorf("registration: hash password: %w", err))
	}

	first, last := splitName(app.DesignatedAdminName())
	admin := &models.User{
		SchoolID:           &school.ID,
		Email:              email,
		Phone:              designatedAdminPhone(app),
		PasswordHash:       hash,
		FirstName:          first,
		LastName:           last,
		Role:               models.RoleSchoolAdmin,
		IsActive:           true,
		IsVerified:         true,
		MustChangePassword: true,
	}
	if err := p.db.WithContext(ctx).Create(admin).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, accountExists(email)
		}
		return nil, storageError("create admin account", err)
	}

	return &Provisioned{School: school, Admin: admin, TemporaryPassword: password}, nil
}

func accountExists(email string) error {
	return ErrSchoolProvisioning.WithMessage(fmt.Sprintf("An account already exists for %s", privacy.MaskEmail(email)))
}

func designatedAdminEmail(app *models.SchoolApplication) string {
	if app.AdminChoice == models.AdminChoicePrincipal {
		return app.PrincipalEmail
	}
	return app.EffectiveApplicantEmail()
}

func designatedAdminPhone(app *models.SchoolApplication) *string {
	phone := app.PrincipalPhone
	if app.AdminChoice != models.AdminChoicePrincipal && !app.IsPrincipal && app.ApplicantPhone != nil {
		phone = *app.ApplicantPhone
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil
	}
	return &phone
}

// splitName puts the last word in the last name and everything before it in the first name.
func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}

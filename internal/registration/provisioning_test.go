package registration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/models"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/notifications"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/crypto"
	apperrors "github.com/EL-KENDEH-TEAM/EK-SMS/pkg/errors"
)

func TestApproveProvisionsSchoolAndApplicantAdmin(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	res, err := env.svc.Submit(ctx, delegatedSubmission("Kakata Academy", "musu@example.com", "head@kakata.edu.lr"))
	require.NoError(t, err)
	_, err = env.svc.VerifyApplicant(ctx, env.dispatcher.token(t, notifications.TemplateApplicantVerification))
	require.NoError(t, err)
	_, err = env.svc.ConfirmPrincipal(ctx, env.dispatcher.token(t, notifications.TemplatePrincipalConfirmation))
	require.NoError(t, err)
	_, err = env.svc.StartReview(ctx, res.ID, reviewer)
	require.NoError(t, err)

	result, err := env.svc.Approve(ctx, res.ID, reviewer)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, result.Status)
	require.NotEmpty(t, result.SchoolID)
	require.NotEmpty(t, result.AdminUserID)

	var school models.School
	require.NoError(t, env.db.First(&school, "id = ?", result.SchoolID).Error)
	require.Equal(t, "Kakata Academy", school.Name)
	require.Equal(t, "LR", school.CountryCode)
	require.Equal(t, "Harbel", school.City)
	require.Equal(t, "head@kakata.edu.lr", school.PrincipalEmail)
	require.Equal(t, models.SchoolStatusActive, school.Status)
	require.True(t, school.IsActive)
	require.NotNil(t, school.ApplicationID)
	require.Equal(t, res.ID, *school.ApplicationID)
	require.Len(t, school.OnlinePresence, 1)

	var admin models.User
	require.NoError(t, env.db.First(&admin, "id = ?", result.AdminUserID).Error)
	require.Equal(t, "musu@example.com", admin.Email)
	require.Equal(t, "Musu", admin.FirstName)
	require.Equal(t, "Kollie", admin.LastName)
	require.NotNil(t, admin.Phone)
	require.Equal(t, "+231770000002", *admin.Phone)
	require.Equal(t, models.RoleSchoolAdmin, admin.Role)
	require.NotNil(t, admin.SchoolID)
	require.Equal(t, school.ID, *admin.SchoolID)
	require.True(t, admin.MustChangePassword)

	credentials := env.dispatcher.last(t, notifications.TemplateAdminCredentials)
	require.Equal(t, "musu@example.com", credentials.to)
	require.Equal(t, "musu@example.com", credentials.vars["login_email"])
	require.Equal(t, "https://eksms.test/login", credentials.vars["login_link"])
	password := credentials.vars["temporary_password"]
	require.NotEmpty(t, password)
	require.NotEqual(t, password, admin.PasswordHash)
	require.True(t, crypto.VerifyPassword(admin.PasswordHash, password))
	require.Equal(t, "musu@example.com", env.dispatcher.last(t, notifications.TemplateApproved).to)

	events := env.events(t, res.ID)
	decision := events[len(events)-1]
	require.Equal(t, models.EventDecisionMade, decision.EventType)
	require.Equal(t, result.SchoolID, decision.Metadata["school_id"])
	require.Equal(t, result.AdminUserID, decision.Metadata["admin_user_id"])
}

func TestApproveRollsBackWhenAdminAccountExists(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	id := env.underReview(t, "Gbarnga Central", "head@gbarnga.edu.lr")
	require.NoError(t, env.db.Create(&models.User{
		Email:        "head@gbarnga.edu.lr",
		PasswordHash: "existing",
		FirstName:    "Existing",
		Role:         models.RoleSchoolAdmin,
		IsActive:     true,
	}).Error)
	before := len(env.events(t, id))

	_, err := env.svc.Approve(ctx, id, reviewer)
	require.ErrorIs(t, err, ErrSchoolProvisioning)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Contains(t, appErr.Message, "h***@gbarnga.edu.lr")

	app := env.application(t, id)
	require.Equal(t, models.StatusUnderReview, app.Status)
	require.Nil(t, app.ReviewedBy)
	require.Len(t, env.events(t, id), before)

	var schools int64
	require.NoError(t, env.db.Model(&models.School{}).Count(&schools).Error)
	require.Zero(t, schools)
	require.Zero(t, env.dispatcher.count(notifications.TemplateApproved))
	require.Zero(t, env.dispatcher.count(notifications.TemplateAdminCredentials))
}

func TestApproveOutsideReviewCreatesNothing(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()

	id := env.reviewReady(t, "Zwedru Public", "head@zwedru.edu.lr")

	_, err := env.svc.Approve(ctx, id, reviewer)
	require.ErrorIs(t, err, apperrors.ErrConflict)

	var schools, users int64
	require.NoError(t, env.db.Model(&models.School{}).Count(&schools).Error)
	require.NoError(t, env.db.Model(&models.User{}).Count(&users).Error)
	require.Zero(t, schools)
	require.Zero(t, users)
}

func TestSplitName(t *testing.T) {
	cases := []struct {
		full, first, last string
	}{
		{"Joseph Doe", "Joseph", "Doe"},
		{"  Mary   Ann  Kollie ", "Mary Ann", "Kollie"},
		{"Musu", "Musu", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		first, last := splitName(tc.full)
		require.Equal(t, tc.first, first, tc.full)
		require.Equal(t, tc.last, last, tc.full)
	}
}

package registration

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/EL-KENDEH-TEAM/EK-SMS/pkg/errors"
)

var (
	// ErrTokenInvalid indicates an unknown, revoked or mismatched token.
	ErrTokenInvalid = apperrors.New("TOKEN_INVALID", "Verification link is invalid", http.StatusBadRequest)
	// ErrTokenExpired indicates the token lapsed before it was used.
	ErrTokenExpired = apperrors.New("TOKEN_EXPIRED", "Verification link has expired", http.StatusBadRequest)
	// ErrTokenAlreadyUsed indicates the token was consumed earlier.
	ErrTokenAlreadyUsed = apperrors.New("TOKEN_ALREADY_USED", "Verification link has already been used", http.StatusConflict)

	// ErrApplicationNotFound is returned for unknown ids and for id/email mismatches alike.
	ErrApplicationNotFound = apperrors.ErrNotFound.WithMessage("Application not found")
	// ErrDuplicateActive signals an in-flight application already exists for the contact email.
	ErrDuplicateActive = apperrors.ErrConflict.WithMessage("An application for this email is already in progress")
	// ErrInvalidTransition signals the application is not in a state that allows the operation.
	ErrInvalidTransition = apperrors.ErrConflict.WithMessage("Application is not in a state that allows this action")
	// ErrReviewerRequired is returned when an admin operation carries no reviewer identity.
	ErrReviewerRequired = apperrors.ErrUnauthorized.WithMessage("Reviewer identity is required")
)

// storageError wraps a persistence failure as a retryable error, passing
// application errors through untouched.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.ErrTransient.WithInternal(fmt.Errorf("registration: %s: %w", op, err))
}

func validationError(err error, message string) error {
	return apperrors.ErrValidation.WithMessage(message).WithInternal(err)
}

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") || strings.Contains(lower, "duplicate")
}

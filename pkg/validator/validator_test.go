package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type testContact struct {
	Email string `json:"principal_email" validate:"required,email"`
}

type testPayload struct {
	Name    string      `json:"name" validate:"required,max=10"`
	Year    int         `json:"year" validate:"gte=1000"`
	Contact testContact `json:"contact"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := testPayload{
		Name:    "Harbel",
		Year:    1990,
		Contact: testContact{Email: "head@example.com"},
	}

	require.NoError(t, ValidateStruct(payload))
}

func TestValidateStructReportsNestedJSONPaths(t *testing.T) {
	payload := testPayload{
		Name:    "",
		Year:    10,
		Contact: testContact{Email: "invalid"},
	}

	err := ValidateStruct(&payload)
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, vErrs, 3)

	fields := make([]string, 0, len(vErrs))
	for _, v := range vErrs {
		fields = append(fields, v.Field)
	}
	require.ElementsMatch(t, []string{"name", "year", "contact.principal_email"}, fields)
}

func TestMessageFormatsFailures(t *testing.T) {
	var errs ValidationErrors
	errs.Add("contact.school_email", "required", "")
	errs.Add("school.name", "max", "200")

	msg := Message(errs.Err())
	require.Equal(t, "contact school email is required; school name must be at most 200 characters", msg)
	require.Equal(t, "invalid request payload", Message(nil))
}

func TestErrIsNilWithoutFailures(t *testing.T) {
	var errs ValidationErrors
	require.NoError(t, errs.Err())
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("upper_only", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "LR"
	})
	require.NoError(t, err)

	type custom struct {
		Value string `validate:"upper_only"`
	}

	require.NoError(t, ValidateStruct(custom{Value: "LR"}))
	require.Error(t, ValidateStruct(custom{Value: "lr"}))
}

package handlers

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/EL-KENDEH-TEAM/EK-SMS/pkg/errors"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/response"
	appValidator "github.com/EL-KENDEH-TEAM/EK-SMS/pkg/validator"
)

// bindJSON decodes the request body into dest without running validation.
// The caller's service owns the rules.
func bindJSON[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}
	return true
}

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if !bindJSON(c, dest) {
		return false
	}
	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.ErrValidation.WithMessage(appValidator.Message(err)))
		return false
	}
	return true
}

// bindQuery decodes query parameters into dest using its form tags.
func bindQuery[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid query parameters"))
		return false
	}
	return true
}

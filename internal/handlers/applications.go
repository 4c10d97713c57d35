package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/registration"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/errors"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/response"
)

// ApplicationHandler serves the public registration endpoints used by
// applicants and principals.
type ApplicationHandler struct {
	svc *registration.Service
}

type tokenRequest struct {
	Token string `json:"token" validate:"required,max=256"`
}

type resendRequest struct {
	Email string `json:"email" validate:"required,max=255"`
}

func NewApplicationHandler(svc *registration.Service) (*ApplicationHandler, error) {
	if svc == nil {
		return nil, fmt.Errorf("registration service is required")
	}
	return &ApplicationHandler{svc: svc}, nil
}

// POST /api/applications
func (h *ApplicationHandler) Submit(c *gin.Context) {
	var body registration.SubmitInput
	if !bindJSON(c, &body) {
		return
	}

	result, err := h.svc.Submit(requestContext(c), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

// POST /api/applications/verify-applicant
func (h *ApplicationHandler) VerifyApplicant(c *gin.Context) {
	var body tokenRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.svc.VerifyApplicant(requestContext(c), strings.TrimSpace(body.Token))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// POST /api/applications/confirm-principal
func (h *ApplicationHandler) ConfirmPrincipal(c *gin.Context) {
	var body tokenRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.svc.ConfirmPrincipal(requestContext(c), strings.TrimSpace(body.Token))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GET /api/applications/principal-view?token=
func (h *ApplicationHandler) PrincipalView(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, errors.NewBadRequest("token is required"))
		return
	}

	view, err := h.svc.PrincipalView(requestContext(c), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// POST /api/applications/:id/resend-verification
func (h *ApplicationHandler) ResendVerification(c *gin.Context) {
	var body resendRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.svc.ResendVerification(requestContext(c), applicationID(c), body.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GET /api/applications/:id/status?email=
func (h *ApplicationHandler) Status(c *gin.Context) {
	view, err := h.svc.GetStatus(requestContext(c), applicationID(c), c.Query("email"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// GET /api/applications/countries
func (h *ApplicationHandler) Countries(c *gin.Context) {
	response.Success(c, http.StatusOK, h.svc.Countries())
}

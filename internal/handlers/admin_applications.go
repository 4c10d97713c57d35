package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/middleware"
	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/registration"
	"github.com/EL-KENDEH-TEAM/EK-SMS/pkg/response"
)

// AdminApplicationHandler serves the reviewer queue. Every route expects
// middleware.RequireReviewer to have run.
type AdminApplicationHandler struct {
	svc *registration.Service
}

type requestInfoRequest struct {
	Message string `json:"message" validate:"required"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type noteRequest struct {
	Note string `json:"note" validate:"required"`
}

func NewAdminApplicationHandler(svc *registration.Service) (*AdminApplicationHandler, error) {
	if svc == nil {
		return nil, fmt.Errorf("registration service is required")
	}
	return &AdminApplicationHandler{svc: svc}, nil
}

// GET /api/admin/applications
func (h *AdminApplicationHandler) List(c *gin.Context) {
	var filter registration.ListFilter
	if !bindQuery(c, &filter) {
		return
	}

	result, err := h.svc.ListApplications(requestContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, result.Items, response.NewMeta(result.Page, result.PerPage, result.Total))
}

// GET /api/admin/applications/stats
func (h *AdminApplicationHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// GET /api/admin/applications/:id
func (h *AdminApplicationHandler) Get(c *gin.Context) {
	detail, err := h.svc.GetDetail(requestContext(c), applicationID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}

// POST /api/admin/applications/:id/start-review
func (h *AdminApplicationHandler) StartReview(c *gin.Context) {
	app, err := h.svc.StartReview(requestContext(c), applicationID(c), middleware.Reviewer(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, app)
}

// POST /api/admin/applications/:id/request-info
func (h *AdminApplicationHandler) RequestInfo(c *gin.Context) {
	var body requestInfoRequest
	if !bindAndValidate(c, &body) {
		return
	}

	app, err := h.svc.RequestMoreInfo(requestContext(c), applicationID(c), middleware.Reviewer(c), body.Message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, app)
}

// POST /api/admin/applications/:id/approve
func (h *AdminApplicationHandler) Approve(c *gin.Context) {
	app, err := h.svc.Approve(requestContext(c), applicationID(c), middleware.Reviewer(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, app)
}

// POST /api/admin/applications/:id/reject
func (h *AdminApplicationHandler) Reject(c *gin.Context) {
	var body rejectRequest
	if !bindAndValidate(c, &body) {
		return
	}

	app, err := h.svc.Reject(requestContext(c), applicationID(c), middleware.Reviewer(c), body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, app)
}

// POST /api/admin/applications/:id/notes
func (h *AdminApplicationHandler) AddNote(c *gin.Context) {
	var body noteRequest
	if !bindAndValidate(c, &body) {
		return
	}

	note, err := h.svc.AddNote(requestContext(c), applicationID(c), middleware.Reviewer(c), body.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, note)
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/case-assignment-api/internal/dto"
	"github.com/noah-isme/case-assignment-api/internal/models"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
	"github.com/noah-isme/case-assignment-api/pkg/response"
)

type assignmentService interface {
	AssignCase(ctx context.Context, caseID string, req dto.AssignCaseRequest, actor *models.JWTClaims) (*models.AssignmentOutcome, error)
	ReassignCase(ctx context.Context, caseID string, req dto.ReassignCaseRequest, actor *models.JWTClaims) (*models.AssignmentOutcome, error)
	ReleaseCase(ctx context.Context, caseID string, req dto.ReleaseCaseRequest, actor *models.JWTClaims) ([]models.CaseAssignment, error)
	DeactivateAssignment(ctx context.Context, assignmentID string, req dto.DeactivateAssignmentRequest, actor *models.JWTClaims) (*models.CaseAssignment, error)
	ActiveAssignments(ctx context.Context, caseID string, actor *models.JWTClaims) ([]models.CaseAssignment, error)
	History(ctx context.Context, caseID string, page, size int, actor *models.JWTClaims) ([]models.CaseAssignmentHistory, *models.Pagination, error)
}

type historyExporter interface {
	Export(ctx context.Context, caseID string, req dto.HistoryExportRequest, actor *models.JWTClaims) (*dto.HistoryExportResult, error)
}

// AssignmentHandler exposes case assignment endpoints.
type AssignmentHandler struct {
	service  assignmentService
	exporter historyExporter
}

// NewAssignmentHandler builds a new handler.
func NewAssignmentHandler(service assignmentService, exporter historyExporter) *AssignmentHandler {
	return &AssignmentHandler{service: service, exporter: exporter}
}

// Assign godoc
// @Summary Assign a case
// @Description Assigns the case to the given user, or lets the rule engine pick an attorney when userId is omitted.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param caseId path string true "Case ID"
// @Param payload body dto.AssignCaseRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope "No eligible attorney; meta.warning is set"
// @Failure 409 {object} response.Envelope
// @Router /cases/{caseId}/assignments [post]
func (h *AssignmentHandler) Assign(c *gin.Context) {
	var req dto.AssignCaseRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	outcome, err := h.service.AssignCase(c.Request.Context(), c.Param("caseId"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	writeOutcome(c, outcome)
}

// Reassign godoc
// @Summary Reassign a case role
// @Tags Assignments
// @Accept json
// @Produce json
// @Param caseId path string true "Case ID"
// @Param payload body dto.ReassignCaseRequest true "Reassignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /cases/{caseId}/assignments/reassign [post]
func (h *AssignmentHandler) Reassign(c *gin.Context) {
	var req dto.ReassignCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reassignment payload"))
		return
	}
	outcome, err := h.service.ReassignCase(c.Request.Context(), c.Param("caseId"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	writeOutcome(c, outcome)
}

// Release godoc
// @Summary Release every active assignment of a closed case
// @Tags Assignments
// @Accept json
// @Produce json
// @Param caseId path string true "Case ID"
// @Param payload body dto.ReleaseCaseRequest true "Release payload"
// @Success 200 {object} response.Envelope
// @Router /cases/{caseId}/release [post]
func (h *AssignmentHandler) Release(c *gin.Context) {
	var req dto.ReleaseCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid release payload"))
		return
	}
	released, err := h.service.ReleaseCase(c.Request.Context(), c.Param("caseId"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, released, nil)
}

// Active godoc
// @Summary List active assignments of a case
// @Tags Assignments
// @Produce json
// @Param caseId path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /cases/{caseId}/assignments [get]
func (h *AssignmentHandler) Active(c *gin.Context) {
	items, err := h.service.ActiveAssignments(c.Request.Context(), c.Param("caseId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// History godoc
// @Summary Paginated assignment history of a case
// @Tags Assignments
// @Produce json
// @Param caseId path string true "Case ID"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size (max 200)"
// @Success 200 {object} response.Envelope
// @Router /cases/{caseId}/assignments/history [get]
func (h *AssignmentHandler) History(c *gin.Context) {
	items, pagination, err := h.service.History(c.Request.Context(), c.Param("caseId"), queryInt(c, "page"), queryInt(c, "pageSize"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ExportHistory godoc
// @Summary Export assignment history as CSV or PDF
// @Tags Assignments
// @Accept json
// @Produce json
// @Param caseId path string true "Case ID"
// @Param payload body dto.HistoryExportRequest false "Export format"
// @Success 201 {object} response.Envelope
// @Router /cases/{caseId}/assignments/history/export [post]
func (h *AssignmentHandler) ExportHistory(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "history export is not configured"))
		return
	}
	var req dto.HistoryExportRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	if format := c.Query("format"); format != "" && req.Format == "" {
		req.Format = format
	}
	result, err := h.exporter.Export(c.Request.Context(), c.Param("caseId"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Deactivate godoc
// @Summary Deactivate one assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.DeactivateAssignmentRequest true "Deactivation payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/deactivate [post]
func (h *AssignmentHandler) Deactivate(c *gin.Context) {
	var req dto.DeactivateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid deactivation payload"))
		return
	}
	assignment, err := h.service.DeactivateAssignment(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

func writeOutcome(c *gin.Context, outcome *models.AssignmentOutcome) {
	if !outcome.Assigned {
		response.Warning(c, outcome, outcome.Warning)
		return
	}
	response.Created(c, outcome)
}

// bindOptionalJSON accepts an empty body as the zero value.
func bindOptionalJSON(c *gin.Context, dest interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(dest)
}

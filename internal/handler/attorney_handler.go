package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/case-assignment-api/internal/dto"
	"github.com/noah-isme/case-assignment-api/internal/middleware"
	"github.com/noah-isme/case-assignment-api/internal/models"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
	"github.com/noah-isme/case-assignment-api/pkg/response"
)

type expertiseService interface {
	List(ctx context.Context, attorneyID string) ([]models.ExpertiseView, error)
	Upsert(ctx context.Context, attorneyID string, req dto.UpsertExpertiseRequest) (*models.ExpertiseView, error)
}

type workloadService interface {
	Snapshot(ctx context.Context, attorneyID string, actor *models.JWTClaims) (*models.UserWorkload, bool, error)
	RecalculateFor(ctx context.Context, attorneyID string, asOf time.Time, actor *models.JWTClaims) (*models.UserWorkload, error)
}

// AttorneyHandler exposes per-attorney expertise and workload endpoints.
type AttorneyHandler struct {
	expertise expertiseService
	workload  workloadService
	now       func() time.Time
}

// NewAttorneyHandler builds a new handler.
func NewAttorneyHandler(expertise expertiseService, workload workloadService) *AttorneyHandler {
	return &AttorneyHandler{expertise: expertise, workload: workload, now: time.Now}
}

// Expertise godoc
// @Summary List an attorney's expertise with computed scores
// @Tags Attorneys
// @Produce json
// @Param id path string true "Attorney user ID"
// @Success 200 {object} response.Envelope
// @Router /attorneys/{id}/expertise [get]
func (h *AttorneyHandler) Expertise(c *gin.Context) {
	items, err := h.expertise.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// UpsertExpertise godoc
// @Summary Create or update one expertise area
// @Tags Attorneys
// @Accept json
// @Produce json
// @Param id path string true "Attorney user ID"
// @Param payload body dto.UpsertExpertiseRequest true "Expertise payload"
// @Success 200 {object} response.Envelope
// @Router /attorneys/{id}/expertise [put]
func (h *AttorneyHandler) UpsertExpertise(c *gin.Context) {
	var req dto.UpsertExpertiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid expertise payload"))
		return
	}
	view, err := h.expertise.Upsert(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Workload godoc
// @Summary Latest workload snapshot of an attorney
// @Tags Attorneys
// @Produce json
// @Param id path string true "Attorney user ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attorneys/{id}/workload [get]
func (h *AttorneyHandler) Workload(c *gin.Context) {
	snapshot, cacheHit, err := h.workload.Snapshot(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, snapshot, nil, middleware.Meta(c))
}

// RecalculateWorkload godoc
// @Summary Recalculate an attorney's workload now
// @Tags Attorneys
// @Produce json
// @Param id path string true "Attorney user ID"
// @Success 200 {object} response.Envelope
// @Router /attorneys/{id}/workload/recalculate [post]
func (h *AttorneyHandler) RecalculateWorkload(c *gin.Context) {
	snapshot, err := h.workload.RecalculateFor(c.Request.Context(), c.Param("id"), h.now(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil, middleware.Meta(c))
}

package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/case-assignment-api/internal/dto"
	"github.com/noah-isme/case-assignment-api/internal/models"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
	"github.com/noah-isme/case-assignment-api/pkg/response"
)

type ruleService interface {
	List(ctx context.Context, organizationID string, includeInactive bool) ([]models.AssignmentRule, error)
	Get(ctx context.Context, organizationID, id string) (*models.AssignmentRule, error)
	Create(ctx context.Context, organizationID string, req dto.UpsertRuleRequest) (*models.AssignmentRule, error)
	Update(ctx context.Context, organizationID, id string, req dto.UpsertRuleRequest) (*models.AssignmentRule, error)
	Deactivate(ctx context.Context, organizationID, id string) (*models.AssignmentRule, error)
}

type rulePreviewer interface {
	Preview(ctx context.Context, caseID string, actor *models.JWTClaims) (*dto.EvaluateRuleResult, error)
}

// RuleHandler exposes assignment rule administration.
type RuleHandler struct {
	service ruleService
	preview rulePreviewer
}

// NewRuleHandler builds a new handler.
func NewRuleHandler(service ruleService, preview rulePreviewer) *RuleHandler {
	return &RuleHandler{service: service, preview: preview}
}

// List godoc
// @Summary List assignment rules
// @Tags Rules
// @Produce json
// @Param includeInactive query bool false "Include deactivated rules"
// @Success 200 {object} response.Envelope
// @Router /rules [get]
func (h *RuleHandler) List(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.Query("includeInactive"))
	rules, err := h.service.List(c.Request.Context(), organizationFromContext(c), includeInactive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// Get godoc
// @Summary Get an assignment rule
// @Tags Rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} response.Envelope
// @Router /rules/{id} [get]
func (h *RuleHandler) Get(c *gin.Context) {
	rule, err := h.service.Get(c.Request.Context(), organizationFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// Create godoc
// @Summary Create an assignment rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param payload body dto.UpsertRuleRequest true "Rule payload"
// @Success 201 {object} response.Envelope
// @Router /rules [post]
func (h *RuleHandler) Create(c *gin.Context) {
	var req dto.UpsertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rule payload"))
		return
	}
	rule, err := h.service.Create(c.Request.Context(), organizationFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rule)
}

// Update godoc
// @Summary Replace an assignment rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param payload body dto.UpsertRuleRequest true "Rule payload"
// @Success 200 {object} response.Envelope
// @Router /rules/{id} [put]
func (h *RuleHandler) Update(c *gin.Context) {
	var req dto.UpsertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rule payload"))
		return
	}
	rule, err := h.service.Update(c.Request.Context(), organizationFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// Deactivate godoc
// @Summary Deactivate an assignment rule
// @Tags Rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} response.Envelope
// @Router /rules/{id}/deactivate [post]
func (h *RuleHandler) Deactivate(c *gin.Context) {
	rule, err := h.service.Deactivate(c.Request.Context(), organizationFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rule, nil)
}

// Evaluate godoc
// @Summary Dry-run rule selection and candidate ranking for a case
// @Tags Rules
// @Accept json
// @Produce json
// @Param payload body dto.EvaluateRuleRequest true "Case to evaluate"
// @Success 200 {object} response.Envelope
// @Router /rules/evaluate [post]
func (h *RuleHandler) Evaluate(c *gin.Context) {
	var req dto.EvaluateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid evaluation payload"))
		return
	}
	result, err := h.preview.Preview(c.Request.Context(), req.CaseID, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/case-assignment-api/internal/dto"
	"github.com/noah-isme/case-assignment-api/internal/models"
	"github.com/noah-isme/case-assignment-api/internal/service"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
	"github.com/noah-isme/case-assignment-api/pkg/response"
)

type transferService interface {
	RequestTransfer(ctx context.Context, req dto.CreateTransferRequest, actor *models.JWTClaims) (*models.CaseTransferRequest, error)
	Process(ctx context.Context, id string, req dto.ProcessTransferRequest, actor *models.JWTClaims) (*service.TransferResult, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.CaseTransferRequest, error)
	List(ctx context.Context, query dto.TransferQuery, actor *models.JWTClaims) ([]models.CaseTransferRequest, *models.Pagination, error)
}

// TransferHandler exposes the case transfer workflow.
type TransferHandler struct {
	service transferService
}

// NewTransferHandler builds a new handler.
func NewTransferHandler(service transferService) *TransferHandler {
	return &TransferHandler{service: service}
}

// Create godoc
// @Summary Request a case transfer
// @Tags Transfers
// @Accept json
// @Produce json
// @Param payload body dto.CreateTransferRequest true "Transfer payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /transfers [post]
func (h *TransferHandler) Create(c *gin.Context) {
	var req dto.CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transfer payload"))
		return
	}
	request, err := h.service.RequestTransfer(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Process godoc
// @Summary Approve, reject or cancel a pending transfer
// @Tags Transfers
// @Accept json
// @Produce json
// @Param id path string true "Transfer request ID"
// @Param payload body dto.ProcessTransferRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /transfers/{id}/process [post]
func (h *TransferHandler) Process(c *gin.Context) {
	var req dto.ProcessTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	req.Decision = models.TransferStatus(strings.ToUpper(strings.TrimSpace(string(req.Decision))))
	result, err := h.service.Process(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Get a transfer request
// @Tags Transfers
// @Produce json
// @Param id path string true "Transfer request ID"
// @Success 200 {object} response.Envelope
// @Router /transfers/{id} [get]
func (h *TransferHandler) Get(c *gin.Context) {
	request, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// List godoc
// @Summary List transfer requests
// @Tags Transfers
// @Produce json
// @Param caseId query string false "Case ID"
// @Param status query string false "Comma separated statuses"
// @Param userId query string false "Source or target attorney"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Router /transfers [get]
func (h *TransferHandler) List(c *gin.Context) {
	query := dto.TransferQuery{
		CaseID:   strings.TrimSpace(c.Query("caseId")),
		UserID:   strings.TrimSpace(c.Query("userId")),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "pageSize"),
	}
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if status := strings.ToUpper(strings.TrimSpace(raw)); status != "" {
			query.Status = append(query.Status, models.TransferStatus(status))
		}
	}
	items, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

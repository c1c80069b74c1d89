package dto

import "github.com/noah-isme/case-assignment-api/internal/models"

// CreateTransferRequest opens a transfer of a case's primary assignment.
type CreateTransferRequest struct {
	CaseID     string                 `json:"caseId" validate:"required,uuid"`
	FromUserID string                 `json:"fromUserId" validate:"required,uuid"`
	ToUserID   string                 `json:"toUserId" validate:"required,uuid,nefield=FromUserID"`
	Reason     string                 `json:"reason" validate:"required,max=2000"`
	Urgency    models.TransferUrgency `json:"urgency" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
}

// ProcessTransferRequest records the approver's decision.
type ProcessTransferRequest struct {
	Decision models.TransferStatus `json:"decision" validate:"required,oneof=APPROVED REJECTED CANCELLED"`
	Notes    string                `json:"notes" validate:"max=2000"`
}

// TransferQuery mirrors supported listing filters.
type TransferQuery struct {
	CaseID   string
	Status   []models.TransferStatus
	UserID   string
	Page     int
	PageSize int
}

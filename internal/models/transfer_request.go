package models

import "time"

// TransferUrgency ranks how quickly a transfer should be processed.
type TransferUrgency string

const (
	UrgencyLow    TransferUrgency = "LOW"
	UrgencyMedium TransferUrgency = "MEDIUM"
	UrgencyHigh   TransferUrgency = "HIGH"
	UrgencyUrgent TransferUrgency = "URGENT"
)

// TransferStatus captures the approval workflow. PENDING is the only mutable state.
type TransferStatus string

const (
	TransferPending   TransferStatus = "PENDING"
	TransferApproved  TransferStatus = "APPROVED"
	TransferRejected  TransferStatus = "REJECTED"
	TransferCancelled TransferStatus = "CANCELLED"
)

// Terminal reports whether s can no longer change.
func (s TransferStatus) Terminal() bool {
	return s == TransferApproved || s == TransferRejected || s == TransferCancelled
}

// CaseTransferRequest asks to move a case's primary assignment between attorneys.
type CaseTransferRequest struct {
	ID            string          `db:"id" json:"id"`
	CaseID        string          `db:"case_id" json:"caseId"`
	FromUserID    string          `db:"from_user_id" json:"fromUserId"`
	ToUserID      string          `db:"to_user_id" json:"toUserId"`
	RequestedBy   string          `db:"requested_by" json:"requestedBy"`
	Reason        string          `db:"reason" json:"reason"`
	Urgency       TransferUrgency `db:"urgency" json:"urgency"`
	Status        TransferStatus  `db:"status" json:"status"`
	ApprovedBy    *string         `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovalNotes *string         `db:"approval_notes" json:"approvalNotes,omitempty"`
	RequestedAt   time.Time       `db:"requested_at" json:"requestedAt"`
	ProcessedAt   *time.Time      `db:"processed_at" json:"processedAt,omitempty"`
}

// TransferFilter constrains listing queries.
type TransferFilter struct {
	CaseID string
	Status []TransferStatus
	UserID string
	Limit  int
	Offset int
}

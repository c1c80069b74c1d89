package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// HistoryAction is the transition recorded in the assignment history log.
type HistoryAction string

const (
	HistoryAssigned    HistoryAction = "ASSIGNED"
	HistoryReassigned  HistoryAction = "REASSIGNED"
	HistoryRemoved     HistoryAction = "REMOVED"
	HistoryTransferred HistoryAction = "TRANSFERRED"
	HistoryExpired     HistoryAction = "EXPIRED"
)

// CaseAssignmentHistory is an immutable row of the append-only assignment log.
type CaseAssignmentHistory struct {
	ID               string         `db:"id" json:"id"`
	CaseAssignmentID string         `db:"case_assignment_id" json:"caseAssignmentId"`
	CaseID           string         `db:"case_id" json:"caseId"`
	UserID           string         `db:"user_id" json:"userId"`
	Action           HistoryAction  `db:"action" json:"action"`
	PreviousUserID   *string        `db:"previous_user_id" json:"previousUserId,omitempty"`
	NewUserID        *string        `db:"new_user_id" json:"newUserId,omitempty"`
	Reason           *string        `db:"reason" json:"reason,omitempty"`
	PerformedBy      *string        `db:"performed_by" json:"performedBy,omitempty"`
	PerformedAt      time.Time      `db:"performed_at" json:"performedAt"`
	Metadata         types.JSONText `db:"metadata" json:"metadata" swaggertype:"object"`
}

// HistoryFilter pages through a case's history.
type HistoryFilter struct {
	CaseID string
	Limit  int
	Offset int
}

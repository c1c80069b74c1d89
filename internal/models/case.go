package models

import (
	"strings"

	"github.com/jmoiron/sqlx/types"
)

// CaseAttributes is the read model of a case supplied by the case-management system.
type CaseAttributes struct {
	CaseID         string            `db:"id" json:"caseId"`
	OrganizationID string            `db:"organization_id" json:"organizationId"`
	CaseType       string            `db:"case_type" json:"caseType"`
	Priority       string            `db:"priority" json:"priority"`
	ClientID       *string           `db:"client_id" json:"clientId,omitempty"`
	PracticeArea   *string           `db:"practice_area" json:"practiceArea,omitempty"`
	Status         string            `db:"status" json:"status"`
	CustomFields   types.JSONText    `db:"custom_fields" json:"-"`
	Custom         map[string]string `db:"-" json:"custom,omitempty"`
}

// Lookup resolves a rule condition field against the case. Well-known fields are
// matched case-insensitively; anything else is read from Custom.
func (a CaseAttributes) Lookup(field string) (string, bool) {
	switch strings.ToLower(field) {
	case "casetype", "case_type":
		return a.CaseType, a.CaseType != ""
	case "priority":
		return a.Priority, a.Priority != ""
	case "clientid", "client_id":
		return deref(a.ClientID)
	case "practicearea", "practice_area":
		return deref(a.PracticeArea)
	case "status":
		return a.Status, a.Status != ""
	case "organizationid", "organization_id":
		return a.OrganizationID, a.OrganizationID != ""
	}
	v, ok := a.Custom[field]
	return v, ok
}

// Area returns the practice area or an empty string.
func (a CaseAttributes) Area() string {
	v, _ := deref(a.PracticeArea)
	return v
}

func deref(s *string) (string, bool) {
	if s == nil || *s == "" {
		return "", false
	}
	return *s, true
}

// AttorneyActivity summarises task and billing data used in workload snapshots.
type AttorneyActivity struct {
	OverdueTasksCount      int     `db:"overdue_tasks_count"`
	UpcomingDeadlinesCount int     `db:"upcoming_deadlines_count"`
	BillableHoursWeek      float64 `db:"billable_hours_week"`
}

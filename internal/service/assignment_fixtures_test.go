package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/case-assignment-api/internal/models"
	"github.com/noah-isme/case-assignment-api/internal/repository"
	"github.com/noah-isme/case-assignment-api/pkg/database"
)

// memStore keeps assignments and history in memory and enforces the partial
// unique index on active (case, role) rows the way PostgreSQL does.
type memStore struct {
	mu          sync.Mutex
	seq         int
	assignments []models.CaseAssignment
	history     []models.CaseAssignmentHistory
	previous    map[string][]models.PreviousAttorney
	failAppend  error
	failCreate  error
	lockedCases []string
	// activeAtFailure holds the active rows seen when failCreate fired.
	activeAtFailure int
}

func newMemStore() *memStore {
	return &memStore{previous: map[string][]models.PreviousAttorney{}}
}

func (m *memStore) LockCase(ctx context.Context, exec sqlx.ExtContext, caseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockedCases = append(m.lockedCases, caseID)
	return nil
}

func (m *memStore) ListActiveForUpdate(ctx context.Context, exec sqlx.ExtContext, caseID string, role models.RoleType) ([]models.CaseAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CaseAssignment
	for _, a := range m.assignments {
		if a.CaseID == caseID && a.RoleType == role && a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CaseAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignments {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memStore) ListActiveByCase(ctx context.Context, exec sqlx.ExtContext, caseID string) ([]models.CaseAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CaseAssignment
	for _, a := range m.assignments {
		if a.CaseID == caseID && a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.CaseAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		m.activeAtFailure = 0
		for _, a := range m.assignments {
			if a.Active && a.CaseID == assignment.CaseID {
				m.activeAtFailure++
			}
		}
		return m.failCreate
	}
	for _, a := range m.assignments {
		if a.Active && a.CaseID == assignment.CaseID && a.RoleType == assignment.RoleType {
			return &pq.Error{Code: database.CodeUniqueViolation, Constraint: repository.ActiveAssignmentIndex}
		}
	}
	m.seq++
	assignment.ID = fmt.Sprintf("asg-%03d", m.seq)
	m.assignments = append(m.assignments, *assignment)
	return nil
}

func (m *memStore) Deactivate(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.assignments {
		a := &m.assignments[i]
		if a.ID != id || !a.Active {
			continue
		}
		a.Active = false
		if a.EffectiveTo == nil || a.EffectiveTo.After(at) {
			end := at
			a.EffectiveTo = &end
		}
		return true, nil
	}
	return false, nil
}

func (m *memStore) ListLapsed(ctx context.Context, asOf time.Time, limit int) ([]models.CaseAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CaseAssignment
	for _, a := range m.assignments {
		if a.Active && a.EffectiveTo != nil && !a.EffectiveTo.After(asOf) {
			out = append(out, a)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListPreviousAttorneys(ctx context.Context, caseID string, clientID *string, caseType string) ([]models.PreviousAttorney, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous[caseID], nil
}

func (m *memStore) Append(ctx context.Context, exec sqlx.ExtContext, entry *models.CaseAssignmentHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend != nil {
		return m.failAppend
	}
	entry.ID = fmt.Sprintf("hist-%03d", len(m.history)+1)
	m.history = append(m.history, *entry)
	return nil
}

func (m *memStore) ListByCase(ctx context.Context, filter models.HistoryFilter) ([]models.CaseAssignmentHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CaseAssignmentHistory
	for _, h := range m.history {
		if h.CaseID == filter.CaseID {
			out = append(out, h)
		}
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memStore) CountByCase(ctx context.Context, caseID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, h := range m.history {
		if h.CaseID == caseID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) active(caseID string) []models.CaseAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CaseAssignment
	for _, a := range m.assignments {
		if a.CaseID == caseID && a.Active {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleType < out[j].RoleType })
	return out
}

func (m *memStore) historyFor(caseID string) []models.CaseAssignmentHistory {
	entries, _ := m.ListByCase(context.Background(), models.HistoryFilter{CaseID: caseID})
	return entries
}

// memTx runs bodies one at a time and restores the store when a body fails,
// standing in for a serializable transaction.
type memTx struct {
	mu    sync.Mutex
	store *memStore
	runs  int
}

func (t *memTx) WithinTx(ctx context.Context, fn database.TxFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs++

	t.store.mu.Lock()
	assignments := append([]models.CaseAssignment(nil), t.store.assignments...)
	history := append([]models.CaseAssignmentHistory(nil), t.store.history...)
	seq := t.store.seq
	t.store.mu.Unlock()

	if err := fn(ctx, nil); err != nil {
		t.store.mu.Lock()
		t.store.assignments = assignments
		t.store.history = history
		t.store.seq = seq
		t.store.mu.Unlock()
		return err
	}
	return nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(t time.Time) *fixedClock { return &fixedClock{now: t} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLifecycle(store *memStore, clock *fixedClock) *AssignmentLifecycle {
	opts := []LifecycleOption{}
	if clock != nil {
		opts = append(opts, WithLifecycleClock(clock.Now))
	}
	return NewAssignmentLifecycle(store, store, &memTx{store: store}, NewCaseLocker(), nil, opts...)
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

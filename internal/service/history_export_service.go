package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/case-assignment-api/internal/dto"
	"github.com/noah-isme/case-assignment-api/internal/models"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
	"github.com/noah-isme/case-assignment-api/pkg/export"
)

const historyExportMaxRows = 10000

type exportStorage interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	DownloadURL(ctx context.Context, key string) (string, time.Time, error)
}

type exportCleaner interface {
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// HistoryExportService renders a case's assignment history to CSV or PDF and
// stores it behind a time-limited download URL.
type HistoryExportService struct {
	cases     caseAttributeReader
	history   historyReader
	storage   exportStorage
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewHistoryExportService constructs the service.
func NewHistoryExportService(cases caseAttributeReader, history historyReader, storage exportStorage, validate *validator.Validate, logger *zap.Logger) *HistoryExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryExportService{
		cases:     cases,
		history:   history,
		storage:   storage,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Export renders the case history and returns its download URL.
func (s *HistoryExportService) Export(ctx context.Context, caseID string, req dto.HistoryExportRequest, actor *models.JWTClaims) (*dto.HistoryExportResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	attrs, err := s.cases.GetCaseAttributes(ctx, caseID)
	if err != nil {
		return nil, mapCaseLookupError(err)
	}
	if actor != nil && actor.OrganizationID != "" && actor.OrganizationID != attrs.OrganizationID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
	}

	entries, err := s.history.ListByCase(ctx, models.HistoryFilter{CaseID: attrs.CaseID, Limit: historyExportMaxRows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list history")
	}

	payload, err := export.Render(format, historyDataset(attrs.CaseID, entries))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	key := fmt.Sprintf("history/%s/%s.%s", attrs.CaseID, s.now().Format("20060102T150405"), format.Extension())
	if err := s.storage.Put(ctx, key, format.ContentType(), payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	url, expiresAt, err := s.storage.DownloadURL(ctx, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export url")
	}

	s.logger.Info("history exported",
		zap.String("case_id", attrs.CaseID),
		zap.String("format", string(format)),
		zap.Int("rows", len(entries)),
	)
	return &dto.HistoryExportResult{URL: url, Format: string(format), Rows: len(entries), ExpiresAt: expiresAt}, nil
}

// StartCleanup removes stale export files every interval until ctx is done.
func (s *HistoryExportService) StartCleanup(ctx context.Context, cleaner exportCleaner, ttl, interval time.Duration) {
	if cleaner == nil || ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := cleaner.CleanupOlderThan(ttl)
				if err != nil {
					s.logger.Warn("export cleanup failed", zap.Error(err))
					continue
				}
				if len(removed) > 0 {
					s.logger.Info("export files removed", zap.Int("count", len(removed)))
				}
			}
		}
	}()
}

func historyDataset(caseID string, entries []models.CaseAssignmentHistory) export.Dataset {
	data := export.Dataset{
		Title:   "Assignment history " + caseID,
		Headers: []string{"Performed At", "Action", "Attorney", "Previous", "New", "Performed By", "Reason"},
		Rows:    make([][]string, 0, len(entries)),
	}
	for _, e := range entries {
		data.Rows = append(data.Rows, []string{
			e.PerformedAt.UTC().Format(time.RFC3339),
			string(e.Action),
			e.UserID,
			stringOrEmpty(e.PreviousUserID),
			stringOrEmpty(e.NewUserID),
			stringOrEmpty(e.PerformedBy),
			strings.TrimSpace(stringOrEmpty(e.Reason)),
		})
	}
	return data
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func mapCaseLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "case not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case")
}

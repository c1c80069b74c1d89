package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/case-assignment-api/internal/models"
)

// AdminNotifier is told when automatic assignment leaves a case without an attorney.
type AdminNotifier interface {
	NotifyUnassigned(ctx context.Context, attrs models.CaseAttributes, reason string) error
}

// LogNotifier reports unassigned cases to the structured log. Delivery to people
// belongs to the notification system.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs the notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// NotifyUnassigned implements AdminNotifier.
func (n *LogNotifier) NotifyUnassigned(ctx context.Context, attrs models.CaseAttributes, reason string) error {
	n.logger.Warn("case requires manual assignment",
		zap.String("case_id", attrs.CaseID),
		zap.String("organization_id", attrs.OrganizationID),
		zap.String("case_type", attrs.CaseType),
		zap.String("reason", reason),
	)
	return nil
}

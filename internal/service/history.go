package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/mentor-queue/internal/auth"
	"github.com/spec-kit/mentor-queue/internal/domain"
	"github.com/spec-kit/mentor-queue/internal/repository"
)

// recordHistory appends an audit entry. Failures are logged and never undo
// the transition they describe.
func recordHistory(ctx context.Context, repo repository.TicketHistoryRepository, logger *zap.Logger, actor *auth.Principal, ticketID int64, change domain.TicketChangeType, oldValue, newValue map[string]any) {
	if repo == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:   ticketID,
		ChangeType: change,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	if actor != nil {
		id := actor.UserID
		entry.ChangedByID = &id
		entry.ChangedRole = actor.Role
	}
	if err := repo.Create(ctx, entry); err != nil {
		logger.Warn("record ticket history failed",
			zap.Int64("ticket_id", ticketID),
			zap.String("change_type", string(change)),
			zap.Error(err))
	}
}

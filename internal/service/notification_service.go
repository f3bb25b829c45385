package service

import (
	"context"
	"fmt"

	"sales-order-service/internal/models"
	"sales-order-service/internal/util"

	"go.uber.org/zap"
)

// NotificationLimit caps the feed returned to clients
const NotificationLimit = 50

// NotificationService manages the in-app notification feed
type NotificationService struct {
	store  NotificationStore
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(store NotificationStore) *NotificationService {
	return &NotificationService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// rolesFor lists the notification scopes visible to the actor
func rolesFor(actor models.Actor) []string {
	if actor.Role == "" || actor.Role == models.NotificationRoleAll {
		return []string{models.NotificationRoleAll}
	}
	return []string{models.NotificationRoleAll, actor.Role}
}

// List returns the most recent notifications for the actor
func (s *NotificationService) List(ctx context.Context, actor models.Actor) ([]models.Notification, error) {
	ctx, span := util.StartSpan(ctx, "NotificationService.List")
	defer span.End()

	notifications, err := s.store.ListNotifications(ctx, rolesFor(actor), NotificationLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// MarkAllRead flags every notification in the actor's scopes as read
func (s *NotificationService) MarkAllRead(ctx context.Context, actor models.Actor) (int64, error) {
	ctx, span := util.StartSpan(ctx, "NotificationService.MarkAllRead")
	defer span.End()

	n, err := s.store.MarkNotificationsRead(ctx, rolesFor(actor))
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	s.logger.Info("Notifications marked read", zap.Int64("count", n), zap.Int64("user_id", actor.ID))
	return n, nil
}

// ClearAll deletes every notification in the actor's scopes
func (s *NotificationService) ClearAll(ctx context.Context, actor models.Actor) (int64, error) {
	ctx, span := util.StartSpan(ctx, "NotificationService.ClearAll")
	defer span.End()

	n, err := s.store.ClearNotifications(ctx, rolesFor(actor))
	if err != nil {
		return 0, fmt.Errorf("failed to clear notifications: %w", err)
	}
	s.logger.Info("Notifications cleared", zap.Int64("count", n), zap.Int64("user_id", actor.ID))
	return n, nil
}

package service

import (
	"context"
	"time"

	"sales-order-service/internal/models"
	"sales-order-service/internal/pipeline"
	"sales-order-service/internal/store"
)

// OrderStore is the persistence the order services need
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order, notify store.NotifyFunc) (*models.Notification, error)
	BulkCreateOrders(ctx context.Context, orders []*models.Order, n *models.Notification) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	UpdateOrder(ctx context.Context, id int64, changes []store.Change, n *models.Notification) (*models.Order, error)
	DeleteOrder(ctx context.Context, id int64, n *models.Notification) error
	ListOrders(ctx context.Context, scope models.Scope) ([]models.Order, error)
	ListStageOrders(ctx context.Context, stage pipeline.Stage, scope models.Scope) ([]models.Order, error)
}

// Directory is the user directory
type Directory interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	TeamMemberIDs(ctx context.Context, leaderID int64) ([]int64, error)
	ListTeam(ctx context.Context, leaderID int64) ([]models.User, error)
	ListAvailableUsers(ctx context.Context, excludeID int64, roles []string) ([]models.User, error)
	AssignLeader(ctx context.Context, userID, leaderID int64) (bool, error)
	UnassignLeader(ctx context.Context, userID, leaderID int64) (bool, error)
}

// NotificationStore persists in-app notifications
type NotificationStore interface {
	ListNotifications(ctx context.Context, roles []string, limit int) ([]models.Notification, error)
	MarkNotificationsRead(ctx context.Context, roles []string) (int64, error)
	ClearNotifications(ctx context.Context, roles []string) (int64, error)
}

// Publisher emits domain events after a write commits
type Publisher interface {
	PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error
	PublishTeamUpdated(ctx context.Context, userID, leaderID int64, action string) error
	PublishMailRequested(ctx context.Context, kind models.MailKind, o *models.Order) error
}

// Idempotency claims request keys so retried creates are not applied twice
type Idempotency interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, string, error)
	CompleteIdempotencyKey(ctx context.Context, key, result string, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// Background runs post-commit side effects
type Background func(task func(ctx context.Context))

// Detached runs each task on its own goroutine with a bounded context
func Detached(timeout time.Duration) Background {
	return func(task func(ctx context.Context)) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			task(ctx)
		}()
	}
}

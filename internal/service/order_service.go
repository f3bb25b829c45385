package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sales-order-service/internal/broker"
	"sales-order-service/internal/models"
	"sales-order-service/internal/pipeline"
	"sales-order-service/internal/redisclient"
	"sales-order-service/internal/sheet"
	"sales-order-service/internal/store"
	"sales-order-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService handles order business logic
type OrderService struct {
	store          OrderStore
	directory      Directory
	publisher      Publisher
	idempotency    Idempotency
	background     Background
	idempotencyTTL time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

// NewOrderService creates a new order service. idempotency may be nil.
func NewOrderService(
	store OrderStore,
	directory Directory,
	publisher Publisher,
	idempotency Idempotency,
	background Background,
	idempotencyTTL time.Duration,
) *OrderService {
	return &OrderService{
		store:          store,
		directory:      directory,
		publisher:      publisher,
		idempotency:    idempotency,
		background:     background,
		idempotencyTTL: idempotencyTTL,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// newNotification builds a feed entry attributed to the acting user
func newNotification(actor models.Actor, message string) *models.Notification {
	userID := actor.ID
	return &models.Notification{Message: message, Role: models.NotificationRoleAll, UserID: &userID}
}

func translateStoreError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// withIdempotency runs fn at most once per key. fn returns the order numbers
// it created, which a repeated request receives in its ConflictError.
func (s *OrderService) withIdempotency(ctx context.Context, actor models.Actor, key string, fn func() ([]string, error)) error {
	if key == "" || s.idempotency == nil {
		_, err := fn()
		return err
	}
	key = fmt.Sprintf("%d:%s", actor.ID, key)

	claimed, prior, err := s.idempotency.ClaimIdempotencyKey(ctx, key, s.idempotencyTTL)
	if err != nil {
		s.logger.Warn("Idempotency check unavailable", zap.String("key", key), zap.Error(err))
		_, err := fn()
		return err
	}
	if !claimed {
		conflict := &ConflictError{Key: key}
		if prior != redisclient.PendingResult && prior != "" {
			conflict.OrderIDs = strings.Split(prior, ",")
		}
		return conflict
	}

	ids, err := fn()
	if err != nil {
		if rerr := s.idempotency.ReleaseIdempotencyKey(ctx, key); rerr != nil {
			s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(rerr))
		}
		return err
	}
	if cerr := s.idempotency.CompleteIdempotencyKey(ctx, key, strings.Join(ids, ","), s.idempotencyTTL); cerr != nil {
		s.logger.Warn("Failed to record idempotency result", zap.String("key", key), zap.Error(cerr))
	}
	return nil
}

func (s *OrderService) publishOrderEvent(ctx context.Context, event *models.OrderEvent) {
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish order event",
			zap.String("event_type", event.EventType),
			zap.String("order_id", event.OrderID),
			zap.Error(err))
	}
}

func (s *OrderService) requestMail(ctx context.Context, kind models.MailKind, o *models.Order) {
	if err := s.publisher.PublishMailRequested(ctx, kind, o); err != nil {
		s.logger.Error("Failed to request customer mail",
			zap.String("kind", string(kind)),
			zap.String("order_id", o.OrderID),
			zap.Error(err))
	}
}

// CreateOrder validates the payload, mints an order number and stores the
// order together with its notification. Events and mail go out after commit.
func (s *OrderService) CreateOrder(ctx context.Context, actor models.Actor, in *OrderInput, poFilePath, idempotencyKey string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder", attribute.Int64("user_id", actor.ID))
	defer span.End()

	order, err := in.Normalize(actor, s.now())
	if err != nil {
		util.ValidationFailuresTotal.WithLabelValues("create").Inc()
		return nil, err
	}
	order.POFilePath = poFilePath

	var note *models.Notification
	err = s.withIdempotency(ctx, actor, idempotencyKey, func() ([]string, error) {
		n, err := s.store.CreateOrder(ctx, order, func(o *models.Order) *models.Notification {
			return newNotification(actor, fmt.Sprintf("New sales order created by %s for %s (Order ID: %s)",
				actor.DisplayName(), o.CustomerName, o.OrderID))
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create order: %w", err)
		}
		note = n
		return []string{order.OrderID}, nil
	})
	if err != nil {
		return nil, err
	}
	order.Creator = &models.UserRef{ID: actor.ID, Username: actor.Username}

	util.OrdersCreatedTotal.WithLabelValues("single").Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.OrderID),
		zap.Int64("created_by", actor.ID))

	event := broker.NewOrderEvent(models.EventTypeOrderCreated, order, note)
	snapshot := *order
	s.background(func(ctx context.Context) {
		s.publishOrderEvent(ctx, event)
		if snapshot.CustomerEmail != "" {
			s.requestMail(ctx, models.MailOrderReceived, &snapshot)
		}
	})

	return order, nil
}

// EditOrder applies an allow-listed partial update, runs the lifecycle rules
// and stores the result
func (s *OrderService) EditOrder(ctx context.Context, actor models.Actor, id int64, body map[string]json.RawMessage) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.EditOrder", attribute.Int64("id", id))
	defer span.End()

	prev, err := s.store.GetOrderByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err)
	}

	next, touched, err := applyEdit(prev, body)
	if err != nil {
		util.ValidationFailuresTotal.WithLabelValues("edit").Inc()
		return nil, err
	}
	if len(touched) == 0 {
		util.ValidationFailuresTotal.WithLabelValues("edit").Inc()
		return nil, invalid("No updatable fields provided")
	}

	outcome := pipeline.Apply(pipeline.Edit{Prev: prev, Next: next, Touched: touched}, s.now())
	for _, field := range outcome.Derived {
		touched[field] = true
	}
	for _, r := range outcome.Regressions {
		util.StatusRegressionsTotal.WithLabelValues(r.Field).Inc()
		s.logger.Warn("Status moved backward",
			zap.String("order_id", prev.OrderID),
			zap.String("field", r.Field),
			zap.String("from", r.From),
			zap.String("to", r.To),
			zap.Int64("user_id", actor.ID))
	}

	note := newNotification(actor, fmt.Sprintf("Order updated by %s for %s (Order ID: %s)",
		actor.DisplayName(), next.CustomerName, prev.OrderID))
	updated, err := s.store.UpdateOrder(ctx, id, changesFor(next, touched), note)
	if err != nil {
		return nil, translateStoreError(err)
	}

	util.OrdersUpdatedTotal.Inc()
	s.logger.Info("Order updated",
		zap.String("order_id", updated.OrderID),
		zap.Int("fields", len(touched)),
		zap.Int64("user_id", actor.ID))

	event := broker.NewOrderEvent(models.EventTypeOrderUpdated, updated, note)
	snapshot := *updated
	s.background(func(ctx context.Context) {
		s.publishOrderEvent(ctx, event)
		for _, kind := range outcome.Mail {
			s.requestMail(ctx, kind, &snapshot)
		}
	})

	return updated, nil
}

// DeleteOrder removes an order. Only privileged users and the creator may delete.
func (s *OrderService) DeleteOrder(ctx context.Context, actor models.Actor, id int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteOrder", attribute.Int64("id", id))
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, id)
	if err != nil {
		return translateStoreError(err)
	}
	if !actor.Privileged() && !order.OwnedBy(actor.ID) {
		return ErrForbidden
	}

	note := newNotification(actor, fmt.Sprintf("Order deleted by %s for %s (Order ID: %s)",
		actor.DisplayName(), order.CustomerName, order.OrderID))
	if err := s.store.DeleteOrder(ctx, id, note); err != nil {
		return translateStoreError(err)
	}

	util.OrdersDeletedTotal.Inc()
	s.logger.Info("Order deleted",
		zap.String("order_id", order.OrderID),
		zap.Int64("user_id", actor.ID))

	event := broker.NewOrderEvent(models.EventTypeOrderDeleted, order, note)
	s.background(func(ctx context.Context) {
		s.publishOrderEvent(ctx, event)
	})

	return nil
}

// scopeFor resolves which owners' orders the actor may read. Sales users see
// their own orders and their team's; every other role sees all.
func (s *OrderService) scopeFor(ctx context.Context, actor models.Actor) (models.Scope, error) {
	if actor.Role != models.RoleSales {
		return models.Scope{All: true}, nil
	}
	members, err := s.directory.TeamMemberIDs(ctx, actor.ID)
	if err != nil {
		return models.Scope{}, fmt.Errorf("failed to resolve team: %w", err)
	}
	return models.Scope{UserIDs: append([]int64{actor.ID}, members...)}, nil
}

// ListOrders returns every order the actor may see
func (s *OrderService) ListOrders(ctx context.Context, actor models.Actor) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	scope, err := s.scopeFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.store.ListOrders(ctx, scope)
}

// StageOrders returns the orders the actor may see sitting in the named stage
func (s *OrderService) StageOrders(ctx context.Context, actor models.Actor, name string) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.StageOrders", attribute.String("stage", name))
	defer span.End()

	stage, ok := pipeline.StageByName(name)
	if !ok {
		return nil, ErrNotFound
	}
	scope, err := s.scopeFor(ctx, actor)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		util.StageQueryLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()
	return s.store.ListStageOrders(ctx, stage, scope)
}

// Export is a generated spreadsheet download
type Export struct {
	Filename string
	Content  []byte
}

// ExportOrders renders every order the actor may see as a spreadsheet
func (s *OrderService) ExportOrders(ctx context.Context, actor models.Actor) (*Export, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ExportOrders")
	defer span.End()

	orders, err := s.ListOrders(ctx, actor)
	if err != nil {
		return nil, err
	}
	content, rows, err := sheet.WriteOrders(orders)
	if err != nil {
		return nil, fmt.Errorf("failed to render export: %w", err)
	}

	util.ExportRowsTotal.Add(float64(rows))
	s.logger.Info("Orders exported",
		zap.Int("orders", len(orders)),
		zap.Int("rows", rows),
		zap.Int64("user_id", actor.ID))

	return &Export{Filename: sheet.ExportFilename(s.now()), Content: content}, nil
}

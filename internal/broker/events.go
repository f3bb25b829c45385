package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sales-order-service/internal/models"
	"sales-order-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func orderKey(id int64) string {
	return fmt.Sprintf("order-%d", id)
}

func (ep *EventPublisher) publish(ctx context.Context, key, eventType string, event interface{}) error {
	if err := ep.producer.PublishEvent(ctx, key, eventType, event); err != nil {
		util.EventsFailedTotal.WithLabelValues(eventType).Inc()
		return err
	}
	util.EventsPublishedTotal.WithLabelValues(eventType).Inc()
	return nil
}

// NewOrderEvent builds an order event carrying the order identity and notification
func NewOrderEvent(eventType string, o *models.Order, n *models.Notification) *models.OrderEvent {
	return &models.OrderEvent{
		BaseEvent:    newBaseEvent(eventType),
		ID:           o.ID,
		OrderID:      o.OrderID,
		CustomerName: o.CustomerName,
		Notification: n,
	}
}

// PublishOrderEvent publishes ORDER_CREATED, ORDER_UPDATED or ORDER_DELETED
func (ep *EventPublisher) PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	return ep.publish(ctx, orderKey(event.ID), event.EventType, event)
}

// PublishTeamUpdated publishes TEAM_UPDATED
func (ep *EventPublisher) PublishTeamUpdated(ctx context.Context, userID, leaderID int64, action string) error {
	event := &models.TeamEvent{
		BaseEvent: newBaseEvent(models.EventTypeTeamUpdated),
		UserID:    userID,
		LeaderID:  leaderID,
		Action:    action,
	}
	return ep.publish(ctx, fmt.Sprintf("user-%d", userID), event.EventType, event)
}

// PublishMailRequested asks the mail worker to notify the customer of an order
func (ep *EventPublisher) PublishMailRequested(ctx context.Context, kind models.MailKind, o *models.Order) error {
	event := NewMailRequestedEvent(kind, o)
	return ep.publish(ctx, orderKey(o.ID), event.EventType, event)
}

// NewMailRequestedEvent snapshots the order fields a customer mail renders
func NewMailRequestedEvent(kind models.MailKind, o *models.Order) *models.MailRequestedEvent {
	lines := make([]models.MailLine, 0, len(o.Products))
	for _, p := range o.Products {
		lines = append(lines, models.MailLine{
			ProductType: p.ProductType,
			Qty:         p.Qty,
			UnitPrice:   p.UnitPrice,
			Brand:       p.Brand,
			Size:        p.Size,
			Spec:        p.Spec,
		})
	}
	return &models.MailRequestedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeMailRequested),
		Kind:         kind,
		Recipient:    o.CustomerEmail,
		ID:           o.ID,
		OrderID:      o.OrderID,
		CustomerName: o.CustomerName,
		Products:     lines,
		Total:        o.Total,
		DispatchDate: o.DispatchDate,
		ReceiptDate:  o.ReceiptDate,
		Transporter:  o.Transporter,
		DocketNo:     o.DocketNo,
	}
}

// EventHandler handles incoming events
type EventHandler struct {
	logger        *zap.Logger
	onOrderEvent  func(context.Context, *models.OrderEvent) error
	onTeamUpdated func(context.Context, *models.TeamEvent) error
	onMail        func(context.Context, *models.MailRequestedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderEvent registers a handler for ORDER_CREATED, ORDER_UPDATED and ORDER_DELETED
func (eh *EventHandler) OnOrderEvent(handler func(context.Context, *models.OrderEvent) error) {
	eh.onOrderEvent = handler
}

// OnTeamUpdated registers a handler for TEAM_UPDATED events
func (eh *EventHandler) OnTeamUpdated(handler func(context.Context, *models.TeamEvent) error) {
	eh.onTeamUpdated = handler
}

// OnMailRequested registers a handler for MAIL_REQUESTED events
func (eh *EventHandler) OnMailRequested(handler func(context.Context, *models.MailRequestedEvent) error) {
	eh.onMail = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderCreated, models.EventTypeOrderUpdated, models.EventTypeOrderDeleted:
		if eh.onOrderEvent != nil {
			var event models.OrderEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onOrderEvent(ctx, &event)
		}

	case models.EventTypeTeamUpdated:
		if eh.onTeamUpdated != nil {
			var event models.TeamEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal TeamUpdated event: %w", err)
			}
			return eh.onTeamUpdated(ctx, &event)
		}

	case models.EventTypeMailRequested:
		if eh.onMail != nil {
			var event models.MailRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal MailRequested event: %w", err)
			}
			return eh.onMail(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"sales-order-service/internal/broker"
	"sales-order-service/internal/models"
	"sales-order-service/internal/util"

	"go.uber.org/zap"
)

// Consumer group suffixes so every worker sees every event
const (
	BroadcastGroupSuffix = "-broadcast"
	MailGroupSuffix      = "-mail"
)

// Broadcaster pushes payloads to realtime subscribers
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// EventLog remembers which events were already handled
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// MailSender delivers customer mail
type MailSender interface {
	Send(ctx context.Context, ev *models.MailRequestedEvent) error
}

// BroadcastWorker relays order and team events to the realtime channel
type BroadcastWorker struct {
	consumer    *broker.Consumer
	handler     *broker.EventHandler
	broadcaster Broadcaster
	channel     string
	logger      *zap.Logger
}

// orderPayload is what clients receive for newOrder, updateOrder and deleteOrder
type orderPayload struct {
	ID           int64                `json:"_id"`
	CustomerName string               `json:"customername"`
	OrderID      string               `json:"orderId"`
	Notification *models.Notification `json:"notification,omitempty"`
}

type teamPayload struct {
	UserID   int64  `json:"userId"`
	LeaderID int64  `json:"leaderId"`
	Action   string `json:"action"`
}

// NewBroadcastWorker creates a new broadcast worker
func NewBroadcastWorker(consumer *broker.Consumer, broadcaster Broadcaster, channel string) *BroadcastWorker {
	w := &BroadcastWorker{
		consumer:    consumer,
		handler:     broker.NewEventHandler(),
		broadcaster: broadcaster,
		channel:     channel,
		logger:      util.GetLogger(),
	}
	w.handler.OnOrderEvent(w.relayOrder)
	w.handler.OnTeamUpdated(w.relayTeam)
	return w
}

func (w *BroadcastWorker) relay(ctx context.Context, eventType string, payload interface{}) error {
	body, err := json.Marshal(models.RealtimeMessage{
		Event:   models.RealtimeName(eventType),
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal realtime message: %w", err)
	}
	// Broadcast is a hint; clients re-fetch on gaps, so failures are not retried.
	if err := w.broadcaster.Publish(ctx, w.channel, body); err != nil {
		util.EventsFailedTotal.WithLabelValues(eventType).Inc()
		w.logger.Error("Failed to broadcast event", zap.String("event_type", eventType), zap.Error(err))
	}
	return nil
}

func (w *BroadcastWorker) relayOrder(ctx context.Context, event *models.OrderEvent) error {
	return w.relay(ctx, event.EventType, orderPayload{
		ID:           event.ID,
		CustomerName: event.CustomerName,
		OrderID:      event.OrderID,
		Notification: event.Notification,
	})
}

func (w *BroadcastWorker) relayTeam(ctx context.Context, event *models.TeamEvent) error {
	return w.relay(ctx, event.EventType, teamPayload{
		UserID:   event.UserID,
		LeaderID: event.LeaderID,
		Action:   event.Action,
	})
}

// Start consumes until ctx is cancelled
func (w *BroadcastWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting broadcast worker", zap.String("channel", w.channel))
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *BroadcastWorker) Stop() error {
	w.logger.Info("Stopping broadcast worker")
	return w.consumer.Close()
}

// MailWorker sends customer mail for MAIL_REQUESTED events. Each event is
// attempted once; failures are logged and never retried.
type MailWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	events   EventLog
	mailer   MailSender
	logger   *zap.Logger
}

// NewMailWorker creates a new mail worker
func NewMailWorker(consumer *broker.Consumer, events EventLog, mailer MailSender) *MailWorker {
	w := &MailWorker{
		consumer: consumer,
		handler:  broker.NewEventHandler(),
		events:   events,
		mailer:   mailer,
		logger:   util.GetLogger(),
	}
	w.handler.OnMailRequested(w.handleMail)
	return w
}

func (w *MailWorker) handleMail(ctx context.Context, event *models.MailRequestedEvent) error {
	processed, err := w.events.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event %s: %w", event.EventID, err)
	}
	if processed {
		w.logger.Debug("Mail event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	kind := string(event.Kind)
	if err := w.mailer.Send(ctx, event); err != nil {
		util.MailFailedTotal.WithLabelValues(kind).Inc()
		w.logger.Error("Failed to send customer mail",
			zap.String("kind", kind),
			zap.String("order_id", event.OrderID),
			zap.Error(err))
	} else {
		util.MailSentTotal.WithLabelValues(kind).Inc()
	}

	if err := w.events.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Warn("Failed to mark mail event processed", zap.String("event_id", event.EventID), zap.Error(err))
	}
	return nil
}

// Start consumes until ctx is cancelled
func (w *MailWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting mail worker")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *MailWorker) Stop() error {
	w.logger.Info("Stopping mail worker")
	return w.consumer.Close()
}

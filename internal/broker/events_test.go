package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"sales-order-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	b, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestHandleMessageRoutesOrderEvents(t *testing.T) {
	order := &models.Order{ID: 5, OrderID: "PMTO5", CustomerName: "Acme"}
	note := &models.Notification{Message: "Order updated by anna for Acme (Order ID: PMTO5)", Role: models.NotificationRoleAll}

	var got *models.OrderEvent
	h := NewEventHandler()
	h.OnOrderEvent(func(_ context.Context, e *models.OrderEvent) error {
		got = e
		return nil
	})

	require.NoError(t, h.HandleMessage(context.Background(), message(t, NewOrderEvent(models.EventTypeOrderUpdated, order, note))))
	require.NotNil(t, got)
	assert.Equal(t, models.EventTypeOrderUpdated, got.EventType)
	assert.Equal(t, "PMTO5", got.OrderID)
	require.NotNil(t, got.Notification)
	assert.Equal(t, note.Message, got.Notification.Message)
	assert.NotEmpty(t, got.EventID)
}

func TestHandleMessageRoutesMailRequests(t *testing.T) {
	dispatched := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	order := &models.Order{
		ID:            9,
		OrderID:       "PMTO9",
		CustomerEmail: "buyer@example.com",
		Total:         decimal.RequireFromString("306"),
		DispatchDate:  &dispatched,
		Products:      models.Products{{ProductType: "IFPD", Qty: 2, UnitPrice: decimal.NewFromInt(100)}},
	}

	var got *models.MailRequestedEvent
	h := NewEventHandler()
	h.OnMailRequested(func(_ context.Context, e *models.MailRequestedEvent) error {
		got = e
		return nil
	})

	msg := message(t, NewMailRequestedEvent(models.MailOrderDispatched, order))
	require.NoError(t, h.HandleMessage(context.Background(), msg))
	require.NotNil(t, got)
	assert.Equal(t, models.MailOrderDispatched, got.Kind)
	assert.Equal(t, "buyer@example.com", got.Recipient)
	assert.True(t, order.Total.Equal(got.Total))
	require.Len(t, got.Products, 1)
	assert.Equal(t, 2, got.Products[0].Qty)
	assert.True(t, dispatched.Equal(*got.DispatchDate))
}

func TestHandleMessageIgnoresUnregisteredAndUnknown(t *testing.T) {
	h := NewEventHandler()
	assert.NoError(t, h.HandleMessage(context.Background(), message(t, models.BaseEvent{EventType: "SOMETHING_ELSE"})))
	assert.NoError(t, h.HandleMessage(context.Background(), message(t, models.TeamEvent{BaseEvent: models.BaseEvent{EventType: models.EventTypeTeamUpdated}})))
	assert.Error(t, h.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")}))
}

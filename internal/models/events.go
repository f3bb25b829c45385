package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated  = "ORDER_CREATED"
	EventTypeOrderUpdated  = "ORDER_UPDATED"
	EventTypeOrderDeleted  = "ORDER_DELETED"
	EventTypeTeamUpdated   = "TEAM_UPDATED"
	EventTypeMailRequested = "MAIL_REQUESTED"
)

// Realtime event names as seen by connected clients
const (
	RealtimeNewOrder    = "newOrder"
	RealtimeUpdateOrder = "updateOrder"
	RealtimeDeleteOrder = "deleteOrder"
	RealtimeTeamUpdate  = "teamUpdate"
)

// RealtimeName maps an event type to the client-facing event name
func RealtimeName(eventType string) string {
	switch eventType {
	case EventTypeOrderCreated:
		return RealtimeNewOrder
	case EventTypeOrderUpdated:
		return RealtimeUpdateOrder
	case EventTypeOrderDeleted:
		return RealtimeDeleteOrder
	case EventTypeTeamUpdated:
		return RealtimeTeamUpdate
	}
	return ""
}

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderEvent carries the minimal order identity plus the notification.
// It is published for ORDER_CREATED, ORDER_UPDATED and ORDER_DELETED.
type OrderEvent struct {
	BaseEvent
	ID           int64         `json:"_id"`
	OrderID      string        `json:"orderId"`
	CustomerName string        `json:"customername"`
	Notification *Notification `json:"notification,omitempty"`
}

// TeamEvent is published when a user joins or leaves a team
type TeamEvent struct {
	BaseEvent
	UserID   int64  `json:"userId"`
	LeaderID int64  `json:"leaderId"`
	Action   string `json:"action"`
}

// Team actions
const (
	TeamActionAssign   = "assign"
	TeamActionUnassign = "unassign"
)

// MailKind selects the customer mail template
type MailKind string

const (
	MailOrderReceived   MailKind = "order_received"
	MailOrderApproved   MailKind = "order_approved"
	MailOrderDispatched MailKind = "order_dispatched"
	MailOrderDelivered  MailKind = "order_delivered"
)

// MailRequestedEvent asks the mail worker to notify a customer
type MailRequestedEvent struct {
	BaseEvent
	Kind         MailKind        `json:"kind"`
	Recipient    string          `json:"recipient"`
	ID           int64           `json:"_id"`
	OrderID      string          `json:"orderId"`
	CustomerName string          `json:"customername"`
	Products     []MailLine      `json:"products"`
	Total        decimal.Decimal `json:"total"`
	DispatchDate *time.Time      `json:"dispatchDate,omitempty"`
	ReceiptDate  *time.Time      `json:"receiptDate,omitempty"`
	Transporter  string          `json:"transporter"`
	DocketNo     string          `json:"docketNo"`
}

// MailLine is a product line rendered into customer mail
type MailLine struct {
	ProductType string          `json:"productType"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Brand       string          `json:"brand"`
	Size        string          `json:"size"`
	Spec        string          `json:"spec"`
}

// RealtimeMessage is the envelope pushed to socket subscribers
type RealtimeMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

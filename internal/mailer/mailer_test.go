package mailer

import (
	"context"
	"errors"
	"testing"
	"time"

	"sales-order-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type recordingSender struct {
	sent []*gomail.Message
	err  error
}

func (r *recordingSender) DialAndSend(m ...*gomail.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, m...)
	return nil
}

func event(kind models.MailKind) *models.MailRequestedEvent {
	dispatched := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	return &models.MailRequestedEvent{
		Kind:         kind,
		Recipient:    "buyer@acme.test",
		OrderID:      "PMTO42",
		CustomerName: "Acme <Schools>",
		Products: []models.MailLine{
			{ProductType: "IFPD", Brand: "Promark", Qty: 2, UnitPrice: decimal.NewFromInt(100)},
		},
		Total:        decimal.RequireFromString("306"),
		DispatchDate: &dispatched,
		Transporter:  "Blue Dart",
	}
}

func TestRenderApproved(t *testing.T) {
	msg, err := Render(event(models.MailOrderApproved))
	require.NoError(t, err)

	assert.Equal(t, "Your Order #PMTO42 is Approved!", msg.Subject)
	assert.Equal(t, "buyer@acme.test", msg.To)
	assert.Contains(t, msg.HTML, "Acme &lt;Schools&gt;")
	assert.Contains(t, msg.HTML, "Promark IFPD")
	assert.Contains(t, msg.HTML, "306.00")
	assert.NotContains(t, msg.HTML, "Docket No")
	assert.Contains(t, msg.Text, Signature)
}

func TestRenderDispatched(t *testing.T) {
	msg, err := Render(event(models.MailOrderDispatched))
	require.NoError(t, err)

	assert.Equal(t, "Your Order #PMTO42 Has Been Dispatched!", msg.Subject)
	assert.Contains(t, msg.Text, "Dispatch Date: 03 Jun 2024")
	assert.Contains(t, msg.Text, "Transporter: Blue Dart")
	assert.Contains(t, msg.Text, "Docket No: N/A")
}

func TestRenderDeliveredWithoutReceiptDate(t *testing.T) {
	msg, err := Render(event(models.MailOrderDelivered))
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Delivery Date: N/A")
}

func TestRenderUnknownKind(t *testing.T) {
	_, err := Render(event("invoice"))
	assert.Error(t, err)
}

func TestSend(t *testing.T) {
	sender := &recordingSender{}
	m := NewWithSender(sender, "orders@promark.test", true)

	require.NoError(t, m.Send(context.Background(), event(models.MailOrderReceived)))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"Your Order #PMTO42 has been Received!"}, sender.sent[0].GetHeader("Subject"))
	assert.Equal(t, []string{"orders@promark.test"}, sender.sent[0].GetHeader("From"))
}

func TestSendDisabledSkipsDelivery(t *testing.T) {
	sender := &recordingSender{}
	m := NewWithSender(sender, "orders@promark.test", false)

	require.NoError(t, m.Send(context.Background(), event(models.MailOrderReceived)))
	assert.Empty(t, sender.sent)
}

func TestSendFailures(t *testing.T) {
	sender := &recordingSender{err: errors.New("connection refused")}
	m := NewWithSender(sender, "orders@promark.test", true)

	assert.Error(t, m.Send(context.Background(), event(models.MailOrderApproved)))

	noRecipient := event(models.MailOrderApproved)
	noRecipient.Recipient = ""
	assert.Error(t, m.Send(context.Background(), noRecipient))
}

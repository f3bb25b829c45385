package pipeline

import (
	"testing"
	"time"

	"sales-order-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEdit(prev models.Order, mutate func(o *models.Order), touched ...string) Edit {
	next := prev
	mutate(&next)
	set := make(map[string]bool, len(touched))
	for _, f := range touched {
		set[f] = true
	}
	return Edit{Prev: &prev, Next: &next, Touched: set}
}

func TestFulfilledCompletesOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	prev := models.Order{FulfillingStatus: models.FulfillingNotFulfilled, CompletionStatus: models.CompletionInProgress}

	e := newEdit(prev, func(o *models.Order) { o.FulfillingStatus = models.FulfillingFulfilled }, "fulfillingStatus")
	out := Apply(e, now)

	assert.Equal(t, models.CompletionComplete, e.Next.CompletionStatus)
	require.NotNil(t, e.Next.FulfillmentDate)
	assert.Equal(t, now, *e.Next.FulfillmentDate)
	assert.ElementsMatch(t, []string{"completionStatus", "fulfillmentDate"}, out.Derived)
}

func TestFulfilledKeepsSuppliedFulfillmentDate(t *testing.T) {
	supplied := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	e := newEdit(models.Order{}, func(o *models.Order) {
		o.FulfillingStatus = models.FulfillingFulfilled
		o.FulfillmentDate = &supplied
	}, "fulfillingStatus", "fulfillmentDate")

	out := Apply(e, time.Now())

	assert.Equal(t, supplied, *e.Next.FulfillmentDate)
	assert.Equal(t, []string{"completionStatus"}, out.Derived)
}

func TestFulfilledOverwritesStaleStoredDate(t *testing.T) {
	stale := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	prev := models.Order{FulfillmentDate: &stale}

	e := newEdit(prev, func(o *models.Order) { o.FulfillingStatus = models.FulfillingFulfilled }, "fulfillingStatus")
	Apply(e, now)

	assert.Equal(t, now, *e.Next.FulfillmentDate)
}

func TestUntouchedFulfillingStatusIsIgnored(t *testing.T) {
	prev := models.Order{FulfillingStatus: models.FulfillingFulfilled, CompletionStatus: models.CompletionInProgress}
	e := newEdit(prev, func(o *models.Order) { o.Remarks = "call before delivery" }, "remarks")

	out := Apply(e, time.Now())

	assert.Equal(t, models.CompletionInProgress, e.Next.CompletionStatus)
	assert.Empty(t, out.Derived)
}

func TestDeliveryStampsReceiptDate(t *testing.T) {
	now := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	e := newEdit(models.Order{DispatchStatus: models.DispatchDispatched}, func(o *models.Order) {
		o.DispatchStatus = models.DispatchDelivered
	}, "dispatchStatus")

	out := Apply(e, now)

	require.NotNil(t, e.Next.ReceiptDate)
	assert.Equal(t, now, *e.Next.ReceiptDate)
	assert.Contains(t, out.Derived, "receiptDate")
}

func TestDeliveryKeepsSuppliedReceiptDate(t *testing.T) {
	supplied := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	e := newEdit(models.Order{}, func(o *models.Order) {
		o.DispatchStatus = models.DispatchDelivered
		o.ReceiptDate = &supplied
	}, "dispatchStatus", "receiptDate")

	out := Apply(e, time.Now())

	assert.Equal(t, supplied, *e.Next.ReceiptDate)
	assert.NotContains(t, out.Derived, "receiptDate")
}

func TestApprovalMailsOnlyOnFirstApproval(t *testing.T) {
	approve := func(o *models.Order) { o.SOStatus = models.SOStatusApproved }

	fresh := newEdit(models.Order{SOStatus: models.SOStatusAccountsApproved, CustomerEmail: "buyer@example.com"}, approve, "sostatus")
	assert.Equal(t, []models.MailKind{models.MailOrderApproved}, Apply(fresh, time.Now()).Mail)

	again := newEdit(models.Order{SOStatus: models.SOStatusApproved, CustomerEmail: "buyer@example.com"}, approve, "sostatus")
	assert.Empty(t, Apply(again, time.Now()).Mail)

	noEmail := newEdit(models.Order{SOStatus: models.SOStatusPendingApproval}, approve, "sostatus")
	assert.Empty(t, Apply(noEmail, time.Now()).Mail)
}

func TestDispatchMails(t *testing.T) {
	prev := models.Order{CustomerEmail: "buyer@example.com", DispatchStatus: models.DispatchNotDispatched}

	dispatched := newEdit(prev, func(o *models.Order) { o.DispatchStatus = models.DispatchDispatched }, "dispatchStatus")
	assert.Equal(t, []models.MailKind{models.MailOrderDispatched}, Apply(dispatched, time.Now()).Mail)

	delivered := newEdit(prev, func(o *models.Order) { o.DispatchStatus = models.DispatchDelivered }, "dispatchStatus")
	assert.Equal(t, []models.MailKind{models.MailOrderDelivered}, Apply(delivered, time.Now()).Mail)

	awaited := newEdit(prev, func(o *models.Order) { o.DispatchStatus = models.DispatchDocketAwaitDispatched }, "dispatchStatus")
	assert.Empty(t, Apply(awaited, time.Now()).Mail)
}

func TestBackwardTransitionIsAppliedAndReported(t *testing.T) {
	e := newEdit(models.Order{DispatchStatus: models.DispatchDelivered}, func(o *models.Order) {
		o.DispatchStatus = models.DispatchDispatched
	}, "dispatchStatus")

	out := Apply(e, time.Now())

	assert.Equal(t, models.DispatchDispatched, e.Next.DispatchStatus)
	require.Len(t, out.Regressions, 1)
	assert.Equal(t, Regression{Field: "dispatchStatus", From: models.DispatchDelivered, To: models.DispatchDispatched}, out.Regressions[0])
}

func TestAxisFor(t *testing.T) {
	axis, ok := AxisFor("billStatus")
	require.True(t, ok)
	assert.True(t, axis.Values.Contains(models.BillUnderBilling))

	_, ok = AxisFor("remarks")
	assert.False(t, ok)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"sales-order-service/internal/models"
	"sales-order-service/internal/pipeline"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderComputesTotal(t *testing.T) {
	h := newHarness()

	order, err := h.orders.CreateOrder(context.Background(), sales, decodeInput(t, validPayload), "", "")
	require.NoError(t, err)

	assert.Equal(t, "PMTO1", order.OrderID)
	assert.True(t, decimal.NewFromInt(306).Equal(order.Total), order.Total.String())
	assert.True(t, decimal.NewFromInt(206).Equal(order.PaymentDue), order.PaymentDue.String())
	assert.Equal(t, sales.ID, order.CreatedBy)
	assert.Equal(t, models.SOStatusPendingApproval, order.SOStatus)
	assert.Equal(t, models.FulfillingNotFulfilled, order.FulfillingStatus)
	assert.Equal(t, models.ChargeExtra, order.FreightStatus)
	require.NotNil(t, order.SODate)
	assert.Equal(t, fixedNow, *order.SODate)

	for _, p := range order.Products {
		assert.Equal(t, models.WarrantyOneYear, p.Warranty)
		assert.NotNil(t, p.SerialNos)
		assert.NotNil(t, p.ModelNos)
	}

	require.Len(t, h.store.notifications, 1)
	assert.Equal(t, "New sales order created by ravi for Acme Schools (Order ID: PMTO1)", h.store.notifications[0].Message)
	assert.Equal(t, models.NotificationRoleAll, h.store.notifications[0].Role)
	require.NotNil(t, h.store.notifications[0].UserID)
	assert.Equal(t, sales.ID, *h.store.notifications[0].UserID)

	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, models.EventTypeOrderCreated, h.publisher.events[0].EventType)
	assert.Equal(t, "PMTO1", h.publisher.events[0].OrderID)
	assert.Equal(t, []sentMail{{Kind: models.MailOrderReceived, OrderID: "PMTO1"}}, h.publisher.mails)
}

func TestCreateOrderHonoursOverrides(t *testing.T) {
	h := newHarness()
	in := decodeInput(t, `{
		"orderType": "B2C", "paymentTerms": "Credit", "total": "999.50", "paymentDue": 0,
		"products": [{"productType": "Monitor", "qty": 1, "unitPrice": 10, "gst": 18}]
	}`)

	order, err := h.orders.CreateOrder(context.Background(), sales, in, "/Uploads/po.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "999.5", order.Total.String())
	assert.True(t, order.PaymentDue.IsZero())
	assert.Equal(t, "/Uploads/po.pdf", order.POFilePath)
	// dispatchFrom left blank counts as shipped from stock
	assert.Equal(t, models.FulfillingFulfilled, order.FulfillingStatus)
	assert.Empty(t, h.publisher.mails)
}

func TestCreateOrderCollectsEveryProblem(t *testing.T) {
	h := newHarness()
	in := decodeInput(t, `{
		"orderType": "B2G",
		"dispatchFrom": "Atlantis",
		"products": [
			{"productType": "IFPD", "qty": 1, "unitPrice": 10, "gst": 18},
			{"qty": 0, "unitPrice": -1, "gst": "abc"}
		]
	}`)

	_, err := h.orders.CreateOrder(context.Background(), sales, in, "", "")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	joined := strings.Join(verr.Problems, "\n")
	for _, want := range []string{
		"gemOrderNumber is required",
		"paymentTerms is required",
		`dispatchFrom "Atlantis"`,
		"products[0]: modelNos and brand are required for IFPD products",
		"products[1]: productType is required",
		"products[1]: qty must be greater than 0",
		"products[1]: unitPrice must not be negative",
		`products[1]: gst "abc"`,
	} {
		assert.Contains(t, joined, want)
	}
	assert.Empty(t, h.store.orders)
	assert.Empty(t, h.publisher.events)
}

func TestCreateDemoOrderRequiresDemoDate(t *testing.T) {
	h := newHarness()
	in := decodeInput(t, `{"orderType": "Demo", "products": [{"productType": "IFPD", "brand": "Promark", "modelNos": "P-65", "qty": 1, "unitPrice": 0, "gst": 18}]}`)

	_, err := h.orders.CreateOrder(context.Background(), sales, in, "", "")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"demoDate is required for Demo orders"}, verr.Problems)

	in.DemoDate = models.FlexDate{Value: fixedNow, Set: true}
	order, err := h.orders.CreateOrder(context.Background(), sales, in, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.FulfillingFulfilled, order.FulfillingStatus)
	assert.Equal(t, models.WarrantyThreeYears, order.Products[0].Warranty)
	assert.Equal(t, []string{"P-65"}, order.Products[0].ModelNos)
}

func TestDefaultWarranty(t *testing.T) {
	cases := []struct {
		orderType, productType, brand, want string
	}{
		{models.OrderTypeB2G, models.ProductTypeIFPD, "Promark", models.WarrantyAsPerTender},
		{models.OrderTypeB2C, models.ProductTypeIFPD, "promark", models.WarrantyThreeYears},
		{models.OrderTypeB2C, models.ProductTypeIFPD, "Other", models.WarrantyOneYear},
		{models.OrderTypeB2B, "Monitor", "Promark", models.WarrantyOneYear},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, defaultWarranty(c.orderType, c.productType, c.brand), "%+v", c)
	}
}

func TestConcurrentCreatesGetUniqueOrderIDs(t *testing.T) {
	h := newHarness()
	const n = 25
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order, err := h.orders.CreateOrder(context.Background(), sales, decodeInput(t, validPayload), "", "")
			if err == nil {
				ids[i] = order.OrderID
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
}

func TestCreateOrderIdempotencyKey(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	first, err := h.orders.CreateOrder(ctx, sales, decodeInput(t, validPayload), "", "req-1")
	require.NoError(t, err)

	_, err = h.orders.CreateOrder(ctx, sales, decodeInput(t, validPayload), "", "req-1")
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, []string{first.OrderID}, conflict.OrderIDs)
	assert.Len(t, h.store.orders, 1)

	// keys are per user
	_, err = h.orders.CreateOrder(ctx, admin, decodeInput(t, validPayload), "", "req-1")
	assert.NoError(t, err)
}

func create(t *testing.T, h *harness, actor models.Actor) *models.Order {
	t.Helper()
	order, err := h.orders.CreateOrder(context.Background(), actor, decodeInput(t, validPayload), "", "")
	require.NoError(t, err)
	h.publisher.events = nil
	h.publisher.mails = nil
	return order
}

func TestEditFulfilledCompletesOrder(t *testing.T) {
	h := newHarness()
	order := create(t, h, sales)

	updated, err := h.orders.EditOrder(context.Background(), sales, order.ID, body(t, `{"fulfillingStatus": "Fulfilled"}`))
	require.NoError(t, err)

	assert.Equal(t, models.FulfillingFulfilled, updated.FulfillingStatus)
	assert.Equal(t, models.CompletionComplete, updated.CompletionStatus)
	require.NotNil(t, updated.FulfillmentDate)
	assert.Equal(t, fixedNow, *updated.FulfillmentDate)

	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, models.EventTypeOrderUpdated, h.publisher.events[0].EventType)
	require.NotNil(t, h.publisher.events[0].Notification)
	assert.Contains(t, h.publisher.events[0].Notification.Message, "Order updated by ravi")
}

func TestEditDeliveryStampsReceiptAndMails(t *testing.T) {
	h := newHarness()
	order := create(t, h, sales)

	updated, err := h.orders.EditOrder(context.Background(), sales, order.ID, body(t, `{"dispatchStatus": "Delivered", "transporter": "Blue Dart"}`))
	require.NoError(t, err)

	require.NotNil(t, updated.ReceiptDate)
	assert.Equal(t, "Blue Dart", updated.Transporter)
	assert.Equal(t, []sentMail{{Kind: models.MailOrderDelivered, OrderID: order.OrderID}}, h.publisher.mails)
}

func TestEditApprovalMailsOnce(t *testing.T) {
	h := newHarness()
	order := create(t, h, sales)
	ctx := context.Background()

	_, err := h.orders.EditOrder(ctx, admin, order.ID, body(t, `{"sostatus": "Approved"}`))
	require.NoError(t, err)
	_, err = h.orders.EditOrder(ctx, admin, order.ID, body(t, `{"sostatus": "Approved"}`))
	require.NoError(t, err)

	assert.Equal(t, []sentMail{{Kind: models.MailOrderApproved, OrderID: order.OrderID}}, h.publisher.mails)
}

func TestEditAllowsBackwardTransitions(t *testing.T) {
	h := newHarness()
	order := create(t, h, sales)
	ctx := context.Background()

	_, err := h.orders.EditOrder(ctx, admin, order.ID, body(t, `{"dispatchStatus": "Delivered"}`))
	require.NoError(t, err)
	updated, err := h.orders.EditOrder(ctx, admin, order.ID, body(t, `{"dispatchStatus": "Dispatched"}`))
	require.NoError(t, err)
	assert.Equal(t, models.DispatchDispatched, updated.DispatchStatus)
}

func TestEditRejectsIFPDWithoutBrand(t *testing.T) {
	h := newHarness()
	order := create(t, h, sales)

	_, err := h.orders.EditOrder(context.Background(), sales, order.ID, body(t, `{
		"products": [{"productType": "IFPD", "modelNos": ["X1"]}]
	}`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Problems, "products[0]: modelNos and brand are required for IFPD products")

	stored, _ := h.store.GetOrderByID(context.Background(), order.ID)
	assert.Equal(t, "Monitor", stored.Products[0].ProductType)
	assert.Empty(t, h.publisher.events)
}

func TestEditMergesProductsFromStoredLines(t *testing.T) {
	h := newHarness()
	order := create(t, h, sales)

	updated, err := h.orders.EditOrder(context.Background(), sales, order.ID, body(t, `{
		"products": [{"serialNos": ["S1", "S2"]}, {"unitPrice": 60}, {"productType": "Cable"}]
	}`))
	require.NoError(t, err)
	require.Len(t, updated.Products, 3)

	first := updated.Products[0]
	assert.Equal(t, "Monitor", first.ProductType)
	assert.Equal(t, 2, first.Qty)
	assert.True(t, decimal.NewFromInt(100).Equal(first.UnitPrice))
	assert.Equal(t, models.GST("18"), first.GST)
	assert.Equal(t, []string{"S1", "S2"}, first.SerialNos)

	second := updated.Products[1]
	assert.Equal(t, 1, second.Qty)
	assert.True(t, decimal.NewFromInt(60).Equal(second.UnitPrice))
	assert.Equal(t, models.GST(models.GSTIncluding), second.GST)

	third := updated.Products[2]
	assert.Equal(t, 1, third.Qty)
	assert.True(t, third.UnitPrice.IsZero())
	assert.Equal(t, models.GST("18"), third.GST)
	assert.Equal(t, models.WarrantyOneYear, third.Warranty)
	assert.Equal(t, "N/A", third.Size)
}

func TestEditDates(t *testing.T) {
	h := newHarness()
	order := create(t, h, sales)
	ctx := context.Background()

	updated, err := h.orders.EditOrder(ctx, sales, order.ID, body(t, `{"dispatchDate": "2024-06-03", "invoiceDate": "not a date", "remarks": "x"}`))
	require.NoError(t, err)
	require.NotNil(t, updated.DispatchDate)
	assert.Equal(t, "2024-06-03", updated.DispatchDate.Format("2006-01-02"))
	assert.Nil(t, updated.InvoiceDate)

	updated, err = h.orders.EditOrder(ctx, sales, order.ID, body(t, `{"dispatchDate": null}`))
	require.NoError(t, err)
	assert.Nil(t, updated.DispatchDate)
}

func TestEditIgnoresFieldsOutsideAllowList(t *testing.T) {
	h := newHarness()
	order := create(t, h, sales)
	ctx := context.Background()

	_, err := h.orders.EditOrder(ctx, sales, order.ID, body(t, `{"orderId": "PMTO999", "createdBy": 4}`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	updated, err := h.orders.EditOrder(ctx, sales, order.ID, body(t, `{"orderId": "PMTO999", "remarks": "call first"}`))
	require.NoError(t, err)
	assert.Equal(t, order.OrderID, updated.OrderID)
	assert.Equal(t, "call first", updated.Remarks)
}

func TestEditRejectsUnknownEnumValue(t *testing.T) {
	h := newHarness()
	order := create(t, h, sales)

	_, err := h.orders.EditOrder(context.Background(), sales, order.ID, body(t, `{"billStatus": "Paid", "dispatchFrom": "Mars"}`))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 2)
}

func TestEditMissingOrder(t *testing.T) {
	h := newHarness()
	_, err := h.orders.EditOrder(context.Background(), sales, 404, body(t, `{"remarks": "x"}`))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTwiceReportsNotFound(t *testing.T) {
	h := newHarness()
	order := create(t, h, sales)
	ctx := context.Background()

	require.NoError(t, h.orders.DeleteOrder(ctx, sales, order.ID))
	assert.ErrorIs(t, h.orders.DeleteOrder(ctx, sales, order.ID), ErrNotFound)

	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, models.EventTypeOrderDeleted, h.publisher.events[0].EventType)
	assert.Equal(t, order.OrderID, h.publisher.events[0].OrderID)
}

func TestDeleteRequiresOwnershipOrPrivilege(t *testing.T) {
	h := newHarness()
	order := create(t, h, sales)
	ctx := context.Background()

	other := models.Actor{ID: 77, Username: "meera", Role: models.RoleSales}
	assert.ErrorIs(t, h.orders.DeleteOrder(ctx, other, order.ID), ErrForbidden)
	production := models.Actor{ID: 78, Role: models.RoleProduction}
	assert.ErrorIs(t, h.orders.DeleteOrder(ctx, production, order.ID), ErrForbidden)

	assert.NoError(t, h.orders.DeleteOrder(ctx, admin, order.ID))

	note := h.store.notifications[len(h.store.notifications)-1]
	assert.Equal(t, "Order deleted by root for Acme Schools (Order ID: PMTO1)", note.Message)
	require.NotNil(t, note.UserID)
	assert.Equal(t, admin.ID, *note.UserID)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	h := newHarness()
	h.publisher.fail = errors.New("broker down")

	_, err := h.orders.CreateOrder(context.Background(), sales, decodeInput(t, validPayload), "", "")
	assert.NoError(t, err)
}

func TestSalesScopeIncludesTeam(t *testing.T) {
	leader := sales.ID
	h := newHarness(
		models.User{ID: sales.ID, Username: "ravi", Role: models.RoleSales},
		models.User{ID: 11, Username: "asha", Role: models.RoleSales, AssignedToLeader: &leader},
		models.User{ID: 12, Username: "kiran", Role: models.RoleSales},
	)
	ctx := context.Background()

	create(t, h, sales)
	create(t, h, models.Actor{ID: 11, Username: "asha", Role: models.RoleSales})
	create(t, h, models.Actor{ID: 12, Username: "kiran", Role: models.RoleSales})

	mine, err := h.orders.ListOrders(ctx, sales)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := h.orders.ListOrders(ctx, models.Actor{ID: 12, Role: models.RoleSales})
	require.NoError(t, err)
	assert.Len(t, theirs, 1)

	all, err := h.orders.ListOrders(ctx, models.Actor{ID: 99, Role: models.RoleWatch})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStageOrders(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	order := create(t, h, sales)

	verification, err := h.orders.StageOrders(ctx, admin, pipeline.StageProductionApproval)
	require.NoError(t, err)
	require.Len(t, verification, 1)
	assert.Equal(t, order.OrderID, verification[0].OrderID)

	production, err := h.orders.StageOrders(ctx, admin, pipeline.StageProduction)
	require.NoError(t, err)
	assert.Empty(t, production)

	_, err = h.orders.EditOrder(ctx, admin, order.ID, body(t, `{"sostatus": "Approved"}`))
	require.NoError(t, err)
	production, err = h.orders.StageOrders(ctx, admin, pipeline.StageProduction)
	require.NoError(t, err)
	assert.Len(t, production, 1)

	_, err = h.orders.StageOrders(ctx, admin, "nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportOrders(t *testing.T) {
	h := newHarness()
	export, err := h.orders.ExportOrders(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, "orders_2024-06-01.xlsx", export.Filename)
	assert.NotEmpty(t, export.Content)
}

func TestImportOrdersAllocatesContiguousIDs(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	create(t, h, sales)

	inputs := make([]OrderInput, 3)
	for i := range inputs {
		inputs[i] = *decodeInput(t, validPayload)
	}
	orders, err := h.orders.ImportOrders(ctx, sales, RowsFromJSON(inputs), "")
	require.NoError(t, err)
	require.Len(t, orders, 3)
	for i, o := range orders {
		assert.Equal(t, fmt.Sprintf("PMTO%d", i+2), o.OrderID)
	}

	last := h.store.notifications[len(h.store.notifications)-1]
	assert.Equal(t, "3 orders uploaded by ravi", last.Message)
	require.NotNil(t, last.UserID)
	assert.Equal(t, sales.ID, *last.UserID)

	require.Len(t, h.publisher.events, 3)
	for _, e := range h.publisher.events {
		assert.Equal(t, models.EventTypeOrderCreated, e.EventType)
		assert.Nil(t, e.Notification)
	}
}

func TestImportOrdersRejectsWholeBatch(t *testing.T) {
	h := newHarness()
	inputs := []OrderInput{*decodeInput(t, validPayload), *decodeInput(t, `{"products": []}`)}

	_, err := h.orders.ImportOrders(context.Background(), sales, RowsFromJSON(inputs), "")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Problems, "row 2: at least one product is required")
	assert.Empty(t, h.store.orders)
	assert.Empty(t, h.publisher.events)
}

func TestImportOrdersReleasesKeyOnFailure(t *testing.T) {
	h := newHarness()
	h.store.failBulk = errors.New("tx aborted")
	rows := RowsFromJSON([]OrderInput{*decodeInput(t, validPayload)})

	_, err := h.orders.ImportOrders(context.Background(), sales, rows, "batch-1")
	require.Error(t, err)
	assert.Empty(t, h.idem.keys)

	h.store.failBulk = nil
	_, err = h.orders.ImportOrders(context.Background(), sales, rows, "batch-1")
	assert.NoError(t, err)
}

func TestImportOrdersEmpty(t *testing.T) {
	h := newHarness()
	_, err := h.orders.ImportOrders(context.Background(), sales, nil, "")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

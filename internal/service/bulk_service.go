package service

import (
	"context"
	"errors"
	"fmt"

	"sales-order-service/internal/broker"
	"sales-order-service/internal/models"
	"sales-order-service/internal/sheet"
	"sales-order-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Spreadsheet headers of the bulk upload template
const (
	colProductType          = "Product Type"
	colSize                 = "Size"
	colSpec                 = "Specification"
	colQty                  = "Quantity"
	colUnitPrice            = "Unit Price"
	colGST                  = "GST"
	colModelNos             = "Model Nos"
	colBrand                = "Brand"
	colWarranty             = "Warranty"
	colFreightCharges       = "Freight Charges"
	colInstallationCharges  = "Installation Charges"
	colFreightStatus        = "Freight Status"
	colInstallChargesStatus = "Installation Charges Status"
	colPaymentCollected     = "Payment Collected"
	colPaymentMethod        = "Payment Method"
	colPaymentTerms         = "Payment Terms"
	colCreditDays           = "Credit Days"
	colNEFTTransactionID    = "NEFT Transaction ID"
	colChequeID             = "Cheque ID"
	colSODate               = "SO Date"
	colDispatchFrom         = "Dispatch From"
	colContactName          = "Contact Person Name"
	colCity                 = "City"
	colState                = "State"
	colPinCode              = "Pin Code"
	colContactNo            = "Contact No"
	colAlterNo              = "Alternate No"
	colCustomerEmail        = "Customer Email"
	colCustomerName         = "Customer Name"
	colGSTNo                = "GST No"
	colReport               = "Reporting Manager"
	colSalesPerson          = "Sales Person"
	colCompany              = "Company"
	colOrderType            = "Order Type"
	colShippingAddress      = "Shipping Address"
	colBillingAddress       = "Billing Address"
	colSameAddress          = "Same Address"
	colRemarks              = "Remarks"
	colGEMOrderNumber       = "GEM Order Number"
	colDeliveryDate         = "Delivery Date"
	colDemoDate             = "Demo Date"
)

// BulkRow is one order of a bulk import. Number identifies it in errors.
type BulkRow struct {
	Number int
	Input  *OrderInput
}

// RowsFromJSON numbers a JSON array of orders from 1
func RowsFromJSON(inputs []OrderInput) []BulkRow {
	rows := make([]BulkRow, len(inputs))
	for i := range inputs {
		rows[i] = BulkRow{Number: i + 1, Input: &inputs[i]}
	}
	return rows
}

func decimalCell(row sheet.Row, header string, problems *[]string) models.FlexDecimal {
	d, ok, err := models.ParseDecimal(row.Get(header))
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("row %d: %s: %v", row.Number, header, err))
		return models.FlexDecimal{}
	}
	return models.FlexDecimal{Value: d, Set: ok}
}

func dateCell(row sheet.Row, header string) models.FlexDate {
	t, ok := models.ParseDate(row.Get(header))
	return models.FlexDate{Value: t, Set: ok}
}

// inputFromRow maps one spreadsheet row to a single-product order
func inputFromRow(row sheet.Row) (*OrderInput, []string) {
	var problems []string
	text := func(header string) models.Text { return models.Text(row.Get(header)) }

	var qty models.FlexInt
	if raw := row.Get(colQty); raw != "" {
		d, ok, err := models.ParseDecimal(raw)
		if err == nil && ok {
			var n int
			if n, err = models.WholeNumber(d); err == nil {
				qty = models.FlexInt{Value: n, Set: true}
			}
		}
		if err != nil {
			problems = append(problems, fmt.Sprintf("row %d: %s: %v", row.Number, colQty, err))
		}
	}

	product := ProductInput{
		ProductType: text(colProductType),
		Size:        text(colSize),
		Spec:        text(colSpec),
		Qty:         qty,
		UnitPrice:   decimalCell(row, colUnitPrice, &problems),
		GST:         models.GST(row.Get(colGST)),
		Brand:       text(colBrand),
		Warranty:    text(colWarranty),
		ModelNos:    models.SplitList(row.Get(colModelNos)),
		SerialNos:   models.StringList{},
		ProductCode: models.StringList{},
	}

	in := &OrderInput{
		CustomerName:    text(colCustomerName),
		Name:            text(colContactName),
		ContactNo:       text(colContactNo),
		AlterNo:         text(colAlterNo),
		CustomerEmail:   text(colCustomerEmail),
		City:            text(colCity),
		State:           text(colState),
		PinCode:         text(colPinCode),
		GSTNo:           text(colGSTNo),
		ShippingAddress: text(colShippingAddress),
		BillingAddress:  text(colBillingAddress),
		SameAddress:     models.Flag(models.ParseFlag(row.Get(colSameAddress))),

		OrderType:    text(colOrderType),
		Company:      text(colCompany),
		DispatchFrom: text(colDispatchFrom),
		Products:     []ProductInput{product},

		PaymentCollected:     decimalCell(row, colPaymentCollected, &problems),
		PaymentMethod:        text(colPaymentMethod),
		PaymentTerms:         text(colPaymentTerms),
		CreditDays:           text(colCreditDays),
		FreightCharges:       decimalCell(row, colFreightCharges, &problems),
		FreightStatus:        text(colFreightStatus),
		InstallationCharges:  decimalCell(row, colInstallationCharges, &problems),
		InstallChargesStatus: text(colInstallChargesStatus),
		NEFTTransactionID:    text(colNEFTTransactionID),
		ChequeID:             text(colChequeID),
		GEMOrderNumber:       text(colGEMOrderNumber),

		SalesPerson: text(colSalesPerson),
		Report:      text(colReport),
		Remarks:     text(colRemarks),

		SODate:       dateCell(row, colSODate),
		DeliveryDate: dateCell(row, colDeliveryDate),
		DemoDate:     dateCell(row, colDemoDate),
	}
	return in, problems
}

// RowsFromSheet maps spreadsheet rows to orders, one product per row
func RowsFromSheet(rows []sheet.Row) ([]BulkRow, error) {
	out := make([]BulkRow, 0, len(rows))
	var problems []string
	for _, row := range rows {
		in, rowProblems := inputFromRow(row)
		problems = append(problems, rowProblems...)
		out = append(out, BulkRow{Number: row.Number, Input: in})
	}
	if len(problems) > 0 {
		return nil, invalid("Invalid spreadsheet", problems...)
	}
	return out, nil
}

// ImportOrders validates every row and inserts all orders in one transaction
// under a contiguous block of order numbers. Any invalid row rejects the
// whole batch.
func (s *OrderService) ImportOrders(ctx context.Context, actor models.Actor, rows []BulkRow, idempotencyKey string) ([]*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ImportOrders", attribute.Int("rows", len(rows)))
	defer span.End()

	if len(rows) == 0 {
		util.ValidationFailuresTotal.WithLabelValues("bulk").Inc()
		return nil, invalid("No orders to import")
	}

	now := s.now()
	orders := make([]*models.Order, 0, len(rows))
	var problems []string
	for _, row := range rows {
		order, err := row.Input.Normalize(actor, now)
		var verr *ValidationError
		if errors.As(err, &verr) {
			for _, p := range verr.Problems {
				problems = append(problems, fmt.Sprintf("row %d: %s", row.Number, p))
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if len(problems) > 0 {
		util.ValidationFailuresTotal.WithLabelValues("bulk").Inc()
		return nil, invalid("Bulk import rejected", problems...)
	}

	note := newNotification(actor, fmt.Sprintf("%d orders uploaded by %s", len(orders), actor.DisplayName()))
	err := s.withIdempotency(ctx, actor, idempotencyKey, func() ([]string, error) {
		if err := s.store.BulkCreateOrders(ctx, orders, note); err != nil {
			return nil, fmt.Errorf("failed to import orders: %w", err)
		}
		ids := make([]string, len(orders))
		for i, o := range orders {
			ids[i] = o.OrderID
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}

	util.OrdersCreatedTotal.WithLabelValues("bulk").Add(float64(len(orders)))
	util.BulkRowsImported.Observe(float64(len(orders)))
	s.logger.Info("Orders imported",
		zap.Int("count", len(orders)),
		zap.String("first_order_id", orders[0].OrderID),
		zap.String("last_order_id", orders[len(orders)-1].OrderID),
		zap.Int64("user_id", actor.ID))

	events := make([]*models.OrderEvent, len(orders))
	for i, o := range orders {
		events[i] = broker.NewOrderEvent(models.EventTypeOrderCreated, o, nil)
	}
	s.background(func(ctx context.Context) {
		for _, event := range events {
			s.publishOrderEvent(ctx, event)
		}
	})

	return orders, nil
}

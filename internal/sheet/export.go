package sheet

import (
	"fmt"
	"strings"
	"time"

	"sales-order-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding exported orders
const SheetName = "Orders"

// NotFound fills product columns of an order without products
const NotFound = "Not Found"

// scope says on which rows of an order a column is filled
type scope int

const (
	everyRow scope = iota
	productRow
	firstRow
)

type column struct {
	header string
	scope  scope
	order  func(o *models.Order) interface{}
	line   func(p *models.Product) interface{}
}

func orderCol(header string, s scope, fn func(o *models.Order) interface{}) column {
	return column{header: header, scope: s, order: fn}
}

func productCol(header string, fn func(p *models.Product) interface{}) column {
	return column{header: header, scope: productRow, line: fn}
}

func date(t *time.Time) interface{} {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func money(d decimal.Decimal) interface{} {
	return d.InexactFloat64()
}

// columns is the export layout. Order identity repeats on every row of an
// order, commercial and status fields appear on its first row only.
var columns = []column{
	orderCol("orderId", everyRow, func(o *models.Order) interface{} { return o.OrderID }),
	orderCol("soDate", everyRow, func(o *models.Order) interface{} { return date(o.SODate) }),
	orderCol("dispatchFrom", everyRow, func(o *models.Order) interface{} { return o.DispatchFrom }),
	orderCol("dispatchDate", everyRow, func(o *models.Order) interface{} { return date(o.DispatchDate) }),
	orderCol("name", everyRow, func(o *models.Order) interface{} { return o.Name }),
	orderCol("city", everyRow, func(o *models.Order) interface{} { return o.City }),
	orderCol("state", everyRow, func(o *models.Order) interface{} { return o.State }),
	orderCol("pinCode", everyRow, func(o *models.Order) interface{} { return o.PinCode }),
	orderCol("contactNo", everyRow, func(o *models.Order) interface{} { return o.ContactNo }),
	orderCol("alterno", everyRow, func(o *models.Order) interface{} { return o.AlterNo }),
	orderCol("customerEmail", everyRow, func(o *models.Order) interface{} { return o.CustomerEmail }),
	orderCol("customername", everyRow, func(o *models.Order) interface{} { return o.CustomerName }),

	productCol("productType", func(p *models.Product) interface{} { return p.ProductType }),
	productCol("size", func(p *models.Product) interface{} { return p.Size }),
	productCol("spec", func(p *models.Product) interface{} { return p.Spec }),
	productCol("qty", func(p *models.Product) interface{} { return p.Qty }),
	productCol("unitPrice", func(p *models.Product) interface{} { return money(p.UnitPrice) }),
	productCol("serialNos", func(p *models.Product) interface{} { return strings.Join(p.SerialNos, ", ") }),
	productCol("modelNos", func(p *models.Product) interface{} { return strings.Join(p.ModelNos, ", ") }),
	productCol("gst", func(p *models.Product) interface{} { return string(p.GST) }),
	productCol("brand", func(p *models.Product) interface{} { return p.Brand }),

	orderCol("total", firstRow, func(o *models.Order) interface{} { return money(o.Total) }),
	orderCol("paymentCollected", firstRow, func(o *models.Order) interface{} { return money(o.PaymentCollected) }),
	orderCol("paymentMethod", firstRow, func(o *models.Order) interface{} { return o.PaymentMethod }),
	orderCol("paymentDue", firstRow, func(o *models.Order) interface{} { return money(o.PaymentDue) }),
	orderCol("neftTransactionId", firstRow, func(o *models.Order) interface{} { return o.NEFTTransactionID }),
	orderCol("chequeId", firstRow, func(o *models.Order) interface{} { return o.ChequeID }),
	orderCol("freightcs", firstRow, func(o *models.Order) interface{} { return money(o.FreightCharges) }),
	orderCol("freightstatus", firstRow, func(o *models.Order) interface{} { return o.FreightStatus }),
	orderCol("installchargesstatus", firstRow, func(o *models.Order) interface{} { return o.InstallChargesStatus }),
	orderCol("gstno", firstRow, func(o *models.Order) interface{} { return o.GSTNo }),
	orderCol("orderType", firstRow, func(o *models.Order) interface{} { return o.OrderType }),
	orderCol("installation", firstRow, func(o *models.Order) interface{} { return money(o.InstallationCharges) }),
	orderCol("installationStatus", firstRow, func(o *models.Order) interface{} { return o.InstallationStatus }),
	orderCol("remarksByInstallation", firstRow, func(o *models.Order) interface{} { return o.RemarksByInstallation }),
	orderCol("dispatchStatus", firstRow, func(o *models.Order) interface{} { return o.DispatchStatus }),
	orderCol("salesPerson", firstRow, func(o *models.Order) interface{} { return o.SalesPerson }),
	orderCol("report", firstRow, func(o *models.Order) interface{} { return o.Report }),
	orderCol("company", firstRow, func(o *models.Order) interface{} { return o.Company }),
	orderCol("transporter", firstRow, func(o *models.Order) interface{} { return o.Transporter }),
	orderCol("transporterDetails", firstRow, func(o *models.Order) interface{} { return o.TransporterDetails }),
	orderCol("docketNo", firstRow, func(o *models.Order) interface{} { return o.DocketNo }),
	orderCol("shippingAddress", firstRow, func(o *models.Order) interface{} { return o.ShippingAddress }),
	orderCol("billingAddress", firstRow, func(o *models.Order) interface{} { return o.BillingAddress }),
	orderCol("invoiceNo", firstRow, func(o *models.Order) interface{} { return o.InvoiceNo }),
	orderCol("fulfillingStatus", firstRow, func(o *models.Order) interface{} { return o.FulfillingStatus }),
	orderCol("remarksByProduction", firstRow, func(o *models.Order) interface{} { return o.RemarksByProduction }),
	orderCol("remarksByAccounts", firstRow, func(o *models.Order) interface{} { return o.RemarksByAccounts }),
	orderCol("paymentReceived", firstRow, func(o *models.Order) interface{} { return o.PaymentReceived }),
	orderCol("billNumber", firstRow, func(o *models.Order) interface{} { return o.BillNumber }),
	orderCol("piNumber", firstRow, func(o *models.Order) interface{} { return o.PINumber }),
	orderCol("remarksByBilling", firstRow, func(o *models.Order) interface{} { return o.RemarksByBilling }),
	orderCol("verificationRemarks", firstRow, func(o *models.Order) interface{} { return o.VerificationRemarks }),
	orderCol("billStatus", firstRow, func(o *models.Order) interface{} { return o.BillStatus }),
	orderCol("completionStatus", firstRow, func(o *models.Order) interface{} { return o.CompletionStatus }),
	orderCol("remarks", firstRow, func(o *models.Order) interface{} { return o.Remarks }),
	orderCol("sostatus", firstRow, func(o *models.Order) interface{} { return o.SOStatus }),
	orderCol("receiptDate", everyRow, func(o *models.Order) interface{} { return date(o.ReceiptDate) }),
	orderCol("invoiceDate", everyRow, func(o *models.Order) interface{} { return date(o.InvoiceDate) }),
	orderCol("fulfillmentDate", everyRow, func(o *models.Order) interface{} { return date(o.FulfillmentDate) }),
}

// Headers returns the export header row
func Headers() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.header
	}
	return out
}

// Flatten turns an order into one row per product line. An order without
// products yields a single row with NotFound in the product columns.
func Flatten(o *models.Order) [][]interface{} {
	if len(o.Products) == 0 {
		row := make([]interface{}, len(columns))
		for i, c := range columns {
			if c.scope == productRow {
				row[i] = NotFound
			} else {
				row[i] = c.order(o)
			}
		}
		return [][]interface{}{row}
	}

	rows := make([][]interface{}, 0, len(o.Products))
	for n := range o.Products {
		row := make([]interface{}, len(columns))
		for i, c := range columns {
			switch {
			case c.scope == productRow:
				row[i] = c.line(&o.Products[n])
			case c.scope == everyRow || n == 0:
				row[i] = c.order(o)
			default:
				row[i] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteOrders renders the orders as an xlsx workbook and reports the number
// of data rows written. No orders yields a header-only workbook.
func WriteOrders(orders []models.Order) ([]byte, int, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, 0, fmt.Errorf("failed to name sheet: %w", err)
	}

	headers := Headers()
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, 0, fmt.Errorf("failed to write header: %w", err)
	}

	line := 2
	for i := range orders {
		for _, row := range Flatten(&orders[i]) {
			cell, err := excelize.CoordinatesToCellName(1, line)
			if err != nil {
				return nil, 0, err
			}
			row := row
			if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
				return nil, 0, fmt.Errorf("failed to write order %s: %w", orders[i].OrderID, err)
			}
			line++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), line - 2, nil
}

// ExportFilename is the date-stamped download name for an export
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("orders_%s.xlsx", now.Format("2006-01-02"))
}

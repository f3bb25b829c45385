package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sales-order-service/internal/models"
	"sales-order-service/internal/store"

	"github.com/shopspring/decimal"
)

// editField is one entry of the partial update allow-list
type editField struct {
	name   string
	column string
	// apply decodes raw into o and reports whether the field was set
	apply func(o *models.Order, raw json.RawMessage) (bool, error)
	value func(o *models.Order) interface{}
}

func strField(name, column string, ptr func(o *models.Order) *string) editField {
	return editField{
		name:   name,
		column: column,
		apply: func(o *models.Order, raw json.RawMessage) (bool, error) {
			var t models.Text
			if err := json.Unmarshal(raw, &t); err != nil {
				return false, err
			}
			*ptr(o) = string(t)
			return true, nil
		},
		value: func(o *models.Order) interface{} { return *ptr(o) },
	}
}

// enumField rejects values outside allowed. A blank value is ignored unless
// the field is optional, in which case it clears the field.
func enumField(name, column string, allowed models.Enum, optional bool, ptr func(o *models.Order) *string) editField {
	return editField{
		name:   name,
		column: column,
		apply: func(o *models.Order, raw json.RawMessage) (bool, error) {
			var t models.Text
			if err := json.Unmarshal(raw, &t); err != nil {
				return false, err
			}
			if t == "" {
				if !optional {
					return false, nil
				}
			} else if !allowed.Contains(string(t)) {
				return false, fmt.Errorf("%q is not one of the allowed values", t)
			}
			*ptr(o) = string(t)
			return true, nil
		},
		value: func(o *models.Order) interface{} { return *ptr(o) },
	}
}

func boolField(name, column string, ptr func(o *models.Order) *bool) editField {
	return editField{
		name:   name,
		column: column,
		apply: func(o *models.Order, raw json.RawMessage) (bool, error) {
			var f models.Flag
			if err := json.Unmarshal(raw, &f); err != nil {
				return false, err
			}
			*ptr(o) = bool(f)
			return true, nil
		},
		value: func(o *models.Order) interface{} { return *ptr(o) },
	}
}

func decimalField(name, column string, ptr func(o *models.Order) *decimal.Decimal) editField {
	return editField{
		name:   name,
		column: column,
		apply: func(o *models.Order, raw json.RawMessage) (bool, error) {
			var f models.FlexDecimal
			if err := json.Unmarshal(raw, &f); err != nil {
				return false, err
			}
			if !f.Set {
				return false, nil
			}
			*ptr(o) = f.Value
			return true, nil
		},
		value: func(o *models.Order) interface{} { return *ptr(o) },
	}
}

// dateField clears the date on null or "" and skips values it cannot parse
func dateField(name, column string, ptr func(o *models.Order) **time.Time) editField {
	return editField{
		name:   name,
		column: column,
		apply: func(o *models.Order, raw json.RawMessage) (bool, error) {
			trimmed := bytes.TrimSpace(raw)
			if bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`)) {
				*ptr(o) = nil
				return true, nil
			}
			var d models.FlexDate
			if err := json.Unmarshal(raw, &d); err != nil || !d.Set {
				return false, nil
			}
			*ptr(o) = d.Ptr()
			return true, nil
		},
		value: func(o *models.Order) interface{} { return *ptr(o) },
	}
}

var productsField = editField{
	name:   "products",
	column: "products",
	apply: func(o *models.Order, raw json.RawMessage) (bool, error) {
		merged, err := mergeProducts(o.Products, raw)
		if err != nil {
			return false, err
		}
		o.Products = merged
		return true, nil
	},
	value: func(o *models.Order) interface{} { return o.Products },
}

// editFields is the allow-list of fields a partial update may change
var editFields = []editField{
	dateField("soDate", "so_date", func(o *models.Order) **time.Time { return &o.SODate }),
	enumField("dispatchFrom", "dispatch_from", models.DispatchLocations, true, func(o *models.Order) *string { return &o.DispatchFrom }),
	dateField("dispatchDate", "dispatch_date", func(o *models.Order) **time.Time { return &o.DispatchDate }),
	strField("name", "contact_name", func(o *models.Order) *string { return &o.Name }),
	strField("city", "city", func(o *models.Order) *string { return &o.City }),
	strField("state", "state", func(o *models.Order) *string { return &o.State }),
	strField("pinCode", "pin_code", func(o *models.Order) *string { return &o.PinCode }),
	strField("contactNo", "contact_no", func(o *models.Order) *string { return &o.ContactNo }),
	strField("alterno", "alter_no", func(o *models.Order) *string { return &o.AlterNo }),
	strField("customerEmail", "customer_email", func(o *models.Order) *string { return &o.CustomerEmail }),
	strField("customername", "customer_name", func(o *models.Order) *string { return &o.CustomerName }),
	productsField,
	decimalField("total", "total", func(o *models.Order) *decimal.Decimal { return &o.Total }),
	strField("gstno", "gst_no", func(o *models.Order) *string { return &o.GSTNo }),
	enumField("freightstatus", "freight_status", models.ChargeStatuses, false, func(o *models.Order) *string { return &o.FreightStatus }),
	enumField("installchargesstatus", "install_charges_status", models.ChargeStatuses, false, func(o *models.Order) *string { return &o.InstallChargesStatus }),
	decimalField("paymentCollected", "payment_collected", func(o *models.Order) *decimal.Decimal { return &o.PaymentCollected }),
	enumField("paymentMethod", "payment_method", models.PaymentMethods, true, func(o *models.Order) *string { return &o.PaymentMethod }),
	decimalField("paymentDue", "payment_due", func(o *models.Order) *decimal.Decimal { return &o.PaymentDue }),
	strField("neftTransactionId", "neft_transaction_id", func(o *models.Order) *string { return &o.NEFTTransactionID }),
	strField("chequeId", "cheque_id", func(o *models.Order) *string { return &o.ChequeID }),
	decimalField("freightcs", "freight_charges", func(o *models.Order) *decimal.Decimal { return &o.FreightCharges }),
	enumField("orderType", "order_type", models.OrderTypes, false, func(o *models.Order) *string { return &o.OrderType }),
	decimalField("installation", "installation_charges", func(o *models.Order) *decimal.Decimal { return &o.InstallationCharges }),
	enumField("installationStatus", "installation_status", models.InstallationStatuses, false, func(o *models.Order) *string { return &o.InstallationStatus }),
	strField("remarksByInstallation", "remarks_by_installation", func(o *models.Order) *string { return &o.RemarksByInstallation }),
	enumField("dispatchStatus", "dispatch_status", models.DispatchStatuses, false, func(o *models.Order) *string { return &o.DispatchStatus }),
	strField("salesPerson", "sales_person", func(o *models.Order) *string { return &o.SalesPerson }),
	strField("report", "report", func(o *models.Order) *string { return &o.Report }),
	enumField("company", "company", models.Companies, false, func(o *models.Order) *string { return &o.Company }),
	strField("transporter", "transporter", func(o *models.Order) *string { return &o.Transporter }),
	strField("transporterDetails", "transporter_details", func(o *models.Order) *string { return &o.TransporterDetails }),
	strField("docketNo", "docket_no", func(o *models.Order) *string { return &o.DocketNo }),
	dateField("receiptDate", "receipt_date", func(o *models.Order) **time.Time { return &o.ReceiptDate }),
	strField("shippingAddress", "shipping_address", func(o *models.Order) *string { return &o.ShippingAddress }),
	strField("billingAddress", "billing_address", func(o *models.Order) *string { return &o.BillingAddress }),
	boolField("sameAddress", "same_address", func(o *models.Order) *bool { return &o.SameAddress }),
	strField("invoiceNo", "invoice_no", func(o *models.Order) *string { return &o.InvoiceNo }),
	dateField("invoiceDate", "invoice_date", func(o *models.Order) **time.Time { return &o.InvoiceDate }),
	enumField("fulfillingStatus", "fulfilling_status", models.FulfillingStatuses, false, func(o *models.Order) *string { return &o.FulfillingStatus }),
	strField("remarksByProduction", "remarks_by_production", func(o *models.Order) *string { return &o.RemarksByProduction }),
	strField("remarksByAccounts", "remarks_by_accounts", func(o *models.Order) *string { return &o.RemarksByAccounts }),
	enumField("paymentReceived", "payment_received", models.PaymentStatuses, false, func(o *models.Order) *string { return &o.PaymentReceived }),
	strField("billNumber", "bill_number", func(o *models.Order) *string { return &o.BillNumber }),
	strField("piNumber", "pi_number", func(o *models.Order) *string { return &o.PINumber }),
	strField("remarksByBilling", "remarks_by_billing", func(o *models.Order) *string { return &o.RemarksByBilling }),
	strField("verificationRemarks", "verification_remarks", func(o *models.Order) *string { return &o.VerificationRemarks }),
	enumField("billStatus", "bill_status", models.BillStatuses, false, func(o *models.Order) *string { return &o.BillStatus }),
	enumField("completionStatus", "completion_status", models.CompletionStatuses, false, func(o *models.Order) *string { return &o.CompletionStatus }),
	dateField("fulfillmentDate", "fulfillment_date", func(o *models.Order) **time.Time { return &o.FulfillmentDate }),
	strField("remarks", "remarks", func(o *models.Order) *string { return &o.Remarks }),
	enumField("sostatus", "so_status", models.SOStatuses, false, func(o *models.Order) *string { return &o.SOStatus }),
	strField("gemOrderNumber", "gem_order_number", func(o *models.Order) *string { return &o.GEMOrderNumber }),
	dateField("deliveryDate", "delivery_date", func(o *models.Order) **time.Time { return &o.DeliveryDate }),
	dateField("deliveredDate", "delivered_date", func(o *models.Order) **time.Time { return &o.DeliveredDate }),
	dateField("demoDate", "demo_date", func(o *models.Order) **time.Time { return &o.DemoDate }),
	enumField("paymentTerms", "payment_terms", models.PaymentTerms, false, func(o *models.Order) *string { return &o.PaymentTerms }),
	strField("creditDays", "credit_days", func(o *models.Order) *string { return &o.CreditDays }),
	decimalField("actualFreight", "actual_freight", func(o *models.Order) *decimal.Decimal { return &o.ActualFreight }),
	strField("stockStatus", "stock_status", func(o *models.Order) *string { return &o.StockStatus }),
}

var editFieldIndex = func() map[string]int {
	m := make(map[string]int, len(editFields))
	for i, f := range editFields {
		m[f.name] = i
	}
	return m
}()

// applyEdit copies the allow-listed fields of body onto a copy of prev.
// Unknown keys are ignored. It returns the edited copy and the names of the
// fields that were set.
func applyEdit(prev *models.Order, body map[string]json.RawMessage) (*models.Order, map[string]bool, error) {
	next := *prev
	next.Products = append(models.Products(nil), prev.Products...)

	touched := map[string]bool{}
	var problems []string
	for _, f := range editFields {
		raw, ok := body[f.name]
		if !ok {
			continue
		}
		set, err := f.apply(&next, raw)
		var verr *ValidationError
		if errors.As(err, &verr) {
			problems = append(problems, verr.Problems...)
			continue
		}
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", f.name, err))
			continue
		}
		if set {
			touched[f.name] = true
		}
	}
	if len(problems) > 0 {
		return nil, nil, invalid("Validation failed", problems...)
	}
	return &next, touched, nil
}

// changesFor renders the named fields of o as store changes, in allow-list order
func changesFor(o *models.Order, fields map[string]bool) []store.Change {
	idx := make([]bool, len(editFields))
	for name := range fields {
		if i, ok := editFieldIndex[name]; ok {
			idx[i] = true
		}
	}
	changes := make([]store.Change, 0, len(fields))
	for i, set := range idx {
		if set {
			f := editFields[i]
			changes = append(changes, store.Change{Column: f.column, Value: f.value(o)})
		}
	}
	return changes
}

// productPatch is a product line of an edit. Nil fields were not sent.
type productPatch struct {
	ProductType *models.Text        `json:"productType"`
	Size        *models.Text        `json:"size"`
	Spec        *models.Text        `json:"spec"`
	Qty         *models.FlexInt     `json:"qty"`
	UnitPrice   *models.FlexDecimal `json:"unitPrice"`
	GST         *models.GST         `json:"gst"`
	Brand       *models.Text        `json:"brand"`
	Warranty    *models.Text        `json:"warranty"`
	SerialNos   json.RawMessage     `json:"serialNos"`
	ModelNos    json.RawMessage     `json:"modelNos"`
	ProductCode json.RawMessage     `json:"productCode"`
}

func pickText(next *models.Text, prev, def string) string {
	if next != nil && *next != "" {
		return string(*next)
	}
	if prev != "" {
		return prev
	}
	return def
}

// pickList takes the new value only when it was sent as an array
func pickList(raw json.RawMessage, prev []string) []string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []string
		if err := json.Unmarshal(trimmed, &items); err == nil {
			return items
		}
	}
	if prev != nil {
		return prev
	}
	return []string{}
}

// mergeProducts replaces the product list, filling each missing sub-field
// from the stored product at the same index and then from defaults. Every
// merged line is validated.
func mergeProducts(prev models.Products, raw json.RawMessage) (models.Products, error) {
	var patches []productPatch
	if err := json.Unmarshal(raw, &patches); err != nil {
		return nil, fmt.Errorf("expected a list of products: %w", err)
	}
	if len(patches) == 0 {
		return nil, fmt.Errorf("at least one product is required")
	}

	merged := make(models.Products, len(patches))
	var problems []string
	for i, p := range patches {
		var old models.Product
		if i < len(prev) {
			old = prev[i]
		}

		product := models.Product{
			ProductType: pickText(p.ProductType, old.ProductType, ""),
			Size:        pickText(p.Size, old.Size, "N/A"),
			Spec:        pickText(p.Spec, old.Spec, "N/A"),
			Brand:       pickText(p.Brand, old.Brand, ""),
			Warranty:    pickText(p.Warranty, old.Warranty, models.WarrantyOneYear),
			SerialNos:   pickList(p.SerialNos, old.SerialNos),
			ModelNos:    pickList(p.ModelNos, old.ModelNos),
			ProductCode: pickList(p.ProductCode, old.ProductCode),
		}

		switch {
		case p.Qty != nil && p.Qty.Set && p.Qty.Value != 0:
			product.Qty = p.Qty.Value
		case old.Qty != 0:
			product.Qty = old.Qty
		default:
			product.Qty = 1
		}

		switch {
		case p.UnitPrice != nil && p.UnitPrice.Set:
			product.UnitPrice = p.UnitPrice.Value
		case i < len(prev):
			product.UnitPrice = old.UnitPrice
		default:
			product.UnitPrice = decimal.Zero
		}

		switch {
		case p.GST != nil && *p.GST != "":
			product.GST = *p.GST
		case old.GST != "":
			product.GST = old.GST
		default:
			product.GST = "18"
		}

		problems = append(problems, validateProduct(product, i)...)
		merged[i] = product
	}
	if len(problems) > 0 {
		return nil, invalid("Invalid products", problems...)
	}
	return merged, nil
}

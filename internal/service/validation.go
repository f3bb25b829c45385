package service

import (
	"fmt"
	"strings"
	"time"

	"sales-order-service/internal/models"

	"github.com/shopspring/decimal"
)

// ProductInput is a product line as clients and spreadsheets send it
type ProductInput struct {
	ProductType models.Text        `json:"productType"`
	Size        models.Text        `json:"size"`
	Spec        models.Text        `json:"spec"`
	Qty         models.FlexInt     `json:"qty"`
	UnitPrice   models.FlexDecimal `json:"unitPrice"`
	GST         models.GST         `json:"gst"`
	Brand       models.Text        `json:"brand"`
	Warranty    models.Text        `json:"warranty"`
	SerialNos   models.StringList  `json:"serialNos"`
	ModelNos    models.StringList  `json:"modelNos"`
	ProductCode models.StringList  `json:"productCode"`
}

// OrderInput is the create payload
type OrderInput struct {
	CustomerName    models.Text `json:"customername"`
	Name            models.Text `json:"name"`
	ContactNo       models.Text `json:"contactNo"`
	AlterNo         models.Text `json:"alterno"`
	CustomerEmail   models.Text `json:"customerEmail"`
	City            models.Text `json:"city"`
	State           models.Text `json:"state"`
	PinCode         models.Text `json:"pinCode"`
	GSTNo           models.Text `json:"gstno"`
	ShippingAddress models.Text `json:"shippingAddress"`
	BillingAddress  models.Text `json:"billingAddress"`
	SameAddress     models.Flag `json:"sameAddress"`

	OrderType    models.Text    `json:"orderType"`
	Company      models.Text    `json:"company"`
	DispatchFrom models.Text    `json:"dispatchFrom"`
	Products     []ProductInput `json:"products"`

	Total                models.FlexDecimal `json:"total"`
	PaymentCollected     models.FlexDecimal `json:"paymentCollected"`
	PaymentMethod        models.Text        `json:"paymentMethod"`
	PaymentDue           models.FlexDecimal `json:"paymentDue"`
	PaymentTerms         models.Text        `json:"paymentTerms"`
	CreditDays           models.Text        `json:"creditDays"`
	FreightCharges       models.FlexDecimal `json:"freightcs"`
	FreightStatus        models.Text        `json:"freightstatus"`
	InstallationCharges  models.FlexDecimal `json:"installation"`
	InstallChargesStatus models.Text        `json:"installchargesstatus"`
	NEFTTransactionID    models.Text        `json:"neftTransactionId"`
	ChequeID             models.Text        `json:"chequeId"`
	GEMOrderNumber       models.Text        `json:"gemOrderNumber"`

	SalesPerson      models.Text `json:"salesPerson"`
	Report           models.Text `json:"report"`
	Remarks          models.Text `json:"remarks"`
	FulfillingStatus models.Text `json:"fulfillingStatus"`

	SODate       models.FlexDate `json:"soDate"`
	DeliveryDate models.FlexDate `json:"deliveryDate"`
	DemoDate     models.FlexDate `json:"demoDate"`
}

// defaultWarranty picks the warranty for a product that came without one
func defaultWarranty(orderType, productType, brand string) string {
	switch {
	case orderType == models.OrderTypeB2G:
		return models.WarrantyAsPerTender
	case productType == models.ProductTypeIFPD && strings.EqualFold(brand, models.HouseBrand):
		return models.WarrantyThreeYears
	default:
		return models.WarrantyOneYear
	}
}

func orDefault(v models.Text, def string) string {
	if v == "" {
		return def
	}
	return string(v)
}

func list(l models.StringList) []string {
	if l == nil {
		return []string{}
	}
	return []string(l)
}

// toProduct applies the create defaults to a product line
func (p ProductInput) toProduct(orderType string) models.Product {
	product := models.Product{
		ProductType: string(p.ProductType),
		Size:        orDefault(p.Size, "N/A"),
		Spec:        orDefault(p.Spec, "N/A"),
		Qty:         p.Qty.Value,
		UnitPrice:   p.UnitPrice.OrZero(),
		GST:         p.GST,
		Brand:       string(p.Brand),
		Warranty:    string(p.Warranty),
		SerialNos:   list(p.SerialNos),
		ModelNos:    list(p.ModelNos),
		ProductCode: list(p.ProductCode),
	}
	if product.Warranty == "" {
		product.Warranty = defaultWarranty(orderType, product.ProductType, product.Brand)
	}
	return product
}

// validateProduct lists every problem with one product line
func validateProduct(p models.Product, i int) []string {
	label := fmt.Sprintf("products[%d]", i)
	var problems []string
	if p.ProductType == "" {
		problems = append(problems, label+": productType is required")
	}
	if p.Qty <= 0 {
		problems = append(problems, label+": qty must be greater than 0")
	}
	if p.UnitPrice.IsNegative() {
		problems = append(problems, label+": unitPrice must not be negative")
	}
	if p.GST == "" {
		problems = append(problems, label+": gst is required")
	} else if !p.GST.Valid() {
		problems = append(problems, fmt.Sprintf("%s: gst %q must be a number or %q", label, p.GST, models.GSTIncluding))
	}
	if p.Warranty == "" {
		problems = append(problems, label+": warranty is required")
	}
	if p.ProductType == models.ProductTypeIFPD && (p.Brand == "" || len(p.ModelNos) == 0) {
		problems = append(problems, label+": modelNos and brand are required for IFPD products")
	}
	return problems
}

func checkEnum(field, value string, allowed models.Enum) []string {
	if value == "" || allowed.Contains(value) {
		return nil
	}
	return []string{fmt.Sprintf("%s %q is not one of: %s", field, value, strings.Join(allowed, ", "))}
}

// defaultFulfilling is Fulfilled for demos and stock shipped from a depot
func defaultFulfilling(orderType, dispatchFrom string) string {
	if orderType == models.OrderTypeDemo || dispatchFrom != models.FactoryDepot {
		return models.FulfillingFulfilled
	}
	return models.FulfillingNotFulfilled
}

// orderTotal is Σ qty×unitPrice×(1+gst/100) plus freight and installation
func orderTotal(products models.Products, freight, installation decimal.Decimal) decimal.Decimal {
	return products.Subtotal().Add(freight).Add(installation)
}

// Normalize validates the payload and builds the order to store.
// Every problem is collected before returning.
func (in *OrderInput) Normalize(actor models.Actor, now time.Time) (*models.Order, error) {
	orderType := orDefault(in.OrderType, models.OrderTypeB2C)
	company := orDefault(in.Company, models.CompanyProMark)
	dispatchFrom := string(in.DispatchFrom)
	freightStatus := orDefault(in.FreightStatus, models.ChargeExtra)
	installStatus := orDefault(in.InstallChargesStatus, models.ChargeExtra)
	fulfilling := orDefault(in.FulfillingStatus, defaultFulfilling(orderType, dispatchFrom))

	var problems []string
	problems = append(problems, checkEnum("orderType", orderType, models.OrderTypes)...)
	problems = append(problems, checkEnum("company", company, models.Companies)...)
	problems = append(problems, checkEnum("dispatchFrom", dispatchFrom, models.DispatchLocations)...)
	problems = append(problems, checkEnum("paymentTerms", string(in.PaymentTerms), models.PaymentTerms)...)
	problems = append(problems, checkEnum("paymentMethod", string(in.PaymentMethod), models.PaymentMethods)...)
	problems = append(problems, checkEnum("freightstatus", freightStatus, models.ChargeStatuses)...)
	problems = append(problems, checkEnum("installchargesstatus", installStatus, models.ChargeStatuses)...)
	problems = append(problems, checkEnum("fulfillingStatus", fulfilling, models.FulfillingStatuses)...)

	if orderType == models.OrderTypeB2G && in.GEMOrderNumber == "" {
		problems = append(problems, "gemOrderNumber is required for B2G orders")
	}
	if orderType == models.OrderTypeDemo && !in.DemoDate.Set {
		problems = append(problems, "demoDate is required for Demo orders")
	}
	if orderType != models.OrderTypeDemo && in.PaymentTerms == "" {
		problems = append(problems, "paymentTerms is required for non-Demo orders")
	}

	if len(in.Products) == 0 {
		problems = append(problems, "at least one product is required")
	}
	products := make(models.Products, 0, len(in.Products))
	for i, p := range in.Products {
		product := p.toProduct(orderType)
		problems = append(problems, validateProduct(product, i)...)
		products = append(products, product)
	}

	if len(problems) > 0 {
		return nil, invalid("Validation failed", problems...)
	}

	freight := in.FreightCharges.OrZero()
	installation := in.InstallationCharges.OrZero()
	total := orderTotal(products, freight, installation)
	if in.Total.Set {
		total = in.Total.Value
	}
	collected := in.PaymentCollected.OrZero()
	due := total.Sub(collected)
	if in.PaymentDue.Set {
		due = in.PaymentDue.Value
	}

	soDate := now
	if in.SODate.Set {
		soDate = in.SODate.Value
	}

	return &models.Order{
		CustomerName:    string(in.CustomerName),
		Name:            string(in.Name),
		ContactNo:       string(in.ContactNo),
		AlterNo:         string(in.AlterNo),
		CustomerEmail:   string(in.CustomerEmail),
		City:            string(in.City),
		State:           string(in.State),
		PinCode:         string(in.PinCode),
		GSTNo:           string(in.GSTNo),
		ShippingAddress: string(in.ShippingAddress),
		BillingAddress:  string(in.BillingAddress),
		SameAddress:     bool(in.SameAddress),

		OrderType:    orderType,
		Company:      company,
		DispatchFrom: dispatchFrom,
		Products:     products,

		Total:                total,
		PaymentCollected:     collected,
		PaymentMethod:        string(in.PaymentMethod),
		PaymentDue:           due,
		PaymentTerms:         string(in.PaymentTerms),
		CreditDays:           string(in.CreditDays),
		FreightCharges:       freight,
		FreightStatus:        freightStatus,
		InstallationCharges:  installation,
		InstallChargesStatus: installStatus,
		NEFTTransactionID:    string(in.NEFTTransactionID),
		ChequeID:             string(in.ChequeID),
		GEMOrderNumber:       string(in.GEMOrderNumber),

		SalesPerson: string(in.SalesPerson),
		Report:      string(in.Report),
		Remarks:     string(in.Remarks),

		SOStatus:           models.SOStatusPendingApproval,
		FulfillingStatus:   fulfilling,
		DispatchStatus:     models.DispatchNotDispatched,
		InstallationStatus: models.InstallationPending,
		PaymentReceived:    models.PaymentNotReceived,
		BillStatus:         models.BillPending,
		CompletionStatus:   models.CompletionInProgress,

		SODate:       &soDate,
		DeliveryDate: in.DeliveryDate.Ptr(),
		DemoDate:     in.DemoDate.Ptr(),

		CreatedBy: actor.ID,
	}, nil
}

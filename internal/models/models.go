package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Clients read totals and prices as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// OrderIDPrefix is prepended to the counter sequence to form an order number
const OrderIDPrefix = "PMTO"

// OrderSequenceName names the counter row used to mint order numbers
const OrderSequenceName = "orderId"

// FormatOrderID renders a sequence value as a human-readable order number
func FormatOrderID(seq int64) string {
	return fmt.Sprintf("%s%d", OrderIDPrefix, seq)
}

// Order represents a sales order moving through the fulfillment pipeline
type Order struct {
	ID      int64  `db:"id" json:"_id"`
	OrderID string `db:"order_id" json:"orderId"`

	// Customer and shipping
	CustomerName    string `db:"customer_name" json:"customername"`
	Name            string `db:"contact_name" json:"name"`
	ContactNo       string `db:"contact_no" json:"contactNo"`
	AlterNo         string `db:"alter_no" json:"alterno"`
	CustomerEmail   string `db:"customer_email" json:"customerEmail"`
	City            string `db:"city" json:"city"`
	State           string `db:"state" json:"state"`
	PinCode         string `db:"pin_code" json:"pinCode"`
	GSTNo           string `db:"gst_no" json:"gstno"`
	ShippingAddress string `db:"shipping_address" json:"shippingAddress"`
	BillingAddress  string `db:"billing_address" json:"billingAddress"`
	SameAddress     bool   `db:"same_address" json:"sameAddress"`

	// Classification
	OrderType    string `db:"order_type" json:"orderType"`
	Company      string `db:"company" json:"company"`
	DispatchFrom string `db:"dispatch_from" json:"dispatchFrom"`

	Products Products `db:"products" json:"products"`

	// Commercial
	Total                decimal.Decimal `db:"total" json:"total"`
	PaymentCollected     decimal.Decimal `db:"payment_collected" json:"paymentCollected"`
	PaymentMethod        string          `db:"payment_method" json:"paymentMethod"`
	PaymentDue           decimal.Decimal `db:"payment_due" json:"paymentDue"`
	PaymentTerms         string          `db:"payment_terms" json:"paymentTerms"`
	CreditDays           string          `db:"credit_days" json:"creditDays"`
	FreightCharges       decimal.Decimal `db:"freight_charges" json:"freightcs"`
	FreightStatus        string          `db:"freight_status" json:"freightstatus"`
	InstallationCharges  decimal.Decimal `db:"installation_charges" json:"installation"`
	InstallChargesStatus string          `db:"install_charges_status" json:"installchargesstatus"`
	ActualFreight        decimal.Decimal `db:"actual_freight" json:"actualFreight"`
	NEFTTransactionID    string          `db:"neft_transaction_id" json:"neftTransactionId"`
	ChequeID             string          `db:"cheque_id" json:"chequeId"`
	GEMOrderNumber       string          `db:"gem_order_number" json:"gemOrderNumber"`

	// Staff
	SalesPerson string `db:"sales_person" json:"salesPerson"`
	Report      string `db:"report" json:"report"`

	// Pipeline status axes
	SOStatus           string `db:"so_status" json:"sostatus"`
	FulfillingStatus   string `db:"fulfilling_status" json:"fulfillingStatus"`
	DispatchStatus     string `db:"dispatch_status" json:"dispatchStatus"`
	InstallationStatus string `db:"installation_status" json:"installationStatus"`
	PaymentReceived    string `db:"payment_received" json:"paymentReceived"`
	BillStatus         string `db:"bill_status" json:"billStatus"`
	CompletionStatus   string `db:"completion_status" json:"completionStatus"`
	StockStatus        string `db:"stock_status" json:"stockStatus"`

	// Logistics and billing references
	Transporter        string `db:"transporter" json:"transporter"`
	TransporterDetails string `db:"transporter_details" json:"transporterDetails"`
	DocketNo           string `db:"docket_no" json:"docketNo"`
	InvoiceNo          string `db:"invoice_no" json:"invoiceNo"`
	BillNumber         string `db:"bill_number" json:"billNumber"`
	PINumber           string `db:"pi_number" json:"piNumber"`

	// Remarks per stage
	Remarks               string `db:"remarks" json:"remarks"`
	RemarksByProduction   string `db:"remarks_by_production" json:"remarksByProduction"`
	RemarksByInstallation string `db:"remarks_by_installation" json:"remarksByInstallation"`
	RemarksByAccounts     string `db:"remarks_by_accounts" json:"remarksByAccounts"`
	RemarksByBilling      string `db:"remarks_by_billing" json:"remarksByBilling"`
	VerificationRemarks   string `db:"verification_remarks" json:"verificationRemarks"`

	// Timestamps
	SODate          *time.Time `db:"so_date" json:"soDate"`
	DispatchDate    *time.Time `db:"dispatch_date" json:"dispatchDate"`
	ReceiptDate     *time.Time `db:"receipt_date" json:"receiptDate"`
	InvoiceDate     *time.Time `db:"invoice_date" json:"invoiceDate"`
	DeliveryDate    *time.Time `db:"delivery_date" json:"deliveryDate"`
	DeliveredDate   *time.Time `db:"delivered_date" json:"deliveredDate"`
	DemoDate        *time.Time `db:"demo_date" json:"demoDate"`
	FulfillmentDate *time.Time `db:"fulfillment_date" json:"fulfillmentDate"`

	POFilePath string `db:"po_file_path" json:"poFilePath"`

	// Ownership
	CreatedBy  int64  `db:"created_by" json:"createdById"`
	AssignedTo *int64 `db:"assigned_to" json:"assignedToId,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	// Resolved by joins on users; empty when the user row is gone.
	CreatorUsername  *string `db:"creator_username" json:"-"`
	CreatorEmail     *string `db:"creator_email" json:"-"`
	AssigneeUsername *string `db:"assignee_username" json:"-"`
	AssigneeEmail    *string `db:"assignee_email" json:"-"`

	Creator  *UserRef `db:"-" json:"createdBy,omitempty"`
	Assignee *UserRef `db:"-" json:"assignedTo,omitempty"`
}

// UserRef is the display identity of a user attached to an order
type UserRef struct {
	ID       int64  `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ResolveUsers fills Creator and Assignee from the joined user columns
func (o *Order) ResolveUsers() {
	if o.CreatorUsername != nil {
		o.Creator = &UserRef{ID: o.CreatedBy, Username: *o.CreatorUsername}
		if o.CreatorEmail != nil {
			o.Creator.Email = *o.CreatorEmail
		}
	}
	if o.AssignedTo != nil && o.AssigneeUsername != nil {
		o.Assignee = &UserRef{ID: *o.AssignedTo, Username: *o.AssigneeUsername}
		if o.AssigneeEmail != nil {
			o.Assignee.Email = *o.AssigneeEmail
		}
	}
}

// OwnedBy reports whether the user created the order
func (o *Order) OwnedBy(userID int64) bool {
	return o.CreatedBy == userID
}

// Product is a line item embedded in an order
type Product struct {
	ProductType string          `json:"productType"`
	Size        string          `json:"size"`
	Spec        string          `json:"spec"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	GST         GST             `json:"gst"`
	Brand       string          `json:"brand"`
	Warranty    string          `json:"warranty"`
	SerialNos   []string        `json:"serialNos"`
	ModelNos    []string        `json:"modelNos"`
	ProductCode []string        `json:"productCode"`
}

// LineTotal returns qty × unitPrice × (1 + gst/100)
func (p Product) LineTotal() decimal.Decimal {
	multiplier := decimal.NewFromInt(1).Add(p.GST.Rate().Div(decimal.NewFromInt(100)))
	return decimal.NewFromInt(int64(p.Qty)).Mul(p.UnitPrice).Mul(multiplier)
}

// Products is stored as a JSONB column
type Products []Product

// Value implements driver.Valuer
func (p Products) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner
func (p *Products) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*p = Products{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("products: unsupported column type")
	}
	return json.Unmarshal(data, p)
}

// Subtotal sums the line totals of every product
func (p Products) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, product := range p {
		sum = sum.Add(product.LineTotal())
	}
	return sum
}

// Notification is an in-app message produced by order mutations
type Notification struct {
	ID        int64     `db:"id" json:"id"`
	Message   string    `db:"message" json:"message"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	IsRead    bool      `db:"is_read" json:"isRead"`
	Role      string    `db:"role" json:"role"`
	UserID    *int64    `db:"user_id" json:"userId,omitempty"`
}

// User is an entry of the user directory
type User struct {
	ID               int64     `db:"id" json:"_id"`
	Username         string    `db:"username" json:"username"`
	Email            string    `db:"email" json:"email"`
	Role             string    `db:"role" json:"role"`
	AssignedToLeader *int64    `db:"assigned_to_leader" json:"assignedToLeader"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// Actor is the authenticated identity behind a request
type Actor struct {
	ID       int64
	Username string
	Role     string
}

// Privileged reports whether the actor may see and delete every order
func (a Actor) Privileged() bool {
	return a.Role == RoleAdmin || a.Role == RoleSuperAdmin
}

// DisplayName falls back to "User" when the token carries no username
func (a Actor) DisplayName() string {
	if a.Username == "" {
		return "User"
	}
	return a.Username
}

// Scope restricts order reads to a set of owners
type Scope struct {
	All     bool
	UserIDs []int64
}

// Includes reports whether an order falls inside the scope
func (s Scope) Includes(o *Order) bool {
	if s.All {
		return true
	}
	for _, id := range s.UserIDs {
		if o.CreatedBy == id || (o.AssignedTo != nil && *o.AssignedTo == id) {
			return true
		}
	}
	return false
}

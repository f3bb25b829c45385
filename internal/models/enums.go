package models

// Roles
const (
	RoleSuperAdmin   = "SuperAdmin"
	RoleAdmin        = "Admin"
	RoleSales        = "Sales"
	RoleProduction   = "Production"
	RoleInstallation = "Installation"
	RoleFinance      = "Finance"
	RoleVerification = "Verification"
	RoleBilling      = "Billing"
	RoleWatch        = "Watch"
)

// NotificationRoleAll is the broadcast scope used by every order notification
const NotificationRoleAll = "All"

// Order types
const (
	OrderTypeB2G         = "B2G"
	OrderTypeB2C         = "B2C"
	OrderTypeB2B         = "B2B"
	OrderTypeDemo        = "Demo"
	OrderTypeReplacement = "Replacement"
	OrderTypeStockOut    = "Stock Out"
)

// Companies
const (
	CompanyProMark = "ProMark"
	CompanyProMine = "ProMine"
	CompanyOthers  = "Others"
)

// FactoryDepot is the only dispatch location that goes through production
const FactoryDepot = "Morinda"

// Payment terms
const (
	PaymentTermsFullAdvance    = "100% Advance"
	PaymentTermsPartialAdvance = "Partial Advance"
	PaymentTermsCredit         = "Credit"
)

// Sales order approval chain
const (
	SOStatusPendingApproval  = "Pending for Approval"
	SOStatusAccountsApproved = "Accounts Approved"
	SOStatusApproved         = "Approved"
)

// Fulfilling statuses
const (
	FulfillingPending         = "Pending"
	FulfillingFulfilled       = "Fulfilled"
	FulfillingNotFulfilled    = "Not Fulfilled"
	FulfillingPartialDispatch = "Partial Dispatch"
)

// Dispatch statuses
const (
	DispatchNotDispatched         = "Not Dispatched"
	DispatchDispatched            = "Dispatched"
	DispatchDocketAwaitDispatched = "Docket Awaited Dispatched"
	DispatchDelivered             = "Delivered"
)

// Installation statuses
const (
	InstallationPending      = "Pending"
	InstallationInProgress   = "In Progress"
	InstallationCompleted    = "Completed"
	InstallationFailed       = "Failed"
	InstallationHold         = "Hold"
	InstallationSiteNotReady = "Site Not Ready"
)

// Payment received statuses
const (
	PaymentNotReceived = "Not Received"
	PaymentReceived    = "Received"
)

// Bill statuses
const (
	BillPending         = "Pending"
	BillUnderBilling    = "Under Billing"
	BillBillingComplete = "Billing Complete"
)

// Completion statuses
const (
	CompletionInProgress = "In Progress"
	CompletionComplete   = "Complete"
)

// Charge statuses
const (
	ChargeExtra    = "Extra"
	ChargeIncluded = "Included"
)

// Default warranties
const (
	WarrantyAsPerTender = "As Per Tender"
	WarrantyThreeYears  = "3 Years"
	WarrantyOneYear     = "1 Year"
)

// ProductTypeIFPD is the interactive flat panel display line, which requires brand and model numbers
const ProductTypeIFPD = "IFPD"

// HouseBrand gets the extended IFPD warranty
const HouseBrand = "Promark"

// Enum is an ordered set of allowed values
type Enum []string

// Contains reports whether v is one of the allowed values
func (e Enum) Contains(v string) bool {
	for _, allowed := range e {
		if allowed == v {
			return true
		}
	}
	return false
}

// Index returns the position of v, or -1
func (e Enum) Index(v string) int {
	for i, allowed := range e {
		if allowed == v {
			return i
		}
	}
	return -1
}

var (
	OrderTypes = Enum{OrderTypeB2G, OrderTypeB2C, OrderTypeB2B, OrderTypeDemo, OrderTypeReplacement, OrderTypeStockOut}
	Companies  = Enum{CompanyProMark, CompanyProMine, CompanyOthers}

	// DispatchLocations is every depot an order may ship from
	DispatchLocations = Enum{"Patna", "Bareilly", "Ranchi", FactoryDepot, "Lucknow", "Delhi", "Jaipur", "Rajasthan"}

	// DepotFulfillment lists depots that ship from stock and skip production
	DepotFulfillment = Enum{"Patna", "Bareilly", "Ranchi", "Lucknow", "Delhi", "Jaipur", "Rajasthan"}

	PaymentMethods = Enum{"Cash", "NEFT", "RTGS", "Cheque", "UPI"}
	PaymentTerms   = Enum{PaymentTermsFullAdvance, PaymentTermsPartialAdvance, PaymentTermsCredit}
	ChargeStatuses = Enum{ChargeExtra, ChargeIncluded}

	// Status axes are listed in forward order.
	SOStatuses           = Enum{SOStatusPendingApproval, SOStatusAccountsApproved, SOStatusApproved}
	FulfillingStatuses   = Enum{FulfillingPending, FulfillingNotFulfilled, FulfillingPartialDispatch, FulfillingFulfilled}
	DispatchStatuses     = Enum{DispatchNotDispatched, DispatchDispatched, DispatchDocketAwaitDispatched, DispatchDelivered}
	InstallationStatuses = Enum{InstallationPending, InstallationHold, InstallationSiteNotReady, InstallationFailed, InstallationInProgress, InstallationCompleted}
	PaymentStatuses      = Enum{PaymentNotReceived, PaymentReceived}
	BillStatuses         = Enum{BillPending, BillUnderBilling, BillBillingComplete}
	CompletionStatuses   = Enum{CompletionInProgress, CompletionComplete}

	Roles           = Enum{RoleSuperAdmin, RoleAdmin, RoleSales, RoleProduction, RoleInstallation, RoleFinance, RoleVerification, RoleBilling, RoleWatch}
	TeamEligibility = Enum{RoleSales, RoleAdmin, RoleSuperAdmin}
)

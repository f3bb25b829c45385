package pipeline

import (
	"sales-order-service/internal/models"
)

// Stage is a named pipeline bucket. Clause and Match express the same
// predicate: Clause for the store (sqlx.In style placeholders), Match for
// in-memory checks.
type Stage struct {
	Name   string
	Clause string
	Args   []interface{}
	Match  func(o *models.Order) bool
}

// Stage names
const (
	StageProduction         = "production"
	StageFinishedGoods      = "finished-goods"
	StageInstallation       = "installation"
	StageAccounts           = "accounts"
	StageVerification       = "verification"
	StageBilling            = "billing"
	StageProductionApproval = "production-approval"
)

var installationQueue = models.Enum{
	models.InstallationPending,
	models.InstallationInProgress,
	models.InstallationHold,
	models.InstallationSiteNotReady,
}

var advanceTerms = models.Enum{models.PaymentTermsFullAdvance, models.PaymentTermsPartialAdvance}

var accountsCleared = models.Enum{models.SOStatusAccountsApproved, models.SOStatusApproved}

// Stages lists every projection
var Stages = []Stage{
	{
		Name:   StageProduction,
		Clause: "o.so_status = ? AND o.dispatch_from NOT IN (?) AND o.fulfilling_status <> ?",
		Args:   []interface{}{models.SOStatusApproved, []string(models.DepotFulfillment), models.FulfillingFulfilled},
		Match: func(o *models.Order) bool {
			return o.SOStatus == models.SOStatusApproved &&
				!models.DepotFulfillment.Contains(o.DispatchFrom) &&
				o.FulfillingStatus != models.FulfillingFulfilled
		},
	},
	{
		Name:   StageFinishedGoods,
		Clause: "o.fulfilling_status = ? AND o.dispatch_status <> ?",
		Args:   []interface{}{models.FulfillingFulfilled, models.DispatchDelivered},
		Match: func(o *models.Order) bool {
			return o.FulfillingStatus == models.FulfillingFulfilled && o.DispatchStatus != models.DispatchDelivered
		},
	},
	{
		Name:   StageInstallation,
		Clause: "o.dispatch_status = ? AND o.installation_status IN (?)",
		Args:   []interface{}{models.DispatchDelivered, []string(installationQueue)},
		Match: func(o *models.Order) bool {
			return o.DispatchStatus == models.DispatchDelivered && installationQueue.Contains(o.InstallationStatus)
		},
	},
	{
		Name:   StageAccounts,
		Clause: "o.installation_status = ? AND o.payment_received <> ?",
		Args:   []interface{}{models.InstallationCompleted, models.PaymentReceived},
		Match: func(o *models.Order) bool {
			return o.InstallationStatus == models.InstallationCompleted && o.PaymentReceived != models.PaymentReceived
		},
	},
	{
		Name:   StageVerification,
		Clause: "o.payment_terms IN (?) AND o.so_status NOT IN (?)",
		Args:   []interface{}{[]string(advanceTerms), []string(accountsCleared)},
		Match: func(o *models.Order) bool {
			return advanceTerms.Contains(o.PaymentTerms) && !accountsCleared.Contains(o.SOStatus)
		},
	},
	{
		Name:   StageBilling,
		Clause: "o.so_status = ? AND o.bill_status <> ?",
		Args:   []interface{}{models.SOStatusApproved, models.BillBillingComplete},
		Match: func(o *models.Order) bool {
			return o.SOStatus == models.SOStatusApproved && o.BillStatus != models.BillBillingComplete
		},
	},
	{
		Name:   StageProductionApproval,
		Clause: "(o.so_status = ? OR (o.so_status = ? AND o.payment_terms = ?))",
		Args:   []interface{}{models.SOStatusAccountsApproved, models.SOStatusPendingApproval, models.PaymentTermsCredit},
		Match: func(o *models.Order) bool {
			return o.SOStatus == models.SOStatusAccountsApproved ||
				(o.SOStatus == models.SOStatusPendingApproval && o.PaymentTerms == models.PaymentTermsCredit)
		},
	},
}

// StageByName looks a projection up by name
func StageByName(name string) (Stage, bool) {
	for _, s := range Stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// Bucket returns the names of every stage the order currently sits in
func Bucket(o *models.Order) []string {
	var names []string
	for _, s := range Stages {
		if s.Match(o) {
			names = append(names, s.Name)
		}
	}
	return names
}

// Filter keeps the orders matching the stage
func (s Stage) Filter(orders []models.Order) []models.Order {
	out := make([]models.Order, 0, len(orders))
	for i := range orders {
		if s.Match(&orders[i]) {
			out = append(out, orders[i])
		}
	}
	return out
}

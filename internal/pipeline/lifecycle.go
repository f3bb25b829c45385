// Package pipeline holds the order lifecycle rules and the stage projections
// that bucket orders into per-department work queues.
//
// The status fields are independent axes. Rules only nudge fields forward in
// response to an edit; nothing here reverts a status or blocks a backward edit.
package pipeline

import (
	"time"

	"sales-order-service/internal/models"
)

// Edit is a pending partial update of a stored order
type Edit struct {
	// Prev is the stored order before the edit
	Prev *models.Order
	// Next is Prev with the allow-listed fields of the edit applied
	Next *models.Order
	// Touched holds the JSON field names the edit actually set
	Touched map[string]bool
}

func (e Edit) touched(field string) bool {
	return e.Touched[field]
}

// Outcome reports what the rules did to an edit
type Outcome struct {
	// Derived lists JSON field names the rules set on Next
	Derived []string
	// Mail lists customer notifications to dispatch after the write commits
	Mail []models.MailKind
	// Regressions lists status axes the edit moved backward
	Regressions []Regression
}

// Regression records a backward move on a status axis
type Regression struct {
	Field string
	From  string
	To    string
}

func (o *Outcome) derive(field string) {
	for _, f := range o.Derived {
		if f == field {
			return
		}
	}
	o.Derived = append(o.Derived, field)
}

// Rule is one cross-field derivation
type Rule struct {
	Name  string
	Apply func(e Edit, now time.Time, out *Outcome)
}

// Rules is the derivation table applied, in order, to every edit
var Rules = []Rule{
	{Name: "fulfilled-completes-order", Apply: fulfilledCompletesOrder},
	{Name: "delivery-stamps-receipt", Apply: deliveryStampsReceipt},
	{Name: "approval-mails-customer", Apply: approvalMailsCustomer},
	{Name: "dispatch-mails-customer", Apply: dispatchMailsCustomer},
}

// Apply runs every rule against the edit, mutating e.Next
func Apply(e Edit, now time.Time) Outcome {
	var out Outcome
	for _, rule := range Rules {
		rule.Apply(e, now, &out)
	}
	out.Regressions = regressions(e)
	return out
}

func fulfilledCompletesOrder(e Edit, now time.Time, out *Outcome) {
	if !e.touched("fulfillingStatus") || e.Next.FulfillingStatus != models.FulfillingFulfilled {
		return
	}
	e.Next.CompletionStatus = models.CompletionComplete
	out.derive("completionStatus")
	if !e.touched("fulfillmentDate") || e.Next.FulfillmentDate == nil {
		t := now
		e.Next.FulfillmentDate = &t
		out.derive("fulfillmentDate")
	}
}

func deliveryStampsReceipt(e Edit, now time.Time, out *Outcome) {
	if !e.touched("dispatchStatus") || e.Next.DispatchStatus != models.DispatchDelivered {
		return
	}
	if !e.touched("receiptDate") || e.Next.ReceiptDate == nil {
		t := now
		e.Next.ReceiptDate = &t
		out.derive("receiptDate")
	}
}

func approvalMailsCustomer(e Edit, _ time.Time, out *Outcome) {
	if !e.touched("sostatus") || e.Next.SOStatus != models.SOStatusApproved {
		return
	}
	if e.Prev.SOStatus == models.SOStatusApproved || e.Next.CustomerEmail == "" {
		return
	}
	out.Mail = append(out.Mail, models.MailOrderApproved)
}

func dispatchMailsCustomer(e Edit, _ time.Time, out *Outcome) {
	if !e.touched("dispatchStatus") || e.Next.CustomerEmail == "" {
		return
	}
	switch e.Next.DispatchStatus {
	case models.DispatchDispatched:
		out.Mail = append(out.Mail, models.MailOrderDispatched)
	case models.DispatchDelivered:
		out.Mail = append(out.Mail, models.MailOrderDelivered)
	}
}

// Axis is one independent status variable of an order
type Axis struct {
	Field  string
	Values models.Enum
	Get    func(o *models.Order) string
}

// Axes lists every status variable with its values in forward order
var Axes = []Axis{
	{Field: "sostatus", Values: models.SOStatuses, Get: func(o *models.Order) string { return o.SOStatus }},
	{Field: "fulfillingStatus", Values: models.FulfillingStatuses, Get: func(o *models.Order) string { return o.FulfillingStatus }},
	{Field: "dispatchStatus", Values: models.DispatchStatuses, Get: func(o *models.Order) string { return o.DispatchStatus }},
	{Field: "installationStatus", Values: models.InstallationStatuses, Get: func(o *models.Order) string { return o.InstallationStatus }},
	{Field: "paymentReceived", Values: models.PaymentStatuses, Get: func(o *models.Order) string { return o.PaymentReceived }},
	{Field: "billStatus", Values: models.BillStatuses, Get: func(o *models.Order) string { return o.BillStatus }},
	{Field: "completionStatus", Values: models.CompletionStatuses, Get: func(o *models.Order) string { return o.CompletionStatus }},
}

// AxisFor returns the status axis behind a JSON field name
func AxisFor(field string) (Axis, bool) {
	for _, a := range Axes {
		if a.Field == field {
			return a, true
		}
	}
	return Axis{}, false
}

// Backward transitions are accepted but reported so they show up in logs.
func regressions(e Edit) []Regression {
	var out []Regression
	for _, axis := range Axes {
		if !e.touched(axis.Field) {
			continue
		}
		from, to := axis.Get(e.Prev), axis.Get(e.Next)
		fromIdx, toIdx := axis.Values.Index(from), axis.Values.Index(to)
		if fromIdx >= 0 && toIdx >= 0 && toIdx < fromIdx {
			out = append(out, Regression{Field: axis.Field, From: from, To: to})
		}
	}
	return out
}

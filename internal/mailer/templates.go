package mailer

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"sales-order-service/internal/models"
)

type mailTemplate struct {
	subject string
	intro   string
	html    *template.Template
}

type line struct {
	Name      string
	Qty       int
	UnitPrice string
}

type view struct {
	Customer    string
	OrderID     string
	Intro       string
	Lines       []line
	Total       string
	DateLabel   string
	Date        string
	Transporter string
	DocketNo    string
	Signature   string
}

const layout = `<p>Dear {{.Customer}},</p>
<p>{{.Intro}}</p>
<table border="1" cellpadding="6" cellspacing="0">
<tr><th>Product</th><th>Qty</th><th>Unit Price</th></tr>
{{range .Lines}}<tr><td>{{.Name}}</td><td>{{.Qty}}</td><td>&#8377;{{.UnitPrice}}</td></tr>
{{end}}</table>
<p><strong>Total:</strong> &#8377;{{.Total}}</p>
{{if .DateLabel}}<p><strong>{{.DateLabel}}:</strong> {{.Date}}</p>
<p><strong>Transporter:</strong> {{.Transporter}}</p>
<p><strong>Docket No:</strong> {{.DocketNo}}</p>
{{end}}<p>Warm regards,<br>{{.Signature}}</p>
`

func newTemplate(kind models.MailKind, subject, intro string) mailTemplate {
	return mailTemplate{
		subject: subject,
		intro:   intro,
		html:    template.Must(template.New(string(kind)).Parse(layout)),
	}
}

var templates = map[models.MailKind]mailTemplate{
	models.MailOrderReceived: newTemplate(models.MailOrderReceived,
		"Your Order #%s has been Received!",
		"Thank you for your order. We have received it and will keep you posted as it moves along."),
	models.MailOrderApproved: newTemplate(models.MailOrderApproved,
		"Your Order #%s is Approved!",
		"Great news! Your order has been approved and is now being prepared."),
	models.MailOrderDispatched: newTemplate(models.MailOrderDispatched,
		"Your Order #%s Has Been Dispatched!",
		"Your order is on its way."),
	models.MailOrderDelivered: newTemplate(models.MailOrderDelivered,
		"Your Order #%s Has Been Delivered!",
		"Your order has been delivered. We hope you enjoy it."),
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.Format("02 Jan 2006")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func newView(ev *models.MailRequestedEvent) view {
	v := view{
		Customer:  orNA(ev.CustomerName),
		OrderID:   ev.OrderID,
		Intro:     templates[ev.Kind].intro,
		Total:     ev.Total.StringFixed(2),
		Signature: Signature,
	}
	for _, p := range ev.Products {
		name := p.ProductType
		if p.Brand != "" {
			name = p.Brand + " " + name
		}
		v.Lines = append(v.Lines, line{Name: name, Qty: p.Qty, UnitPrice: p.UnitPrice.StringFixed(2)})
	}

	switch ev.Kind {
	case models.MailOrderDispatched:
		v.DateLabel, v.Date = "Dispatch Date", formatDate(ev.DispatchDate)
	case models.MailOrderDelivered:
		v.DateLabel, v.Date = "Delivery Date", formatDate(ev.ReceiptDate)
	}
	if v.DateLabel != "" {
		v.Transporter = orNA(ev.Transporter)
		v.DocketNo = orNA(ev.DocketNo)
	}
	return v
}

func plainText(v view, intro string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n%s\n\n", v.Customer, intro)
	for _, l := range v.Lines {
		fmt.Fprintf(&b, "- %s x %d @ ₹%s\n", l.Name, l.Qty, l.UnitPrice)
	}
	fmt.Fprintf(&b, "\nTotal: ₹%s\n", v.Total)
	if v.DateLabel != "" {
		fmt.Fprintf(&b, "%s: %s\nTransporter: %s\nDocket No: %s\n", v.DateLabel, v.Date, v.Transporter, v.DocketNo)
	}
	fmt.Fprintf(&b, "\nWarm regards,\n%s\n", v.Signature)
	return b.String()
}

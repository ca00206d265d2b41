package notification

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"
)

var templates = template.Must(template.New("email").Parse(`
{{define "approved"}}<p>Dear {{.Name}},</p>
<p>Your {{.Kind}} of <strong>{{.Amount}} {{.Currency}}</strong> has been approved.</p>
{{if .Note}}<p>Note from our team: {{.Note}}</p>{{end}}
<p>Thank you for being part of Holidaysri.</p>{{end}}

{{define "rejected"}}<p>Dear {{.Name}},</p>
<p>Your {{.Kind}} of <strong>{{.Amount}} {{.Currency}}</strong> could not be approved.</p>
<p>Reason: {{.Note}}</p>
<p>The underlying items have been released and can be claimed again.</p>{{end}}

{{define "paid"}}<p>Dear {{.Name}},</p>
<p>We have transferred <strong>{{.Amount}} {{.Currency}}</strong> raised by your campaign.</p>
{{if .Note}}<p>Payment reference: {{.Note}}</p>{{end}}
<p>The campaign and its advertisement have now been closed.</p>{{end}}

{{define "digest"}}<p>Pending payout requests awaiting review:</p>
<ul>{{range .Lines}}<li>{{.Label}}: {{.Count}} pending ({{.Amount}} {{.Currency}}){{if .Stale}}, {{.Stale}} older than {{$.StaleAfter}}{{end}}</li>{{end}}</ul>{{end}}
`))

// RequestMail carries the fields shown in requester emails
type RequestMail struct {
	Name     string
	Kind     string
	Amount   decimal.Decimal
	Currency string
	Note     string
}

// DigestLine is one variant row of the admin digest
type DigestLine struct {
	Label    string
	Count    int64
	Amount   decimal.Decimal
	Currency string
	Stale    int64
}

// Digest is the admin pending-request summary
type Digest struct {
	Lines      []DigestLine
	StaleAfter string
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", name, err)
	}
	return buf.String(), nil
}

// ApprovedEmail builds the approval notice
func ApprovedEmail(to string, m RequestMail) (Message, error) {
	html, err := render("approved", m)
	return Message{ToEmail: to, ToName: m.Name, Subject: fmt.Sprintf("Your %s has been approved", m.Kind), HTML: html}, err
}

// RejectedEmail builds the rejection notice
func RejectedEmail(to string, m RequestMail) (Message, error) {
	html, err := render("rejected", m)
	return Message{ToEmail: to, ToName: m.Name, Subject: fmt.Sprintf("Update on your %s", m.Kind), HTML: html}, err
}

// PaymentConfirmationEmail builds the donation payout confirmation
func PaymentConfirmationEmail(to string, m RequestMail) (Message, error) {
	html, err := render("paid", m)
	return Message{ToEmail: to, ToName: m.Name, Subject: "Payment confirmation for your campaign", HTML: html}, err
}

// DigestEmail builds the pending-request digest for one admin address
func DigestEmail(to string, d Digest) (Message, error) {
	html, err := render("digest", d)
	return Message{ToEmail: to, Subject: "Pending payout requests", HTML: html}, err
}

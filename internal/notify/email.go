package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pasteleria/internal/obs"
)

var templateFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return "$" + d.StringFixed(0) },
}

var customerTemplate = template.Must(template.New("customer").Funcs(templateFuncs).Parse(
	`Hi {{.CustomerName}},

We received the payment for order #{{.OrderID}}.

Your order:
{{range .Lines}}- {{.Name}} (x{{.Quantity}}) {{money .Subtotal}}{{if .Savings.IsPositive}} (was {{money .BaseSubtotal}}, you save {{money .Savings}}{{with .PromotionLabel}} - {{.}}{{end}}){{end}}
{{end}}{{if .TotalSavings.IsPositive}}
Total savings: {{money .TotalSavings}}{{end}}
Total paid: {{money .Total}}

{{if eq .DeliveryType "delivery"}}We will deliver to: {{.Address}}{{else}}Your order will be ready for pickup at the store.{{end}}

{{.StoreName}}
`))

var staffTemplate = template.Must(template.New("staff").Funcs(templateFuncs).Parse(
	`{{.CustomerName}} ({{.Email}}) placed order #{{.OrderID}}.

{{range .Lines}}- {{.Name}} | qty {{.Quantity}} | unit {{money .BaseUnitPrice}} | base {{money .BaseSubtotal}} | discount {{money .Savings}} | final {{money .Subtotal}}{{with .PromotionLabel}} | promo {{.}}{{end}}
{{end}}
Total charged: {{money .Total}}
Delivery: {{.DeliveryType}}{{with .Address}} ({{.}}){{end}}
`))

type emailData struct {
	Confirmation
	TotalSavings decimal.Decimal
	StoreName    string
}

// Mailer renders and sends the customer receipt and the staff notice.
type Mailer struct {
	Sender     Sender
	StaffEmail string
	StoreName  string
	Logger     zerolog.Logger
}

// CustomerMessage renders the receipt sent to the buyer.
func (m Mailer) CustomerMessage(c Confirmation) (Message, error) {
	body, err := m.render(customerTemplate, c)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      c.Email,
		Subject: fmt.Sprintf("Your %s receipt for order #%d", m.storeName(), c.OrderID),
		Body:    body,
	}, nil
}

// StaffMessage renders the notice sent to the store.
func (m Mailer) StaffMessage(c Confirmation) (Message, error) {
	body, err := m.render(staffTemplate, c)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      m.StaffEmail,
		Subject: fmt.Sprintf("New paid order #%d", c.OrderID),
		Body:    body,
	}, nil
}

// Send delivers both emails. Missing recipients are skipped.
func (m Mailer) Send(ctx context.Context, c Confirmation) error {
	if m.Sender == nil {
		return errors.New("notify: sender not configured")
	}
	var errs []error
	if strings.TrimSpace(c.Email) != "" {
		errs = append(errs, m.deliver(ctx, "customer", c, m.CustomerMessage))
	}
	if strings.TrimSpace(m.StaffEmail) != "" {
		errs = append(errs, m.deliver(ctx, "staff", c, m.StaffMessage))
	}
	return errors.Join(errs...)
}

func (m Mailer) deliver(ctx context.Context, audience string, c Confirmation, build func(Confirmation) (Message, error)) error {
	result := "success"
	defer func() {
		if obs.NotificationTotal != nil {
			obs.NotificationTotal.WithLabelValues(audience, result).Inc()
		}
	}()
	msg, err := build(c)
	if err == nil {
		err = m.Sender.Send(ctx, msg)
	}
	if err != nil {
		result = "error"
		m.Logger.Error().Err(err).Int64("order_id", c.OrderID).Str("audience", audience).Msg("order email failed")
		return fmt.Errorf("send %s email: %w", audience, err)
	}
	return nil
}

// HandleConfirmation is the asynq handler for TypeOrderConfirmation.
func (m Mailer) HandleConfirmation(ctx context.Context, t *asynq.Task) error {
	var c Confirmation
	if err := json.Unmarshal(t.Payload(), &c); err != nil {
		return fmt.Errorf("decode confirmation: %v: %w", err, asynq.SkipRetry)
	}
	return m.Send(ctx, c)
}

func (m Mailer) render(tpl *template.Template, c Confirmation) (string, error) {
	var buf bytes.Buffer
	data := emailData{Confirmation: c, TotalSavings: c.Savings(), StoreName: m.storeName()}
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", tpl.Name(), err)
	}
	return buf.String(), nil
}

func (m Mailer) storeName() string {
	if m.StoreName == "" {
		return "Pasteleria"
	}
	return m.StoreName
}

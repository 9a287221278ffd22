package services

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/birchwood-sourdough/orders/models"
)

// MessageConfig holds the shop details quoted in customer messages.
type MessageConfig struct {
	BusinessName string
	PayID        string
	ContactPhone string
}

// Message is a rendered notification for one channel.
type Message struct {
	Subject string
	Body    string
}

type messageData struct {
	Order    models.Order
	Shop     MessageConfig
	Loaves   string
	Location string
	Total    string
}

var emailTemplates = htmltemplate.Must(htmltemplate.New("email").Parse(`
{{define "order_confirmation"}}<h1>Thanks for your order, {{.Order.CustomerName}}!</h1>
<p>Your order for {{.Loaves}} on {{.Order.PickupDay}} at {{.Location}} has been received.</p>
<p>To confirm your order, please make a payment of A${{.Total}} to the following PayID:</p>
<ul>
  <li><strong>PayID:</strong> {{.Shop.PayID}}</li>
  <li><strong>Amount:</strong> A${{.Total}}</li>
  <li><strong>Reference:</strong> {{.Order.OrderReference}}</li>
</ul>
<p>Your order will only be confirmed once payment is received. Please include the reference number.</p>
<p>The {{.Shop.BusinessName}} Team</p>{{end}}
{{define "payment_received"}}<h1>Payment received, {{.Order.CustomerName}}!</h1>
<p>Your {{.Loaves}} will be ready for pickup on {{.Order.PickupDay}} at {{.Location}}.</p>
<ul>
  <li><strong>Order Reference:</strong> {{.Order.OrderReference}}</li>
</ul>
<p>Thanks for choosing {{.Shop.BusinessName}}!</p>{{end}}
{{define "ready_for_pickup"}}<h1>Great news, {{.Order.CustomerName}}!</h1>
<p>Your order for {{.Loaves}} is now ready for pickup!</p>
<ul>
  <li><strong>Date:</strong> {{.Order.PickupDay}}</li>
  <li><strong>Location:</strong> {{.Location}}</li>
  <li><strong>Order Reference:</strong> {{.Order.OrderReference}}</li>
</ul>
{{if .Shop.ContactPhone}}<p><strong>To arrange collection, please text {{.Shop.ContactPhone}}.</strong></p>{{end}}
<p>The {{.Shop.BusinessName}} Team</p>{{end}}
`))

var smsTemplates = texttemplate.Must(texttemplate.New("sms").Parse(`
{{- define "order_confirmation"}}Hi {{.Order.CustomerName}}! Your {{.Shop.BusinessName}} order: {{.Loaves}} for pickup on {{.Order.PickupDay}} at {{.Location}}. Please pay A${{.Total}} to PayID: {{.Shop.PayID}} (Ref: {{.Order.OrderReference}}). Thanks!{{end}}
{{- define "payment_received"}}Great news {{.Order.CustomerName}}! Your payment has been received. Your {{.Loaves}} will be ready for pickup on {{.Order.PickupDay}} at {{.Location}}. Thanks for choosing {{.Shop.BusinessName}}!{{end}}
{{- define "ready_for_pickup"}}Hi {{.Order.CustomerName}}! Your order is ready for pickup on {{.Order.PickupDay}} at {{.Location}}.{{if .Shop.ContactPhone}} Please text {{.Shop.ContactPhone}} to arrange collection.{{end}} Thanks for choosing {{.Shop.BusinessName}}!{{end}}
`))

var emailSubjects = map[models.NotificationKind]string{
	models.NotifyOrderConfirmation: "Your %s Order Confirmation",
	models.NotifyPaymentReceived:   "Payment received for your %s order",
	models.NotifyReadyForPickup:    "Your %s Order is Ready!",
}

// MessageRenderer renders notifications into email and SMS text.
type MessageRenderer struct {
	cfg MessageConfig
}

func NewMessageRenderer(cfg MessageConfig) *MessageRenderer {
	if cfg.BusinessName == "" {
		cfg.BusinessName = "Birchwood Sourdough"
	}
	return &MessageRenderer{cfg: cfg}
}

func (r *MessageRenderer) Email(n models.Notification) (Message, error) {
	subject, ok := emailSubjects[n.Kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, string(n.Kind), r.data(n.Order)); err != nil {
		return Message{}, fmt.Errorf("render %s email: %w", n.Kind, err)
	}
	return Message{Subject: fmt.Sprintf(subject, r.cfg.BusinessName), Body: buf.String()}, nil
}

func (r *MessageRenderer) SMS(n models.Notification) (Message, error) {
	var buf bytes.Buffer
	if err := smsTemplates.ExecuteTemplate(&buf, string(n.Kind), r.data(n.Order)); err != nil {
		return Message{}, fmt.Errorf("render %s sms: %w", n.Kind, err)
	}
	return Message{Body: buf.String()}, nil
}

func (r *MessageRenderer) data(o models.Order) messageData {
	loaves := "1 loaf"
	if o.Quantity != 1 {
		loaves = fmt.Sprintf("%d loaves", o.Quantity)
	}
	location := o.PickupLocation
	if location == "" {
		location = "the usual location"
	}
	return messageData{
		Order:    o,
		Shop:     r.cfg,
		Loaves:   loaves,
		Location: location,
		Total:    fmt.Sprintf("%.2f", o.TotalAmount),
	}
}

package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/noah-isme/grosir-api/internal/events"
	"github.com/noah-isme/grosir-api/internal/order"
	"github.com/noah-isme/grosir-api/internal/pricing"
)

// Message kinds, one per customer-facing topic.
const (
	KindOrderConfirmation = "order_confirmation"
	KindPaymentReceived   = "payment_received"
	KindOrderShipped      = "order_shipped"
	KindOrderDelivered    = "order_delivered"
	KindOrderCanceled     = "order_canceled"
)

var topicKinds = map[string]string{
	events.TopicOrderCreated:      KindOrderConfirmation,
	events.TopicOrderPaid:         KindPaymentReceived,
	events.TopicShipmentShipped:   KindOrderShipped,
	events.TopicShipmentDelivered: KindOrderDelivered,
	events.TopicOrderCanceled:     KindOrderCanceled,
}

// KindFor maps an event topic to the email sent for it.
func KindFor(topic string) (string, bool) {
	k, ok := topicKinds[topic]
	return k, ok
}

func subjectFor(kind string, o order.Order) string {
	ref := o.Number
	if ref == "" {
		ref = o.ID
	}
	switch kind {
	case KindOrderConfirmation:
		return "Order Confirmation - " + ref
	case KindPaymentReceived:
		return "Payment Received - " + ref
	case KindOrderShipped:
		return "Your Order Has Shipped - " + ref
	case KindOrderDelivered:
		return "Your Order Was Delivered - " + ref
	case KindOrderCanceled:
		return "Order Canceled - " + ref
	}
	return "Order Update - " + ref
}

var headlines = map[string]string{
	KindOrderConfirmation: "Thank you for your order!",
	KindPaymentReceived:   "We received your payment.",
	KindOrderShipped:      "Your order is on its way.",
	KindOrderDelivered:    "Your order was delivered.",
	KindOrderCanceled:     "Your order was canceled.",
}

var funcs = map[string]any{
	"usd": pricing.FormatUSD,
}

var htmlTmpl = htmltemplate.Must(htmltemplate.New("order").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Subject}}</title></head>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h1>{{.Headline}}</h1>
  <p><strong>Order:</strong> {{.Order.Number}}<br>
     <strong>Date:</strong> {{.Order.CreatedAt.Format "January 2, 2006"}}<br>
     <strong>Customer:</strong> {{.Order.Customer.Name}}</p>
  <table cellpadding="6" style="border-collapse: collapse; width: 100%;">
    <tr><th align="left">Item</th><th align="right">Qty</th><th align="right">Unit</th><th align="right">Total</th></tr>
    {{range .Order.Lines}}<tr>
      <td>{{.Title}}{{if .Color}} / {{.Color}}{{end}}{{if .Option}} / {{.Option}}{{end}}<br><small>{{.TierLabel}}</small></td>
      <td align="right">{{.Quantity}}</td>
      <td align="right">{{usd .UnitPrice}}</td>
      <td align="right">{{usd .LineTotal}}</td>
    </tr>{{end}}
  </table>
  <p>Subtotal: {{usd .Order.Subtotal}}<br>
     {{if .Order.Savings.IsPositive}}Wholesale savings: {{usd .Order.Savings}}<br>{{end}}
     Tax: {{usd .Order.Tax}}<br>
     Shipping ({{.Order.ShippingRate.Service}}): {{usd .Order.Shipping}}<br>
     <strong>Total: {{usd .Order.Total}}</strong></p>
  {{if .Order.Tracking.TrackingNumber}}<p>Tracking number: {{.Order.Tracking.TrackingNumber}}{{if .Order.Tracking.TrackingURL}} (<a href="{{.Order.Tracking.TrackingURL}}">track</a>){{end}}</p>{{end}}
  <p>Shipping to: {{.Order.ShipTo.Name}}, {{.Order.ShipTo.Street1}}, {{.Order.ShipTo.City}} {{.Order.ShipTo.State}} {{.Order.ShipTo.Zip}}</p>
</body>
</html>`))

var textTmpl = texttemplate.Must(texttemplate.New("order").Funcs(funcs).Parse(`{{.Headline}}

Order: {{.Order.Number}}
Customer: {{.Order.Customer.Name}}
{{range .Order.Lines}}
- {{.Title}} x{{.Quantity}} @ {{usd .UnitPrice}} = {{usd .LineTotal}}{{end}}

Subtotal: {{usd .Order.Subtotal}}
Tax: {{usd .Order.Tax}}
Shipping: {{usd .Order.Shipping}}
Total: {{usd .Order.Total}}
{{if .Order.Tracking.TrackingNumber}}Tracking number: {{.Order.Tracking.TrackingNumber}}
{{end}}`))

type view struct {
	Subject  string
	Headline string
	Order    order.Order
}

// Render builds the subject, HTML and text bodies for an order email.
func Render(kind string, o order.Order) (subject, html, text string, err error) {
	v := view{Subject: subjectFor(kind, o), Headline: headlines[kind], Order: o}
	var hb, tb bytes.Buffer
	if err := htmlTmpl.Execute(&hb, v); err != nil {
		return "", "", "", fmt.Errorf("render html: %w", err)
	}
	if err := textTmpl.Execute(&tb, v); err != nil {
		return "", "", "", fmt.Errorf("render text: %w", err)
	}
	return v.Subject, hb.String(), strings.TrimSpace(tb.String()), nil
}

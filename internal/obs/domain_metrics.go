package obs

import (
	"context"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	domainOnce sync.Once

	// PricingResolutionsTotal counts unit price resolutions by winning tier kind.
	PricingResolutionsTotal *prometheus.CounterVec
	// TaxEstimatesTotal counts tax estimates by country and exemption outcome.
	TaxEstimatesTotal *prometheus.CounterVec
	// CheckoutOrdersTotal counts checkout attempts by outcome.
	CheckoutOrdersTotal *prometheus.CounterVec
	// PaymentIntentTotal counts payment intent creation attempts.
	PaymentIntentTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts inbound payment webhook processing outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// ShippingQuotesTotal counts shipping quotes by rate source.
	ShippingQuotesTotal *prometheus.CounterVec
	// ShippingWebhookTotal counts carrier tracking webhooks by outcome.
	ShippingWebhookTotal *prometheus.CounterVec
	// EmailTasksTotal counts transactional email deliveries by outcome.
	EmailTasksTotal *prometheus.CounterVec
	// RateLimitedTotal counts requests rejected by a rate limiter.
	RateLimitedTotal *prometheus.CounterVec

	orderValue metric.Float64Counter
)

// MustRegisterDomainMetrics initialises and registers storefront collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		counter := func(name, help string, labels ...string) *prometheus.CounterVec {
			return registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      name,
				Help:      help,
			}, labels))
		}
		PricingResolutionsTotal = counter("pricing_resolutions_total", "Count of unit price resolutions by pricing scope and tier kind.", "scope", "tier")
		TaxEstimatesTotal = counter("tax_estimates_total", "Count of tax estimates by country and exemption.", "country", "exempt")
		CheckoutOrdersTotal = counter("checkout_orders_total", "Count of checkout attempts by outcome.", "result")
		PaymentIntentTotal = counter("payment_intent_total", "Count of payment intent processing outcomes.", "provider", "result")
		PaymentWebhookTotal = counter("payment_webhook_total", "Count of processed payment webhooks by outcome.", "provider", "event", "result")
		ShippingQuotesTotal = counter("shipping_quotes_total", "Count of shipping quotes by rate source.", "source")
		ShippingWebhookTotal = counter("shipping_webhook_total", "Count of carrier tracking webhooks by outcome.", "carrier", "result")
		EmailTasksTotal = counter("email_tasks_total", "Count of transactional email deliveries by outcome.", "kind", "result")
		RateLimitedTotal = counter("rate_limited_total", "Count of requests rejected by rate limiting.", "limiter")

		if c, err := otel.Meter("grosir/checkout").Float64Counter("checkout.order.value",
			metric.WithDescription("Sum of placed order totals."),
			metric.WithUnit("USD"),
		); err == nil {
			orderValue = c
		}
	})
}

func inc(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

// RecordPricingResolution notes which scope priced a line and whether a
// wholesale tier beat retail. Tier labels are CMS text and never become
// label values.
func RecordPricingResolution(scope string, wholesale bool) {
	kind := "retail"
	if wholesale {
		kind = "wholesale"
	}
	inc(PricingResolutionsTotal, scope, kind)
}

// RecordTaxEstimate counts one tax estimate.
func RecordTaxEstimate(country string, exempt bool) {
	inc(TaxEstimatesTotal, country, strconv.FormatBool(exempt))
}

// RecordCheckout counts a checkout outcome.
func RecordCheckout(result string) {
	inc(CheckoutOrdersTotal, result)
}

// RecordOrderValue adds a placed order's total to the OpenTelemetry counter.
func RecordOrderValue(ctx context.Context, total float64, currency string) {
	if orderValue == nil {
		return
	}
	orderValue.Add(ctx, total, metric.WithAttributes(attribute.String("currency", currency)))
}

// RecordPaymentIntent counts a payment intent attempt.
func RecordPaymentIntent(provider, result string) {
	inc(PaymentIntentTotal, provider, result)
}

// RecordPaymentWebhook counts a processed payment webhook.
func RecordPaymentWebhook(provider, event, result string) {
	inc(PaymentWebhookTotal, provider, event, result)
}

// RecordShippingQuote counts a shipping quote by where its rates came from.
func RecordShippingQuote(source string) {
	inc(ShippingQuotesTotal, source)
}

// RecordShippingWebhook counts a processed tracking webhook.
func RecordShippingWebhook(carrier, result string) {
	inc(ShippingWebhookTotal, carrier, result)
}

// RecordEmailTask counts an email delivery attempt.
func RecordEmailTask(kind, result string) {
	inc(EmailTasksTotal, kind, result)
}

// RecordRateLimited counts a rejected request.
func RecordRateLimited(limiter string) {
	inc(RateLimitedTotal, limiter)
}

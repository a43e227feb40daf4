package events

// Topic constants for domain events emitted by the storefront.
const (
	TopicOrderCreated      = "order.created"
	TopicOrderPaid         = "order.paid"
	TopicOrderProcessing   = "order.processing"
	TopicOrderCanceled     = "order.canceled"
	TopicPaymentFailed     = "payment.failed"
	TopicShipmentShipped   = "shipment.shipped"
	TopicShipmentDelivered = "shipment.delivered"
	TopicShipmentLabeled   = "shipment.labeled"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderPaid,
		TopicOrderProcessing,
		TopicOrderCanceled,
		TopicPaymentFailed,
		TopicShipmentShipped,
		TopicShipmentDelivered,
		TopicShipmentLabeled,
	}
}

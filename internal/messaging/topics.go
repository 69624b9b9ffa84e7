package messaging

const (
	// TopicOrderCreated carries one domain.OrderCreatedEvent per committed order.
	TopicOrderCreated = "order.created"
	// TopicStockCompensation carries stock give-backs that failed inline.
	TopicStockCompensation = "stock.compensation"
)

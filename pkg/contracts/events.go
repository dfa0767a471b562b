package contracts

import "time"

// Routing keys for events on the pizzeria exchange.
const (
	RoutingOrderCreated       = "orders.created"
	RoutingOrderStatusChanged = "orders.status_changed"
	RoutingPaymentProcessed   = "payments.processed"
	RoutingPaymentRefunded    = "payments.refunded"
)

type OrderCreatedEvent struct {
	EventID    string    `json:"event_id"`
	OrderID    int64     `json:"order_id"`
	UserID     int64     `json:"user_id"`
	PizzaCount int       `json:"pizza_count"`
	TotalPrice string    `json:"total_price"`
	CreatedAt  time.Time `json:"created_at"`
}

type OrderStatusChangedEvent struct {
	EventID   string    `json:"event_id"`
	OrderID   int64     `json:"order_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

type PaymentProcessedEvent struct {
	EventID       string        `json:"event_id"`
	TransactionID string        `json:"transaction_id"`
	OrderID       int64         `json:"order_id"`
	Amount        string        `json:"amount"`
	MaskedCard    string        `json:"masked_card"`
	Status        PaymentStatus `json:"status"`
	Processed     time.Time     `json:"processed_at"`
}

type PaymentRefundedEvent struct {
	EventID       string        `json:"event_id"`
	TransactionID string        `json:"transaction_id"`
	OrderID       int64         `json:"order_id"`
	Amount        string        `json:"amount"`
	Status        PaymentStatus `json:"status"`
	Refunded      time.Time     `json:"refunded_at"`
}

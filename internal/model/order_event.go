package model

// OrderEvent is the payload consumed from the orders.completed Kafka topic.
// Produced by the storefront; one event per finished order.
type OrderEvent struct {
	Phone    string   `json:"phone"`
	Name     string   `json:"name"`
	Email    string   `json:"email,omitempty"`
	Location string   `json:"location,omitempty"`
	Total    float64  `json:"total"`
	Items    []string `json:"items,omitempty"`
}

package event

// Failure reasons carried by InventoryFailed and PaymentFailed.
const (
	ReasonNotEnoughStock = "not-enough-stock"
	ReasonPaymentFailed  = "payment-failed"
	ReasonCardDeclined   = "card-declined"
)

// Event is the closed family of saga payloads.
// Only the five payload types of this package implement it; consumers
// dispatch with a type switch instead of comparing kind strings.
type Event interface {
	// Kind returns the wire tag of the payload.
	Kind() Kind
	// Order returns the id of the order the payload belongs to.
	Order() string

	sealed()
}

// OrderCreated starts a saga. Amount is expressed in minor currency units.
// A zero Quantity means one unit; an empty ProductID leaves the choice to
// the inventory service.
type OrderCreated struct {
	OrderID   string   `json:"orderId"`
	Items     []string `json:"items"`
	Amount    int64    `json:"amount"`
	ProductID string   `json:"productId,omitempty"`
	Quantity  int      `json:"quantity,omitempty"`
}

// InventoryReserved is published after stock was reserved for an order.
type InventoryReserved struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// InventoryFailed is published when a reservation is rejected or undone.
type InventoryFailed struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// PaymentSucceeded is published after the payment was approved.
type PaymentSucceeded struct {
	OrderID string `json:"orderId"`
	Amount  int64  `json:"amount"`
}

// PaymentFailed is published after the payment was declined.
type PaymentFailed struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

func (OrderCreated) Kind() Kind      { return KindOrderCreated }
func (InventoryReserved) Kind() Kind { return KindInventoryReserved }
func (InventoryFailed) Kind() Kind   { return KindInventoryFailed }
func (PaymentSucceeded) Kind() Kind  { return KindPaymentSucceeded }
func (PaymentFailed) Kind() Kind     { return KindPaymentFailed }

func (e OrderCreated) Order() string      { return e.OrderID }
func (e InventoryReserved) Order() string { return e.OrderID }
func (e InventoryFailed) Order() string   { return e.OrderID }
func (e PaymentSucceeded) Order() string  { return e.OrderID }
func (e PaymentFailed) Order() string     { return e.OrderID }

func (OrderCreated) sealed()      {}
func (InventoryReserved) sealed() {}
func (InventoryFailed) sealed()   {}
func (PaymentSucceeded) sealed()  {}
func (PaymentFailed) sealed()     {}

// Verify payloads implement Event.
var (
	_ Event = OrderCreated{}
	_ Event = InventoryReserved{}
	_ Event = InventoryFailed{}
	_ Event = PaymentSucceeded{}
	_ Event = PaymentFailed{}
)

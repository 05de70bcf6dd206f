package enums

import "fmt"

// OrderStatus tracks the lifecycle of a storefront order.
type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "pending"
	OrderStatusProcessing       OrderStatus = "processing"
	OrderStatusAwaitingShipment OrderStatus = "awaiting_shipment"
	OrderStatusShipped          OrderStatus = "shipped"
	OrderStatusDelivered        OrderStatus = "delivered"
	OrderStatusCancelled        OrderStatus = "cancelled"
)

// orderStatusChain is the forward fulfilment path; cancelled sits outside it.
var orderStatusChain = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusAwaitingShipment,
	OrderStatusShipped,
	OrderStatusDelivered,
}

var validOrderStatuses = append(append([]OrderStatus{}, orderStatusChain...), OrderStatusCancelled)

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) rank() int {
	for i, candidate := range orderStatusChain {
		if candidate == s {
			return i
		}
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next is permitted: forward
// along the chain, or to cancelled from any non-terminal state.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !s.IsValid() || !next.IsValid() || s.IsTerminal() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	return next.rank() > s.rank()
}

// OrderStatuses returns all statuses in display order.
func OrderStatuses() []OrderStatus {
	return append([]OrderStatus{}, validOrderStatuses...)
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

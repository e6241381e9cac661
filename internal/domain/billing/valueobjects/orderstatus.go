package valueobjects

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusFailed   OrderStatus = "failed"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusRefunded OrderStatus = "refunded"
)

// orderTransitions lists the legal targets for each source status.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCanceled, OrderStatusFailed},
	OrderStatusPaid:    {OrderStatusRefunded},
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFailed, OrderStatusCanceled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to target is legal.
// Staying in the same status is not a transition.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal is true for statuses with no outgoing transition.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

func (s OrderStatus) IsPending() bool {
	return s == OrderStatusPending
}

func (s OrderStatus) String() string {
	return string(s)
}

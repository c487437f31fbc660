package domain

import "fmt"

// allowedTransitions is the full lifecycle graph. "completed" is the
// canonical terminal state; "delivered" sits between out_for_delivery and
// completed so the delivery workflow can hand off without skipping states.
// Cancellation is only reachable from pending.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusOutForDelivery, OrderStatusCompleted},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
	OrderStatusDelivered:      {OrderStatusCompleted},
	OrderStatusCompleted:      nil,
	OrderStatusCancelled:      nil,
}

type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order transition: %s -> %s", e.From, e.To)
}

// IsValidStatus reports whether s is one of the known order statuses.
func IsValidStatus(s OrderStatus) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsTerminal reports whether s has no outgoing transitions.
func IsTerminal(s OrderStatus) bool {
	next, ok := allowedTransitions[s]
	return ok && len(next) == 0
}

// CanTransition validates a requested status change against the lifecycle
// graph. It returns an *InvalidTransitionError describing the rejected edge,
// or nil when the edge is allowed.
func CanTransition(from, to OrderStatus) error {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

package orders

import (
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// delivered only moves forward into post-sale states; cancelled and refunded
// are terminal.
var orderTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:  {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:  {enums.OrderStatusReturned, enums.OrderStatusRefunded},
	enums.OrderStatusReturned:   {enums.OrderStatusRefunded},
	enums.OrderStatusCancelled:  nil,
	enums.OrderStatusRefunded:   nil,
}

// CanTransition reports whether from -> to is an edge of the status graph.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTransitions lists the statuses reachable from the given one.
func AllowedTransitions(from enums.OrderStatus) []enums.OrderStatus {
	next := orderTransitions[from]
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status enums.OrderStatus) bool {
	return len(orderTransitions[status]) == 0
}

// TransitionDetails is attached to INVALID_STATUS_TRANSITION errors.
type TransitionDetails struct {
	Current   enums.OrderStatus `json:"current"`
	Requested enums.OrderStatus `json:"requested"`
}

func invalidTransition(current, requested enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidStatusTransition, "order cannot move to the requested status").
		WithDetails(TransitionDetails{Current: current, Requested: requested})
}

package domain

// IsOpenShiftStatus reports whether a shift in this status still holds the user's drawer.
func IsOpenShiftStatus(status string) bool {
	switch status {
	case ShiftStatusActive, ShiftStatusPaused, ShiftStatusInterrupted:
		return true
	default:
		return false
	}
}

var shiftTransitions = map[string][]string{
	ShiftStatusActive:      {ShiftStatusPaused, ShiftStatusInterrupted, ShiftStatusEnded},
	ShiftStatusPaused:      {ShiftStatusActive, ShiftStatusEnded},
	ShiftStatusInterrupted: {ShiftStatusActive, ShiftStatusEnded},
}

func CanTransitionShift(from string, to string) bool {
	return contains(shiftTransitions[from], to)
}

// Pending -> PartiallyPaid happens only through payments, never through ChangeStatus.
var orderTransitions = map[string][]string{
	OrderStatusPending:       {OrderStatusPartiallyPaid, OrderStatusCompleted, OrderStatusCancelled, OrderStatusAbandoned},
	OrderStatusPartiallyPaid: {OrderStatusCompleted, OrderStatusAbandoned},
	OrderStatusCompleted:     {OrderStatusAbandoned},
}

func CanTransitionOrder(from string, to string) bool {
	return contains(orderTransitions[from], to)
}

func IsKnownOrderStatus(status string) bool {
	switch status {
	case OrderStatusPending, OrderStatusPartiallyPaid, OrderStatusCompleted, OrderStatusCancelled, OrderStatusAbandoned:
		return true
	default:
		return false
	}
}

// IsOrderEditable reports whether items, discount and payments may still change.
func IsOrderEditable(status string) bool {
	return status == OrderStatusPending || status == OrderStatusPartiallyPaid
}

// SettlePaymentStatus moves a pending order with a partial payment to PartiallyPaid.
// It never completes an order.
func SettlePaymentStatus(order *SalesOrder) {
	if order.Status == OrderStatusPending && order.AmountPaid.IsPositive() && order.AmountPaid.LessThan(order.Total) {
		order.Status = OrderStatusPartiallyPaid
	}
}

func IsKnownPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodCash, PaymentMethodBank, PaymentMethodOther:
		return true
	default:
		return false
	}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

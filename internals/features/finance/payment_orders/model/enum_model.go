package model

type OrderState string
type EnrollmentState string

const (
	OrderStatePending   OrderState = "pending"
	OrderStatePaid      OrderState = "paid"
	OrderStateCancelled OrderState = "cancelled"
	OrderStateExpired   OrderState = "expired"
)

const (
	EnrollmentStatePending   EnrollmentState = "pending"
	EnrollmentStateConfirmed EnrollmentState = "confirmed"
	EnrollmentStateCancelled EnrollmentState = "cancelled"
)

func (s OrderState) Valid() bool {
	switch s {
	case OrderStatePending, OrderStatePaid, OrderStateCancelled, OrderStateExpired:
		return true
	}
	return false
}

// IsTerminal: paid, cancelled and expired orders never change again.
func (s OrderState) IsTerminal() bool {
	return s == OrderStatePaid || s == OrderStateCancelled || s == OrderStateExpired
}

// MirrorState is the enrollment state that follows an order state.
func (s OrderState) MirrorState() EnrollmentState {
	switch s {
	case OrderStatePaid:
		return EnrollmentStateConfirmed
	case OrderStateCancelled, OrderStateExpired:
		return EnrollmentStateCancelled
	default:
		return EnrollmentStatePending
	}
}

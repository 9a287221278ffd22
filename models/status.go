package models

import "strings"

type OrderStatus string

const (
	StatusPendingPayment  OrderStatus = "Pending Payment"
	StatusPaymentReceived OrderStatus = "Payment Received"
	StatusReadyForPickup  OrderStatus = "Ready for Pickup"
	StatusCompleted       OrderStatus = "Completed"
	StatusCancelled       OrderStatus = "Cancelled"
)

// Values written by earlier versions of the ordering site.
const (
	legacyPending   = "Pending"
	legacyConfirmed = "Confirmed"
)

var statuses = []OrderStatus{
	StatusPendingPayment,
	StatusPaymentReceived,
	StatusReadyForPickup,
	StatusCompleted,
	StatusCancelled,
}

var transitions = map[OrderStatus][]OrderStatus{
	StatusPendingPayment:  {StatusPaymentReceived, StatusCancelled},
	StatusPaymentReceived: {StatusReadyForPickup, StatusCancelled},
	StatusReadyForPickup:  {StatusCompleted, StatusCancelled},
}

func (s OrderStatus) String() string { return string(s) }

// Known reports whether s is one of the current status values.
func (s OrderStatus) Known() bool {
	for _, v := range statuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether the lifecycle allows moving from s to next. A stored
// status this version does not recognise may be moved anywhere so an admin can repair it.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if !s.Known() {
		return next.Known()
	}
	for _, v := range transitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

// Statuses lists every current status in lifecycle order.
func Statuses() []OrderStatus {
	out := make([]OrderStatus, len(statuses))
	copy(out, statuses)
	return out
}

// ParseStatus matches s case-insensitively against the current and legacy values.
func ParseStatus(s string) (OrderStatus, bool) {
	st := NormalizeStatus(s)
	return st, st.Known()
}

// NormalizeStatus maps a stored value onto the current names. Unknown values come back
// unchanged.
func NormalizeStatus(s string) OrderStatus {
	trimmed := strings.TrimSpace(s)
	switch {
	case strings.EqualFold(trimmed, legacyPending):
		return StatusPendingPayment
	case strings.EqualFold(trimmed, legacyConfirmed):
		return StatusPaymentReceived
	}
	for _, v := range statuses {
		if strings.EqualFold(trimmed, string(v)) {
			return v
		}
	}
	return OrderStatus(trimmed)
}

// StoredValues returns every value the store may hold for the given statuses, including
// the legacy spellings, for use in server-side filters.
func StoredValues(set []OrderStatus) []string {
	out := make([]string, 0, len(set)+2)
	for _, s := range set {
		out = append(out, string(s))
		switch s {
		case StatusPendingPayment:
			out = append(out, legacyPending)
		case StatusPaymentReceived:
			out = append(out, legacyConfirmed)
		}
	}
	return out
}

// DefaultCountableStatuses holds capacity from order creation onwards and releases it
// only on cancellation.
func DefaultCountableStatuses() []OrderStatus {
	return []OrderStatus{StatusPendingPayment, StatusPaymentReceived, StatusReadyForPickup, StatusCompleted}
}

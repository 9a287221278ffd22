package models

import "time"

// NotificationKind names the message sent to a customer.
type NotificationKind string

const (
	NotifyOrderConfirmation NotificationKind = "order_confirmation"
	NotifyPaymentReceived   NotificationKind = "payment_received"
	NotifyReadyForPickup    NotificationKind = "ready_for_pickup"
)

// NotificationFor returns the message sent on entering status, if any.
func NotificationFor(status OrderStatus) (NotificationKind, bool) {
	switch status {
	case StatusPaymentReceived:
		return NotifyPaymentReceived, true
	case StatusReadyForPickup:
		return NotifyReadyForPickup, true
	}
	return "", false
}

// Notification is one queued customer message. The order is copied in so delivery does
// not depend on re-reading the store.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Order     Order            `json:"order"`
	Attempts  int              `json:"attempts"`
	LastError string           `json:"lastError,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

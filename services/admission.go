package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/birchwood-sourdough/orders/apperr"
	"github.com/birchwood-sourdough/orders/kvstore"
	"github.com/birchwood-sourdough/orders/metrics"
	"github.com/birchwood-sourdough/orders/models"
	"github.com/birchwood-sourdough/orders/recordstore"
)

const (
	maxNameLength     = 100
	maxLocationLength = 200
)

// OrderRequest is a customer's order as submitted.
type OrderRequest struct {
	CustomerName   string   `json:"customerName"`
	ContactInfo    string   `json:"contactInfo"`
	PickupLocation string   `json:"pickupLocation"`
	PickupDay      string   `json:"pickupDay"`
	Quantity       int      `json:"numLoaves"`
	TotalAmount    *float64 `json:"totalAmount,omitempty"`
}

// AdmissionResult accompanies an accepted order.
type AdmissionResult struct {
	Remaining int    `json:"remaining"`
	Warning   string `json:"warning,omitempty"`
}

// AdmissionPolicy holds the business rules an order is checked against.
type AdmissionPolicy struct {
	PerOrderMax int
	UnitPrice   float64
	AllowedDays []time.Weekday
	Location    *time.Location
	Now         func() time.Time
}

func DefaultAdmissionPolicy() AdmissionPolicy {
	return AdmissionPolicy{
		PerOrderMax: 4,
		UnitPrice:   12,
		AllowedDays: []time.Weekday{time.Tuesday, time.Wednesday, time.Thursday},
		Location:    time.UTC,
		Now:         time.Now,
	}
}

func (p AdmissionPolicy) allows(day time.Weekday) bool {
	for _, d := range p.AllowedDays {
		if d == day {
			return true
		}
	}
	return false
}

// OrderingGate reports whether the shop currently accepts orders.
type OrderingGate interface {
	OrderingOpen(ctx context.Context) (bool, error)
}

// DayLocker serialises admissions for one pickup day.
type DayLocker interface {
	Lock(ctx context.Context, name string) (*kvstore.Lease, error)
}

// Notifier queues a customer message for asynchronous delivery. It reports false when the
// message could not be queued.
type Notifier interface {
	Enqueue(n models.Notification) bool
}

var errLeaseLost = errors.New("admission lock expired")

// AdmissionController accepts or rejects new orders against the day's remaining capacity
// and persists accepted ones.
type AdmissionController struct {
	store    recordstore.Store
	ledger   *CapacityLedger
	policy   AdmissionPolicy
	gate     OrderingGate
	locker   DayLocker
	notifier Notifier
	metrics  *metrics.Metrics
	logger   logrus.FieldLogger
	suffix   func() string
}

// NewAdmissionController wires the controller. gate and locker may be nil: without a gate
// ordering is always open, and without a locker two concurrent requests for the same day
// can both pass the capacity check.
func NewAdmissionController(store recordstore.Store, ledger *CapacityLedger, policy AdmissionPolicy, gate OrderingGate, locker DayLocker, notifier Notifier, m *metrics.Metrics, logger logrus.FieldLogger) *AdmissionController {
	if policy.PerOrderMax <= 0 {
		policy.PerOrderMax = 4
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	if policy.Now == nil {
		policy.Now = time.Now
	}
	return &AdmissionController{
		store:    store,
		ledger:   ledger,
		policy:   policy,
		gate:     gate,
		locker:   locker,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		suffix:   referenceSuffix,
	}
}

func referenceSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
}

// Admit validates req, checks the day's remaining capacity and creates the order in
// Pending Payment. Nothing is written when it returns an error.
func (a *AdmissionController) Admit(ctx context.Context, req OrderRequest) (models.Order, AdmissionResult, error) {
	order, err := a.validate(req)
	if err != nil {
		a.metrics.Admission("invalid")
		return models.Order{}, AdmissionResult{}, err
	}
	log := a.logger.WithFields(logrus.Fields{"day": order.PickupDay, "loaves": order.Quantity})

	if a.gate != nil {
		open, err := a.gate.OrderingOpen(ctx)
		if err != nil {
			log.WithError(err).Warn("Maintenance check failed, accepting orders")
		} else if !open {
			a.metrics.Admission("closed")
			return models.Order{}, AdmissionResult{}, apperr.OrderingClosed("Ordering is temporarily closed. Please try again later.")
		}
	}

	var lease *kvstore.Lease
	if a.locker != nil {
		lease, err = a.locker.Lock(ctx, "admission:"+order.PickupDay)
		if err != nil {
			a.metrics.Admission("error")
			return models.Order{}, AdmissionResult{}, apperr.Upstream("Unable to reserve capacity, please retry", err)
		}
		defer lease.Release()
	}

	remaining, err := a.ledger.RemainingFor(ctx, order.PickupDay)
	if err != nil {
		a.metrics.Admission("error")
		return models.Order{}, AdmissionResult{}, err
	}
	if order.Quantity > remaining {
		log.WithField("remaining", remaining).Info("Order rejected, not enough loaves left")
		a.metrics.Admission("capacity_exceeded")
		return models.Order{}, AdmissionResult{}, apperr.CapacityExceeded(order.PickupDay, remaining)
	}

	// The capacity check above is only valid while the day is still ours.
	if lease != nil {
		held, err := lease.Held(ctx)
		if err == nil && !held {
			err = errLeaseLost
		}
		if err != nil {
			log.WithError(err).Warn("Admission lock lost before write")
			a.metrics.Admission("error")
			return models.Order{}, AdmissionResult{}, apperr.Upstream("Unable to reserve capacity, please retry", err)
		}
	}

	order.CreatedAt = a.policy.Now().UTC()
	order.OrderReference = models.OrderReference(order.CustomerName, order.CreatedAt.In(a.policy.Location), a.suffix())

	record, err := a.store.Create(ctx, models.TableOrders, order.Fields())
	if err != nil {
		a.metrics.Admission("error")
		return models.Order{}, AdmissionResult{}, writeError(err, "order")
	}
	order.ID = record.ID

	log.WithFields(logrus.Fields{"order_id": order.ID, "reference": order.OrderReference}).Info("Order created")
	a.metrics.Admission("accepted")

	result := AdmissionResult{Remaining: remaining - order.Quantity}
	if !a.enqueue(order) {
		log.WithField("order_id", order.ID).Warn("Order confirmation could not be queued")
		result.Warning = "Your order was placed, but we could not send a confirmation message. Please keep your order reference."
	}
	return order, result, nil
}

func (a *AdmissionController) enqueue(order models.Order) bool {
	if a.notifier == nil {
		return false
	}
	return a.notifier.Enqueue(models.Notification{
		ID:        uuid.NewString(),
		Kind:      models.NotifyOrderConfirmation,
		Order:     order,
		CreatedAt: a.policy.Now().UTC(),
	})
}

// validate checks fields in order and stops at the first failure.
func (a *AdmissionController) validate(req OrderRequest) (models.Order, error) {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return models.Order{}, apperr.Validation("invalid_name", "Customer name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return models.Order{}, apperr.Validation("invalid_name", "Customer name is too long")
	}

	contact := strings.TrimSpace(req.ContactInfo)
	if models.KindOf(contact) == models.ContactEmail {
		if !models.IsEmail(contact) {
			return models.Order{}, apperr.Validation("invalid_email", "Please enter a valid email address")
		}
	} else if !models.IsPhone(contact) {
		return models.Order{}, apperr.Validation("invalid_phone", "Please enter a valid phone number or email address")
	}

	day, err := time.ParseInLocation(models.DayLayout, strings.TrimSpace(req.PickupDay), a.policy.Location)
	if err != nil {
		return models.Order{}, apperr.Validation("invalid_date", "Invalid pickup date format. Use YYYY-MM-DD")
	}
	now := a.policy.Now().In(a.policy.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.policy.Location)
	if day.Before(today) {
		return models.Order{}, apperr.Validation("past_date", "Pickup date cannot be in the past")
	}
	if !a.policy.allows(day.Weekday()) {
		return models.Order{}, apperr.Validation("weekday_not_allowed", "Pickup is not available on "+day.Weekday().String())
	}

	if req.Quantity < 1 || req.Quantity > a.policy.PerOrderMax {
		return models.Order{}, apperr.Validation("invalid_quantity", "Number of loaves must be between 1 and "+strconv.Itoa(a.policy.PerOrderMax))
	}

	location := strings.TrimSpace(req.PickupLocation)
	if utf8.RuneCountInString(location) > maxLocationLength {
		return models.Order{}, apperr.Validation("invalid_location", "Pickup location is too long")
	}

	total := float64(req.Quantity) * a.policy.UnitPrice
	if req.TotalAmount != nil {
		if *req.TotalAmount < 0 {
			return models.Order{}, apperr.Validation("invalid_amount", "Total amount cannot be negative")
		}
		total = *req.TotalAmount
	}

	return models.Order{
		CustomerName:   name,
		ContactInfo:    contact,
		PickupLocation: location,
		PickupDay:      day.Format(models.DayLayout),
		Quantity:       req.Quantity,
		Status:         models.StatusPendingPayment,
		TotalAmount:    total,
	}, nil
}

package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/birchwood-sourdough/orders/apperr"
	"github.com/birchwood-sourdough/orders/metrics"
	"github.com/birchwood-sourdough/orders/models"
	"github.com/birchwood-sourdough/orders/recordstore"
)

// EventOrderStatusChanged is broadcast to admin clients after a status write.
const EventOrderStatusChanged = "order_status_changed"

// EventPublisher pushes an event to connected admin clients.
type EventPublisher interface {
	Publish(event string, payload any)
}

// StatusTracker moves orders along the lifecycle and queues the customer messages tied to
// each transition.
type StatusTracker struct {
	store    recordstore.Store
	notifier Notifier
	events   EventPublisher
	metrics  *metrics.Metrics
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewStatusTracker(store recordstore.Store, notifier Notifier, events EventPublisher, m *metrics.Metrics, logger logrus.FieldLogger) *StatusTracker {
	return &StatusTracker{
		store:    store,
		notifier: notifier,
		events:   events,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// SetStatus moves order id to status. Setting the current status again is a no-op.
func (t *StatusTracker) SetStatus(ctx context.Context, id, status string) (models.Order, error) {
	next, ok := models.ParseStatus(status)
	if !ok {
		return models.Order{}, apperr.Validation("invalid_status", "Unknown status: "+status)
	}

	order, err := getOrder(ctx, t.store, id)
	if err != nil {
		return models.Order{}, err
	}
	if order.Status == next {
		return order, nil
	}
	if !order.Status.CanTransition(next) {
		return models.Order{}, apperr.Validation("invalid_transition",
			"Cannot change an order from "+order.Status.String()+" to "+next.String())
	}

	record, err := t.store.Update(ctx, models.TableOrders, id, recordstore.Fields{models.FieldStatus: next.String()})
	if err != nil {
		return models.Order{}, writeError(err, "order")
	}
	previous := order.Status
	order = models.OrderFromRecord(record)

	log := t.logger.WithFields(logrus.Fields{"order_id": id, "from": previous, "to": next})
	log.Info("Order status changed")
	t.metrics.StatusChange(next.String())

	if t.events != nil {
		t.events.Publish(EventOrderStatusChanged, map[string]any{
			"order":          order,
			"previousStatus": previous,
		})
	}

	if kind, ok := models.NotificationFor(next); ok {
		queued := t.notifier != nil && t.notifier.Enqueue(models.Notification{
			ID:        uuid.NewString(),
			Kind:      kind,
			Order:     order,
			CreatedAt: t.now().UTC(),
		})
		if !queued {
			log.WithField("notification", kind).Warn("Status notification could not be queued")
		}
	}
	return order, nil
}

// OrderRepository reads and deletes orders for the admin API.
type OrderRepository struct {
	store  recordstore.Store
	logger logrus.FieldLogger
}

// DefaultListLimit caps admin order listings.
const DefaultListLimit = 100

func NewOrderRepository(store recordstore.Store, logger logrus.FieldLogger) *OrderRepository {
	return &OrderRepository{store: store, logger: logger}
}

// List returns up to limit orders, newest first.
func (r *OrderRepository) List(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	records, err := r.store.Query(ctx, models.TableOrders, nil)
	if err != nil {
		return nil, apperr.Upstream("Unable to load orders", err)
	}

	orders := make([]models.Order, 0, len(records))
	for _, rec := range records {
		orders = append(orders, models.OrderFromRecord(rec))
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (models.Order, error) {
	return getOrder(ctx, r.store, id)
}

// Delete removes an order outright. It exists for cleaning up test data.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, models.TableOrders, id); err != nil {
		return writeError(err, "order")
	}
	r.logger.WithField("order_id", id).Warn("Order deleted")
	return nil
}

func getOrder(ctx context.Context, store recordstore.Store, id string) (models.Order, error) {
	record, err := store.Find(ctx, models.TableOrders, id)
	if errors.Is(err, recordstore.ErrNotFound) {
		return models.Order{}, apperr.NotFound("Order " + id + " not found")
	}
	if err != nil {
		return models.Order{}, apperr.Upstream("Unable to load order", err)
	}
	return models.OrderFromRecord(record), nil
}

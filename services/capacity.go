package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/birchwood-sourdough/orders/apperr"
	"github.com/birchwood-sourdough/orders/metrics"
	"github.com/birchwood-sourdough/orders/models"
	"github.com/birchwood-sourdough/orders/recordstore"
)

// DefaultMaxLoaves is the daily quota when no per-date override exists.
const DefaultMaxLoaves = 4

// CapacityLedger answers how many loaves are committed and remaining for a pickup day.
// Counts are always recomputed from the store; nothing is cached between calls.
type CapacityLedger struct {
	store      recordstore.Store
	defaultMax int
	countable  []models.OrderStatus
	metrics    *metrics.Metrics
	logger     logrus.FieldLogger
}

func NewCapacityLedger(store recordstore.Store, defaultMax int, countable []models.OrderStatus, m *metrics.Metrics, logger logrus.FieldLogger) *CapacityLedger {
	if defaultMax <= 0 {
		defaultMax = DefaultMaxLoaves
	}
	if len(countable) == 0 {
		countable = models.DefaultCountableStatuses()
	}
	return &CapacityLedger{
		store:      store,
		defaultMax: defaultMax,
		countable:  countable,
		metrics:    m,
		logger:     logger,
	}
}

// Countable returns the statuses that hold capacity.
func (l *CapacityLedger) Countable() []models.OrderStatus {
	out := make([]models.OrderStatus, len(l.countable))
	copy(out, l.countable)
	return out
}

// CommittedFor sums the loaves of orders on day whose status is in countable.
func (l *CapacityLedger) CommittedFor(ctx context.Context, day string, countable []models.OrderStatus) (int, error) {
	filter := recordstore.And(
		recordstore.Eq(models.FieldPickupDay, day),
		recordstore.In(models.FieldStatus, models.StoredValues(countable)...),
	)

	records, err := l.query(ctx, models.TableOrders, filter)
	if err != nil {
		return 0, apperr.Upstream("Unable to read orders for "+day, err)
	}

	total := 0
	for _, r := range records {
		total += r.Fields.Int(models.FieldNumLoaves)
	}
	return total, nil
}

// MaxFor returns the quota for day. An override of 0 closes the day; an override without
// a readable number, or a failed lookup, falls back to the default.
func (l *CapacityLedger) MaxFor(ctx context.Context, day string) int {
	record, ok, err := l.stockRecord(ctx, day)
	if err != nil {
		l.logger.WithError(err).WithField("day", day).Warn("Stock override lookup failed, using default quota")
		return l.defaultMax
	}
	if !ok {
		return l.defaultMax
	}
	if quota, ok := record.Fields.IntOK(models.FieldStockMax); ok && quota >= 0 {
		return quota
	}
	return l.defaultMax
}

// RemainingFor is MaxFor minus CommittedFor. It can be negative only after a concurrent
// over-admission.
func (l *CapacityLedger) RemainingFor(ctx context.Context, day string) (int, error) {
	snap, err := l.Snapshot(ctx, day)
	if err != nil {
		return 0, err
	}
	return snap.Remaining, nil
}

func (l *CapacityLedger) Snapshot(ctx context.Context, day string) (models.DailyCapacity, error) {
	quota := l.MaxFor(ctx, day)
	committed, err := l.CommittedFor(ctx, day, l.countable)
	if err != nil {
		return models.DailyCapacity{}, err
	}
	return models.DailyCapacity{
		Date:      day,
		Max:       quota,
		Committed: committed,
		Remaining: quota - committed,
	}, nil
}

// SetMax stores a per-date quota override, updating the existing one if present.
func (l *CapacityLedger) SetMax(ctx context.Context, day string, quota int) (models.DailyCapacity, error) {
	if quota < 0 {
		return models.DailyCapacity{}, apperr.Validation("invalid_quantity", "Max loaves must be zero or more")
	}

	record, ok, err := l.stockRecord(ctx, day)
	if err != nil {
		return models.DailyCapacity{}, apperr.Upstream("Unable to read stock", err)
	}

	fields := recordstore.Fields{models.FieldStockDate: day, models.FieldStockMax: quota}
	if ok {
		_, err = l.store.Update(ctx, models.TableStock, record.ID, fields)
	} else {
		_, err = l.store.Create(ctx, models.TableStock, fields)
	}
	if err != nil {
		return models.DailyCapacity{}, apperr.Upstream("Unable to save stock", err)
	}

	l.logger.WithFields(logrus.Fields{"day": day, "max": quota}).Info("Stock override saved")
	return l.Snapshot(ctx, day)
}

func (l *CapacityLedger) stockRecord(ctx context.Context, day string) (recordstore.Record, bool, error) {
	records, err := l.query(ctx, models.TableStock, recordstore.Eq(models.FieldStockDate, day))
	if err != nil {
		return recordstore.Record{}, false, err
	}
	if len(records) == 0 {
		return recordstore.Record{}, false, nil
	}
	return records[0], true, nil
}

func (l *CapacityLedger) query(ctx context.Context, table string, filter recordstore.Filter) ([]recordstore.Record, error) {
	return queryWithFallback(ctx, l.store, table, filter, l.metrics, l.logger)
}

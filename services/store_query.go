package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/birchwood-sourdough/orders/apperr"
	"github.com/birchwood-sourdough/orders/metrics"
	"github.com/birchwood-sourdough/orders/recordstore"
)

// queryWithFallback runs filter server side and falls back to a full scan evaluated
// locally when the filtered query fails or comes back empty. Server results are re-checked
// with the same predicate so both paths select the same rows.
func queryWithFallback(ctx context.Context, store recordstore.Store, table string, filter recordstore.Filter, m *metrics.Metrics, logger logrus.FieldLogger) ([]recordstore.Record, error) {
	records, err := store.Query(ctx, table, filter)
	if err == nil && len(records) > 0 {
		return recordstore.Apply(records, filter), nil
	}

	reason := "empty"
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		reason = "error"
		logger.WithError(err).WithField("table", table).Warn("Filtered query failed, scanning table")
	}
	m.FullScan(table, reason)

	all, scanErr := store.Query(ctx, table, nil)
	if scanErr != nil {
		return nil, fmt.Errorf("scan %s: %w", table, scanErr)
	}
	return recordstore.Apply(all, filter), nil
}

// writeError turns a failed store write into the error reported to clients.
func writeError(err error, what string) error {
	if errors.Is(err, recordstore.ErrNotFound) {
		return apperr.NotFound("No such " + what)
	}
	return apperr.Upstream("Unable to save "+what, err)
}

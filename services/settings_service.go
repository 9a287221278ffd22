package services

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/birchwood-sourdough/orders/apperr"
	"github.com/birchwood-sourdough/orders/metrics"
	"github.com/birchwood-sourdough/orders/models"
	"github.com/birchwood-sourdough/orders/recordstore"
)

// SettingsService reads and toggles shop-wide switches kept in the Settings table.
type SettingsService struct {
	store   recordstore.Store
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
}

func NewSettingsService(store recordstore.Store, m *metrics.Metrics, logger logrus.FieldLogger) *SettingsService {
	return &SettingsService{store: store, metrics: m, logger: logger}
}

// MaintenanceMode reports whether ordering is switched off. No setting means off.
func (s *SettingsService) MaintenanceMode(ctx context.Context) (bool, error) {
	record, ok, err := s.setting(ctx, models.SettingMaintenanceMode)
	if err != nil {
		return false, apperr.Upstream("Unable to read settings", err)
	}
	if !ok {
		return false, nil
	}
	on, _ := strconv.ParseBool(record.Fields.String(models.FieldSettingValue))
	return on, nil
}

// OrderingOpen lets the admission controller use maintenance mode as its gate.
func (s *SettingsService) OrderingOpen(ctx context.Context) (bool, error) {
	on, err := s.MaintenanceMode(ctx)
	return !on, err
}

// ToggleMaintenance flips maintenance mode and returns the new value.
func (s *SettingsService) ToggleMaintenance(ctx context.Context) (bool, error) {
	record, ok, err := s.setting(ctx, models.SettingMaintenanceMode)
	if err != nil {
		return false, apperr.Upstream("Unable to read settings", err)
	}

	current := false
	if ok {
		current, _ = strconv.ParseBool(record.Fields.String(models.FieldSettingValue))
	}
	next := !current
	value := strconv.FormatBool(next)

	if ok {
		_, err = s.store.Update(ctx, models.TableSettings, record.ID, recordstore.Fields{models.FieldSettingValue: value})
	} else {
		_, err = s.store.Create(ctx, models.TableSettings, recordstore.Fields{
			models.FieldSettingKey:   models.SettingMaintenanceMode,
			models.FieldSettingValue: value,
		})
	}
	if err != nil {
		return false, writeError(err, "settings")
	}

	s.logger.WithField("maintenance", next).Info("Maintenance mode changed")
	return next, nil
}

func (s *SettingsService) setting(ctx context.Context, key string) (recordstore.Record, bool, error) {
	records, err := queryWithFallback(ctx, s.store, models.TableSettings, recordstore.Eq(models.FieldSettingKey, key), s.metrics, s.logger)
	if err != nil {
		return recordstore.Record{}, false, err
	}
	if len(records) == 0 {
		return recordstore.Record{}, false, nil
	}
	return records[0], true, nil
}

// Package gormstore keeps records in a single SQL table through gorm. It backs local and
// self-hosted deployments (sqlite or mysql) that do not use the hosted record store.
//
// Field maps are stored as JSON text, so filters are evaluated in-process after the
// collection has been read; there is no partial server-side match to fall back from.
package gormstore

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/birchwood-sourdough/orders/recordstore"
)

// StoredRecord is the row layout of the records table.
type StoredRecord struct {
	ID         string    `gorm:"primaryKey;size:32"`
	Collection string    `gorm:"size:64;index;not null"`
	Data       string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null;index"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (StoredRecord) TableName() string { return "records" }

type Store struct {
	db *gorm.DB
}

// New migrates the records table and returns a Store.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&StoredRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate records table")
	}
	return &Store{db: db}, nil
}

func (s *Store) Query(ctx context.Context, table string, filter recordstore.Filter) ([]recordstore.Record, error) {
	var rows []StoredRecord
	if err := s.db.WithContext(ctx).
		Where("collection = ?", table).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, unavailable(err, "query %s", table)
	}

	out := make([]recordstore.Record, 0, len(rows))
	for _, row := range rows {
		r, err := decode(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedTime.Before(out[j].CreatedTime) })
	return recordstore.Apply(out, filter), nil
}

func (s *Store) Find(ctx context.Context, table, id string) (recordstore.Record, error) {
	row, err := s.first(s.db.WithContext(ctx), table, id)
	if err != nil {
		return recordstore.Record{}, err
	}
	return decode(row)
}

func (s *Store) Create(ctx context.Context, table string, fields recordstore.Fields) (recordstore.Record, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return recordstore.Record{}, errors.Wrap(err, "encode record fields")
	}
	row := StoredRecord{
		ID:         "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Collection: table,
		Data:       string(data),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return recordstore.Record{}, unavailable(err, "create in %s", table)
	}
	return decode(row)
}

// Update merges fields into the stored record inside a transaction.
func (s *Store) Update(ctx context.Context, table, id string, fields recordstore.Fields) (recordstore.Record, error) {
	var out recordstore.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.first(tx, table, id)
		if err != nil {
			return err
		}
		current, err := decode(row)
		if err != nil {
			return err
		}
		for k, v := range fields {
			current.Fields[k] = v
		}
		data, err := json.Marshal(current.Fields)
		if err != nil {
			return errors.Wrap(err, "encode record fields")
		}
		row.Data = string(data)
		if err := tx.Save(&row).Error; err != nil {
			return unavailable(err, "update %s/%s", table, id)
		}
		out, err = decode(row)
		return err
	})
	return out, err
}

func (s *Store) Delete(ctx context.Context, table, id string) error {
	res := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", table, id).
		Delete(&StoredRecord{})
	if res.Error != nil {
		return unavailable(res.Error, "delete %s/%s", table, id)
	}
	if res.RowsAffected == 0 {
		return recordstore.ErrNotFound
	}
	return nil
}

func (s *Store) first(db *gorm.DB, table, id string) (StoredRecord, error) {
	var row StoredRecord
	err := db.Where("collection = ? AND id = ?", table, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, recordstore.ErrNotFound
	}
	if err != nil {
		return row, unavailable(err, "find %s/%s", table, id)
	}
	return row, nil
}

func decode(row StoredRecord) (recordstore.Record, error) {
	fields := recordstore.Fields{}
	dec := json.NewDecoder(bytes.NewReader([]byte(row.Data)))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return recordstore.Record{}, errors.Wrapf(err, "decode record %s", row.ID)
	}
	return recordstore.Record{ID: row.ID, CreatedTime: row.CreatedAt.UTC(), Fields: fields}, nil
}

func unavailable(err error, format string, args ...any) error {
	return errors.Wrapf(recordstore.ErrUnavailable, format+": %v", append(args, err)...)
}

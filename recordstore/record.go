// Package recordstore describes the remote, schemaless table store the bakery keeps its
// orders in. Records are loose field maps; callers map them to typed values themselves.
package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Find, Update and Delete for an unknown record id.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable marks failures to reach or authenticate against the store.
	ErrUnavailable = errors.New("record store unavailable")
)

// Fields is the weakly typed field map of a record, keyed by the store's field names.
type Fields map[string]any

// Record is a single row of a table.
type Record struct {
	ID          string    `json:"id"`
	CreatedTime time.Time `json:"createdTime"`
	Fields      Fields    `json:"fields"`
}

// Store is the contract every backend implements. A nil filter means a full table scan.
// Filtered queries are best effort: a backend may return fewer rows than actually match,
// so callers that depend on completeness must be able to fall back to a scan.
type Store interface {
	Query(ctx context.Context, table string, filter Filter) ([]Record, error)
	Find(ctx context.Context, table, id string) (Record, error)
	Create(ctx context.Context, table string, fields Fields) (Record, error)
	Update(ctx context.Context, table, id string, fields Fields) (Record, error)
	Delete(ctx context.Context, table, id string) error
}

// String returns the field rendered as text, or "" when absent.
func (f Fields) String(key string) string {
	return stringify(f[key])
}

// Int returns the field as an integer. Stores hand back numbers as float64, json.Number
// or text depending on the backend, so all three are accepted.
func (f Fields) Int(key string) int {
	n, _ := f.IntOK(key)
	return n
}

// IntOK is Int that also reports whether the field held a number at all, so a stored 0
// can be told apart from an absent or unreadable field.
func (f Fields) IntOK(key string) (int, bool) {
	switch v := f[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(math.Round(v)), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
		if x, err := v.Float64(); err == nil {
			return int(math.Round(x)), true
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Float returns the field as a float64, or 0.
func (f Fields) Float(key string) float64 {
	switch v := f[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		x, _ := v.Float64()
		return x
	case string:
		x, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return x
	}
	return 0
}

// Time parses an RFC3339 or YYYY-MM-DD field.
func (f Fields) Time(key string) time.Time {
	s := f.String(key)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		if rv := reflect.ValueOf(x); rv.Kind() == reflect.String {
			return rv.String()
		}
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

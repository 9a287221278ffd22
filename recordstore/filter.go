package recordstore

import (
	"fmt"
	"strings"
)

// Filter is a typed predicate over record fields. Match evaluates it locally; Formula
// renders it in the remote store's formula language for server-side filtering. Both must
// select exactly the same records.
type Filter interface {
	Match(Fields) bool
	Formula() string
}

type eqFilter struct {
	field string
	value any
}

// Eq matches records whose field equals value. Comparison is on the canonical text form,
// so 3, 3.0 and "3" are equal.
func Eq(field string, value any) Filter {
	return eqFilter{field: field, value: value}
}

func (f eqFilter) Match(fields Fields) bool {
	return fields.String(f.field) == stringify(f.value)
}

func (f eqFilter) Formula() string {
	return fmt.Sprintf("{%s} = %s", f.field, literal(f.value))
}

type inFilter struct {
	field  string
	values []any
}

// In matches records whose field equals any of values. An empty list matches nothing.
func In[T any](field string, values ...T) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return inFilter{field: field, values: vs}
}

func (f inFilter) Match(fields Fields) bool {
	got := fields.String(f.field)
	for _, v := range f.values {
		if got == stringify(v) {
			return true
		}
	}
	return false
}

func (f inFilter) Formula() string {
	switch len(f.values) {
	case 0:
		return "FALSE()"
	case 1:
		return eqFilter{field: f.field, value: f.values[0]}.Formula()
	}
	parts := make([]string, len(f.values))
	for i, v := range f.values {
		parts[i] = eqFilter{field: f.field, value: v}.Formula()
	}
	return "OR(" + strings.Join(parts, ", ") + ")"
}

type andFilter []Filter

// And matches records satisfying every filter. An empty And matches everything.
func And(filters ...Filter) Filter {
	return andFilter(filters)
}

func (f andFilter) Match(fields Fields) bool {
	for _, sub := range f {
		if !sub.Match(fields) {
			return false
		}
	}
	return true
}

func (f andFilter) Formula() string {
	switch len(f) {
	case 0:
		return "TRUE()"
	case 1:
		return f[0].Formula()
	}
	parts := make([]string, len(f))
	for i, sub := range f {
		parts[i] = sub.Formula()
	}
	return "AND(" + strings.Join(parts, ", ") + ")"
}

// Apply returns the records matching filter. A nil filter keeps everything.
func Apply(records []Record, filter Filter) []Record {
	if filter == nil {
		return records
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if filter.Match(r.Fields) {
			out = append(out, r)
		}
	}
	return out
}

func literal(v any) string {
	switch x := v.(type) {
	case int, int64, float64, float32:
		return stringify(x)
	case bool:
		if x {
			return "TRUE()"
		}
		return "FALSE()"
	}
	s := stringify(v)
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

package recordstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

type shade string

func TestFilterFormula(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{"eq string", Eq("Pickup Day", "2025-08-12"), "{Pickup Day} = '2025-08-12'"},
		{"eq number", Eq("Number of Loaves", 3), "{Number of Loaves} = 3"},
		{"eq escapes quotes", Eq("Customer Name", "O'Brien"), `{Customer Name} = 'O\'Brien'`},
		{"in single", In("Status", "Pending"), "{Status} = 'Pending'"},
		{"in many", In("Status", "A", "B"), "OR({Status} = 'A', {Status} = 'B')"},
		{"in empty", In[string]("Status"), "FALSE()"},
		{"named string type", In("Status", shade("Dark")), "{Status} = 'Dark'"},
		{
			"and",
			And(Eq("Pickup Day", "2025-08-12"), In("Status", "A", "B")),
			"AND({Pickup Day} = '2025-08-12', OR({Status} = 'A', {Status} = 'B'))",
		},
		{"and empty", And(), "TRUE()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Formula())
		})
	}
}

func TestFilterMatchIsTypeTolerant(t *testing.T) {
	fields := Fields{
		"Pickup Day":       "2025-08-12",
		"Number of Loaves": float64(3),
		"Status":           "Pending Payment",
	}

	assert.True(t, Eq("Number of Loaves", 3).Match(fields))
	assert.True(t, Eq("Number of Loaves", "3").Match(fields))
	assert.True(t, And(Eq("Pickup Day", "2025-08-12"), In("Status", "Cancelled", "Pending Payment")).Match(fields))
	assert.False(t, In("Status", "Cancelled").Match(fields))
	assert.False(t, In[string]("Status").Match(fields))
	assert.True(t, And().Match(fields))
}

func TestApply(t *testing.T) {
	records := []Record{
		{ID: "a", Fields: Fields{"Status": "Cancelled"}},
		{ID: "b", Fields: Fields{"Status": "Completed"}},
	}

	assert.Len(t, Apply(records, nil), 2)
	got := Apply(records, Eq("Status", "Completed"))
	if assert.Len(t, got, 1) {
		assert.Equal(t, "b", got[0].ID)
	}
}

func TestFieldsConversions(t *testing.T) {
	fields := Fields{
		"float":  float64(2.6),
		"number": json.Number("4"),
		"text":   " 7 ",
		"price":  "12.50",
		"date":   "2025-08-12",
		"stamp":  "2025-08-10T09:30:00Z",
	}

	assert.Equal(t, 3, fields.Int("float"))
	assert.Equal(t, 4, fields.Int("number"))
	assert.Equal(t, 7, fields.Int("text"))
	assert.Equal(t, 0, fields.Int("missing"))
	_, ok := fields.IntOK("missing")
	assert.False(t, ok)
	_, ok = fields.IntOK("date")
	assert.False(t, ok)
	fields["zero"] = float64(0)
	n, ok := fields.IntOK("zero")
	assert.True(t, ok)
	assert.Zero(t, n)
	assert.InDelta(t, 12.5, fields.Float("price"), 0.0001)
	assert.Equal(t, 2025, fields.Time("date").Year())
	assert.Equal(t, 9, fields.Time("stamp").Hour())
	assert.True(t, fields.Time("missing").IsZero())
	assert.Equal(t, "", fields.String("missing"))
}

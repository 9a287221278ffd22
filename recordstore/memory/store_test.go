package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birchwood-sourdough/orders/recordstore"
)

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	created, err := s.Create(ctx, "Orders", recordstore.Fields{"Status": "Pending Payment", "Number of Loaves": 2})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	found, err := s.Find(ctx, "Orders", created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.Fields.Int("Number of Loaves"))

	updated, err := s.Update(ctx, "Orders", created.ID, recordstore.Fields{"Status": "Cancelled"})
	require.NoError(t, err)
	assert.Equal(t, "Cancelled", updated.Fields.String("Status"))
	assert.Equal(t, 2, updated.Fields.Int("Number of Loaves"))

	require.NoError(t, s.Delete(ctx, "Orders", created.ID))
	_, err = s.Find(ctx, "Orders", created.ID)
	assert.ErrorIs(t, err, recordstore.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "Orders", created.ID), recordstore.ErrNotFound)
	_, err = s.Update(ctx, "Orders", created.ID, recordstore.Fields{})
	assert.ErrorIs(t, err, recordstore.ErrNotFound)
}

func TestQueryFiltersAndOrdersByCreation(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for _, day := range []string{"2025-08-12", "2025-08-13", "2025-08-12"} {
		_, err := s.Create(ctx, "Orders", recordstore.Fields{"Pickup Day": day})
		require.NoError(t, err)
	}

	all, err := s.Query(ctx, "Orders", nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedTime.Before(all[2].CreatedTime))

	some, err := s.Query(ctx, "Orders", recordstore.Eq("Pickup Day", "2025-08-12"))
	require.NoError(t, err)
	assert.Len(t, some, 2)

	none, err := s.Query(ctx, "Stock", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	created, err := s.Create(ctx, "Orders", recordstore.Fields{"Status": "Pending Payment"})
	require.NoError(t, err)

	created.Fields["Status"] = "Cancelled"
	found, err := s.Find(ctx, "Orders", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pending Payment", found.Fields.String("Status"))
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Query(ctx, "Orders", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

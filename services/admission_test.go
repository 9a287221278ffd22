package services

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birchwood-sourdough/orders/apperr"
	"github.com/birchwood-sourdough/orders/kvstore"
	"github.com/birchwood-sourdough/orders/models"
	"github.com/birchwood-sourdough/orders/recordstore"
	"github.com/birchwood-sourdough/orders/recordstore/memory"
)

func TestAdmitFillsDayThenRejects(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	a, res, err := f.admit.Admit(ctx, order("Alice", "alice@example.com", "2025-08-12", 3))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, models.StatusPendingPayment, a.Status)
	assert.NotEmpty(t, a.ID)

	remaining, err := f.ledger.RemainingFor(ctx, "2025-08-12")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	_, _, err = f.admit.Admit(ctx, order("Bob", "bob@example.com", "2025-08-12", 2))
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindCapacityExceeded, e.Kind)
	require.NotNil(t, e.Remaining)
	assert.Equal(t, 1, *e.Remaining)

	_, res, err = f.admit.Admit(ctx, order("Cara", "0412345678", "2025-08-12", 1))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Remaining)

	remaining, err = f.ledger.RemainingFor(ctx, "2025-08-12")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 2, f.store.creates)
}

func TestAdmitRejectsDisallowedWeekdayBeforeCapacityCheck(t *testing.T) {
	f := newFixture()

	_, _, err := f.admit.Admit(context.Background(), order("Alice", "alice@example.com", "2025-08-11", 1))
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Equal(t, "weekday_not_allowed", e.Code)
	assert.Zero(t, f.store.calls(), "no store call may happen for an invalid request")
}

func TestAdmitValidation(t *testing.T) {
	long := make([]rune, 101)
	for i := range long {
		long[i] = 'a'
	}
	negative := -1.0

	tests := []struct {
		name string
		req  OrderRequest
		code string
	}{
		{"empty name", order("  ", "a@example.com", "2025-08-12", 1), "invalid_name"},
		{"long name", order(string(long), "a@example.com", "2025-08-12", 1), "invalid_name"},
		{"bad email", order("Al", "al@nowhere", "2025-08-12", 1), "invalid_email"},
		{"bad phone", order("Al", "call me maybe", "2025-08-12", 1), "invalid_phone"},
		{"empty contact", order("Al", "", "2025-08-12", 1), "invalid_phone"},
		{"bad date", order("Al", "a@example.com", "12/08/2025", 1), "invalid_date"},
		{"impossible date", order("Al", "a@example.com", "2025-02-30", 1), "invalid_date"},
		{"past date", order("Al", "a@example.com", "2025-08-07", 1), "past_date"},
		{"sunday", order("Al", "a@example.com", "2025-08-17", 1), "weekday_not_allowed"},
		{"zero loaves", order("Al", "a@example.com", "2025-08-12", 0), "invalid_quantity"},
		{"too many loaves", order("Al", "a@example.com", "2025-08-12", 5), "invalid_quantity"},
		{"negative total", OrderRequest{CustomerName: "Al", ContactInfo: "a@example.com", PickupDay: "2025-08-12", Quantity: 1, TotalAmount: &negative}, "invalid_amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, _, err := f.admit.Admit(context.Background(), tt.req)
			require.Error(t, err)
			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.KindValidation, e.Kind)
			assert.Equal(t, tt.code, e.Code)
			assert.Zero(t, f.store.creates)
		})
	}
}

func TestAdmitBuildsOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o, _, err := f.admit.Admit(ctx, OrderRequest{
		CustomerName:   " Jane Citizen ",
		ContactInfo:    "jane@example.com",
		PickupLocation: "Birchwood Hall",
		PickupDay:      "2025-08-13",
		Quantity:       2,
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Citizen", o.CustomerName)
	assert.Equal(t, 24.0, o.TotalAmount)
	assert.Regexp(t, regexp.MustCompile(`^JANECI-0810-[0-9A-F]{4}$`), o.OrderReference)

	stored, err := f.store.Find(ctx, models.TableOrders, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o, models.OrderFromRecord(stored))

	require.Len(t, f.notifier.queued, 1)
	assert.Equal(t, models.NotifyOrderConfirmation, f.notifier.queued[0].Kind)
	assert.Equal(t, o.ID, f.notifier.queued[0].Order.ID)
}

func TestAdmitAcceptsSuppliedTotalAndToday(t *testing.T) {
	f := newFixture()
	// Tuesday 2025-08-12, ordering for the same day.
	f.admit.policy.Now = func() time.Time { return time.Date(2025, 8, 12, 7, 0, 0, 0, bakeryZone) }
	total := 20.0

	o, _, err := f.admit.Admit(context.Background(), OrderRequest{
		CustomerName: "Al", ContactInfo: "0412345678", PickupDay: "2025-08-12", Quantity: 2, TotalAmount: &total,
	})
	require.NoError(t, err)
	assert.Equal(t, 20.0, o.TotalAmount)
}

func TestAdmitNotificationQueueFailureIsOnlyAWarning(t *testing.T) {
	f := newFixture()
	f.notifier.reject = true

	o, res, err := f.admit.Admit(context.Background(), order("Al", "al@example.com", "2025-08-12", 1))
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.NotEmpty(t, res.Warning)
	assert.Equal(t, 1, f.store.creates)
}

func TestAdmitWhenMaintenanceIsOn(t *testing.T) {
	f := newFixture()
	f.admit.gate = staticGate{open: false}

	_, _, err := f.admit.Admit(context.Background(), order("Al", "al@example.com", "2025-08-12", 1))
	assert.True(t, apperr.Is(err, apperr.KindOrderingClosed))
	assert.Zero(t, f.store.creates)

	f.admit.gate = staticGate{err: errors.New("settings down")}
	_, _, err = f.admit.Admit(context.Background(), order("Al", "al@example.com", "2025-08-12", 1))
	assert.NoError(t, err, "a failed maintenance lookup keeps ordering open")
}

func TestAdmitWriteFailureIsUpstream(t *testing.T) {
	f := newFixture()
	f.store.createErr = recordstore.ErrUnavailable

	_, _, err := f.admit.Admit(context.Background(), order("Al", "al@example.com", "2025-08-12", 1))
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Empty(t, f.notifier.queued)
}

func TestAdmitCapacityReadFailureIsUpstream(t *testing.T) {
	f := newFixture()
	f.store.filterErr = recordstore.ErrUnavailable
	f.store.scanErr = recordstore.ErrUnavailable

	_, _, err := f.admit.Admit(context.Background(), order("Al", "al@example.com", "2025-08-12", 1))
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Zero(t, f.store.creates)
}

func TestAdmittedLoavesNeverExceedQuota(t *testing.T) {
	days := []string{"2025-08-12", "2025-08-13", "2025-08-14"}
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 20; round++ {
		f := newFixture()
		ctx := context.Background()
		for i := 0; i < 15; i++ {
			day := days[rng.Intn(len(days))]
			_, _, err := f.admit.Admit(ctx, order("Prop", "p@example.com", day, 1+rng.Intn(4)))
			if err != nil {
				require.True(t, apperr.Is(err, apperr.KindCapacityExceeded), err)
			}
		}
		for _, day := range days {
			committed, err := f.ledger.CommittedFor(ctx, day, f.ledger.Countable())
			require.NoError(t, err)
			remaining, err := f.ledger.RemainingFor(ctx, day)
			require.NoError(t, err)
			assert.LessOrEqual(t, committed, 4)
			assert.Equal(t, f.ledger.MaxFor(ctx, day)-committed, remaining)
		}
	}
}

func TestAdmitSerializesConcurrentOrdersWithLocker(t *testing.T) {
	store := memory.New()
	logger := testLogger()
	ledger := NewCapacityLedger(store, 4, nil, nil, logger)
	policy := DefaultAdmissionPolicy()
	policy.Location = bakeryZone
	policy.Now = fixedNow
	locker := kvstore.NewLocker(kvstore.NewMemory(), time.Minute)
	admit := NewAdmissionController(store, ledger, policy, nil, locker, &captureNotifier{}, nil, logger)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := admit.Admit(context.Background(), order("Rush", "r@example.com", "2025-08-12", 1))
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			assert.True(t, apperr.Is(err, apperr.KindCapacityExceeded), err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, accepted)
	committed, err := ledger.CommittedFor(context.Background(), "2025-08-12", ledger.Countable())
	require.NoError(t, err)
	assert.Equal(t, 4, committed)
}

// slowStore delays every query, standing in for a remote store on a bad day.
type slowStore struct {
	recordstore.Store
	delay time.Duration
}

func (s slowStore) Query(ctx context.Context, table string, filter recordstore.Filter) ([]recordstore.Record, error) {
	time.Sleep(s.delay)
	return s.Store.Query(ctx, table, filter)
}

func TestAdmitKeepsDayLockedThroughSlowStore(t *testing.T) {
	store := slowStore{Store: memory.New(), delay: 40 * time.Millisecond}
	logger := testLogger()
	ledger := NewCapacityLedger(store, 4, nil, nil, logger)
	policy := DefaultAdmissionPolicy()
	policy.Location = bakeryZone
	policy.Now = fixedNow
	// Each admission spends longer under the lock than the lock's TTL.
	locker := kvstore.NewLocker(kvstore.NewMemory(), 100*time.Millisecond)
	admit := NewAdmissionController(store, ledger, policy, nil, locker, &captureNotifier{}, nil, logger)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := admit.Admit(context.Background(), order("Rush", "r@example.com", "2025-08-12", 3))
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			assert.True(t, apperr.Is(err, apperr.KindCapacityExceeded), err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	committed, err := ledger.CommittedFor(context.Background(), "2025-08-12", ledger.Countable())
	require.NoError(t, err)
	assert.Equal(t, 3, committed)
}

// stealingStore hands the day's lock to someone else while orders are being counted.
type stealingStore struct {
	*flakyStore
	kv *kvstore.Memory
}

func (s stealingStore) Query(ctx context.Context, table string, filter recordstore.Filter) ([]recordstore.Record, error) {
	if table == models.TableOrders {
		_ = s.kv.Set(ctx, "lock:admission:2025-08-12", "someone-else", time.Minute)
	}
	return s.flakyStore.Query(ctx, table, filter)
}

func TestAdmitFailsWhenDayLockIsLost(t *testing.T) {
	kv := kvstore.NewMemory()
	store := stealingStore{flakyStore: newFlakyStore(), kv: kv}
	logger := testLogger()
	ledger := NewCapacityLedger(store, 4, nil, nil, logger)
	policy := DefaultAdmissionPolicy()
	policy.Location = bakeryZone
	policy.Now = fixedNow
	admit := NewAdmissionController(store, ledger, policy, nil, kvstore.NewLocker(kv, time.Minute), &captureNotifier{}, nil, logger)

	_, _, err := admit.Admit(context.Background(), order("Al", "al@example.com", "2025-08-12", 1))
	assert.True(t, apperr.Is(err, apperr.KindUpstream), err)
	assert.Zero(t, store.creates)
}

func TestAdmitRejectsClosedDay(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.ledger.SetMax(ctx, "2025-08-12", 0)
	require.NoError(t, err)

	_, _, err = f.admit.Admit(ctx, order("Al", "al@example.com", "2025-08-12", 1))
	require.True(t, apperr.Is(err, apperr.KindCapacityExceeded), err)
	e, _ := apperr.As(err)
	require.NotNil(t, e.Remaining)
	assert.Zero(t, *e.Remaining)
}

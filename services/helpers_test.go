package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/birchwood-sourdough/orders/models"
	"github.com/birchwood-sourdough/orders/recordstore"
	"github.com/birchwood-sourdough/orders/recordstore/memory"
)

var bakeryZone = time.FixedZone("AEST", 10*60*60)

// 2025-08-10 is a Sunday.
func fixedNow() time.Time {
	return time.Date(2025, 8, 10, 9, 30, 0, 0, bakeryZone)
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// flakyStore wraps the memory store and can make filtered queries, scans or writes fail.
// It records every call so tests can assert that nothing reached the store.
type flakyStore struct {
	recordstore.Store

	mu          sync.Mutex
	filterErr   error
	filterEmpty bool
	scanErr     error
	createErr   error
	updateErr   error
	queries     int
	scans       int
	finds       int
	creates     int
	updates     int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: memory.New()}
}

func (s *flakyStore) Query(ctx context.Context, table string, filter recordstore.Filter) ([]recordstore.Record, error) {
	s.mu.Lock()
	if filter == nil {
		s.scans++
		err := s.scanErr
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return s.Store.Query(ctx, table, nil)
	}
	s.queries++
	err, empty := s.filterErr, s.filterEmpty
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, nil
	}
	return s.Store.Query(ctx, table, filter)
}

func (s *flakyStore) Find(ctx context.Context, table, id string) (recordstore.Record, error) {
	s.mu.Lock()
	s.finds++
	s.mu.Unlock()
	return s.Store.Find(ctx, table, id)
}

func (s *flakyStore) Create(ctx context.Context, table string, fields recordstore.Fields) (recordstore.Record, error) {
	s.mu.Lock()
	s.creates++
	err := s.createErr
	s.mu.Unlock()
	if err != nil {
		return recordstore.Record{}, err
	}
	return s.Store.Create(ctx, table, fields)
}

func (s *flakyStore) Update(ctx context.Context, table, id string, fields recordstore.Fields) (recordstore.Record, error) {
	s.mu.Lock()
	s.updates++
	err := s.updateErr
	s.mu.Unlock()
	if err != nil {
		return recordstore.Record{}, err
	}
	return s.Store.Update(ctx, table, id, fields)
}

func (s *flakyStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries + s.scans + s.finds + s.creates + s.updates
}

// captureNotifier records queued notifications. With reject set it refuses them.
type captureNotifier struct {
	mu     sync.Mutex
	reject bool
	queued []models.Notification
}

func (n *captureNotifier) Enqueue(note models.Notification) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.reject {
		return false
	}
	n.queued = append(n.queued, note)
	return true
}

func (n *captureNotifier) kinds() []models.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.NotificationKind, 0, len(n.queued))
	for _, q := range n.queued {
		out = append(out, q.Kind)
	}
	return out
}

type captureEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *captureEvents) Publish(event string, _ any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

type staticGate struct {
	open bool
	err  error
}

func (g staticGate) OrderingOpen(context.Context) (bool, error) { return g.open, g.err }

// seedOrder writes an order straight into the store.
func seedOrder(store recordstore.Store, day string, loaves int, status string) recordstore.Record {
	rec, err := store.Create(context.Background(), models.TableOrders, recordstore.Fields{
		models.FieldCustomerName: "Seed",
		models.FieldContactInfo:  "seed@example.com",
		models.FieldPickupDay:    day,
		models.FieldNumLoaves:    loaves,
		models.FieldStatus:       status,
	})
	if err != nil {
		panic(err)
	}
	return rec
}

type fixture struct {
	store    *flakyStore
	ledger   *CapacityLedger
	admit    *AdmissionController
	tracker  *StatusTracker
	notifier *captureNotifier
	events   *captureEvents
}

func newFixture() *fixture {
	store := newFlakyStore()
	notifier := &captureNotifier{}
	events := &captureEvents{}
	logger := testLogger()

	ledger := NewCapacityLedger(store, 4, nil, nil, logger)
	policy := DefaultAdmissionPolicy()
	policy.Location = bakeryZone
	policy.Now = fixedNow

	return &fixture{
		store:    store,
		ledger:   ledger,
		admit:    NewAdmissionController(store, ledger, policy, nil, nil, notifier, nil, logger),
		tracker:  NewStatusTracker(store, notifier, events, nil, logger),
		notifier: notifier,
		events:   events,
	}
}

func order(name, contact, day string, loaves int) OrderRequest {
	return OrderRequest{CustomerName: name, ContactInfo: contact, PickupDay: day, Quantity: loaves}
}

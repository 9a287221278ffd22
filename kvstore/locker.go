package kvstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const storeCallTimeout = 2 * time.Second

// Locker builds named mutual-exclusion locks on a Store. Each lock carries a random token
// and a TTL so a crashed holder cannot block others forever. While held, a lock's TTL is
// renewed every third of its length.
type Locker struct {
	store Store
	ttl   time.Duration
	retry time.Duration
}

func NewLocker(store Store, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{store: store, ttl: ttl, retry: 20 * time.Millisecond}
}

// Lease is a held lock. Release it exactly once.
type Lease struct {
	store Store
	key   string
	token string
	ttl   time.Duration

	stop chan struct{}
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	lost bool
}

// Lock blocks until the lock is held or ctx ends.
func (l *Locker) Lock(ctx context.Context, name string) (*Lease, error) {
	key := "lock:" + name
	token := uuid.NewString()

	for {
		ok, err := l.store.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			return nil, errors.Wrapf(err, "acquire lock %s", name)
		}
		if ok {
			lease := &Lease{
				store: l.store,
				key:   key,
				token: token,
				ttl:   l.ttl,
				stop:  make(chan struct{}),
				done:  make(chan struct{}),
			}
			go lease.renew()
			return lease, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "acquire lock %s", name)
		case <-time.After(l.retry):
		}
	}
}

func (l *Lease) renew() {
	defer close(l.done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
			ok, err := l.store.CompareAndExpire(ctx, l.key, l.token, l.ttl)
			cancel()
			if err == nil && !ok {
				l.mu.Lock()
				l.lost = true
				l.mu.Unlock()
				return
			}
		}
	}
}

// Held reports whether the lock still belongs to this lease. It is false once the lock
// expired or was taken by someone else, even if it later becomes free.
func (l *Lease) Held(ctx context.Context) (bool, error) {
	l.mu.Lock()
	lost := l.lost
	l.mu.Unlock()
	if lost {
		return false, nil
	}

	v, ok, err := l.store.Get(ctx, l.key)
	if err != nil {
		return false, errors.Wrapf(err, "check lock %s", l.key)
	}
	if !ok || v != l.token {
		l.mu.Lock()
		l.lost = true
		l.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// Release stops renewal and frees the lock if it is still ours.
func (l *Lease) Release() {
	l.once.Do(func() {
		close(l.stop)
		<-l.done
		ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
		defer cancel()
		_, _ = l.store.CompareAndDelete(ctx, l.key, l.token)
	})
}

package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/birchwood-sourdough/orders/metrics"
	"github.com/birchwood-sourdough/orders/models"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html string) (Outcome, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, text string) (Outcome, error)
}

// DispatcherConfig sizes the worker pool and retry policy.
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	SendTimeout time.Duration
}

// NotificationDispatcher delivers queued customer messages on its own workers, outside
// the request that produced them. Failed deliveries wait in a retry queue until the next
// RetryFailed sweep, up to MaxAttempts.
type NotificationDispatcher struct {
	cfg      DispatcherConfig
	queue    chan models.Notification
	email    EmailSender
	sms      SMSSender
	messages *MessageRenderer
	metrics  *metrics.Metrics
	logger   logrus.FieldLogger

	mutex      sync.Mutex
	retryQueue []models.Notification
}

func NewNotificationDispatcher(cfg DispatcherConfig, email EmailSender, sms SMSSender, messages *MessageRenderer, m *metrics.Metrics, logger logrus.FieldLogger) *NotificationDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 20 * time.Second
	}
	if messages == nil {
		messages = NewMessageRenderer(MessageConfig{})
	}
	return &NotificationDispatcher{
		cfg:      cfg,
		queue:    make(chan models.Notification, cfg.QueueSize),
		email:    email,
		sms:      sms,
		messages: messages,
		metrics:  m,
		logger:   logger,
	}
}

// Enqueue hands n to the workers without blocking. It reports false when the queue is full.
func (d *NotificationDispatcher) Enqueue(n models.Notification) bool {
	select {
	case d.queue <- n:
		return true
	default:
		d.logger.WithFields(logrus.Fields{"order_id": n.Order.ID, "kind": n.Kind}).Warn("Notification queue full")
		return false
	}
}

// Run processes the queue until ctx is cancelled, then delivers whatever is still queued
// before returning. Each of those deliveries is bounded by SendTimeout.
func (d *NotificationDispatcher) Run(ctx context.Context) error {
	d.logger.WithField("workers", d.cfg.Workers).Info("Notification dispatcher started")
	// Sends are bounded by SendTimeout, not by ctx.
	sendCtx := context.WithoutCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					d.drain(sendCtx)
					return nil
				case n := <-d.queue:
					d.process(sendCtx, n)
				}
			}
		})
	}
	err := g.Wait()
	d.logger.Info("Notification dispatcher stopped")
	return err
}

func (d *NotificationDispatcher) drain(ctx context.Context) {
	for {
		select {
		case n := <-d.queue:
			d.process(ctx, n)
		default:
			return
		}
	}
}

// Deliver sends n once over the channel its contact info selects: email when it contains
// "@", SMS otherwise.
func (d *NotificationDispatcher) Deliver(ctx context.Context, n models.Notification) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	contact := n.Order.ContactInfo
	if models.KindOf(contact) == models.ContactEmail {
		if d.email == nil {
			return OutcomeSkipped, nil
		}
		msg, err := d.messages.Email(n)
		if err != nil {
			return OutcomeFailed, err
		}
		return d.email.SendEmail(ctx, contact, msg.Subject, msg.Body)
	}

	if d.sms == nil {
		return OutcomeSkipped, nil
	}
	msg, err := d.messages.SMS(n)
	if err != nil {
		return OutcomeFailed, err
	}
	return d.sms.SendSMS(ctx, models.FormatAUMobile(contact), msg.Body)
}

// RetryFailed moves every waiting notification back onto the queue and returns how many
// were requeued.
func (d *NotificationDispatcher) RetryFailed() int {
	d.mutex.Lock()
	pending := d.retryQueue
	d.retryQueue = nil
	d.mutex.Unlock()

	requeued := 0
	for i, n := range pending {
		if !d.Enqueue(n) {
			d.mutex.Lock()
			d.retryQueue = append(d.retryQueue, pending[i:]...)
			d.mutex.Unlock()
			break
		}
		requeued++
	}
	if requeued > 0 {
		d.logger.WithField("count", requeued).Info("Requeued failed notifications")
	}
	d.metrics.RetryPending(d.PendingRetries())
	return requeued
}

func (d *NotificationDispatcher) PendingRetries() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.retryQueue)
}

func (d *NotificationDispatcher) process(ctx context.Context, n models.Notification) {
	channel := models.KindOf(n.Order.ContactInfo).String()
	log := d.logger.WithFields(logrus.Fields{
		"order_id": n.Order.ID,
		"kind":     n.Kind,
		"channel":  channel,
	})

	n.Attempts++
	outcome, err := d.Deliver(ctx, n)
	if err != nil {
		outcome = OutcomeFailed
	}
	d.metrics.Notification(channel, string(outcome))

	switch outcome {
	case OutcomeSent:
		log.Info("Notification sent")
	case OutcomeSkipped:
		log.Info("Notification skipped")
	default:
		if err != nil {
			n.LastError = err.Error()
		}
		if n.Attempts >= d.cfg.MaxAttempts {
			log.WithError(err).WithField("attempts", n.Attempts).Error("Notification dropped after final attempt")
			return
		}
		log.WithError(err).WithField("attempts", n.Attempts).Warn("Notification failed, will retry")
		d.mutex.Lock()
		d.retryQueue = append(d.retryQueue, n)
		d.mutex.Unlock()
		d.metrics.RetryPending(d.PendingRetries())
	}
}

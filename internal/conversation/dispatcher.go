package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/swaasthya/saathi/internal/messaging"
	"github.com/swaasthya/saathi/internal/observability"
	"github.com/swaasthya/saathi/internal/policy"
)

var (
	ErrDispatcherClosed = errors.New("dispatcher closed")
	ErrMailboxFull      = errors.New("user mailbox full")
)

// Handler processes one inbound event.
type Handler interface {
	Handle(ctx context.Context, ev messaging.InboundEvent) error
}

type DispatcherConfig struct {
	EventTimeout time.Duration
	MailboxSize  int
	// IdleTimeout stops a user's worker after a quiet period.
	IdleTimeout time.Duration
}

// Dispatcher runs one worker per user so that events from the same sender
// are handled strictly in arrival order while different users proceed in
// parallel.
type Dispatcher struct {
	handler Handler
	deduper messaging.Deduper
	metrics *observability.Metrics
	cfg     DispatcherConfig

	baseCtx context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	mailboxes map[string]chan messaging.InboundEvent
	closed    bool
	wg        sync.WaitGroup
}

func NewDispatcher(handler Handler, deduper messaging.Deduper, metrics *observability.Metrics, cfg DispatcherConfig) *Dispatcher {
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 2 * time.Minute
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 16
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		handler:   handler,
		deduper:   deduper,
		metrics:   metrics,
		cfg:       cfg,
		baseCtx:   ctx,
		cancel:    cancel,
		mailboxes: make(map[string]chan messaging.InboundEvent),
	}
}

// Enqueue queues ev for its sender. It reports false for a redelivery that
// was already accepted once. An event that could not be queued is forgotten
// by the deduper so the gateway's retry gets through.
func (d *Dispatcher) Enqueue(ctx context.Context, ev messaging.InboundEvent) (bool, error) {
	recorded := false
	if d.deduper != nil && ev.ID != "" {
		first, err := d.deduper.FirstDelivery(ctx, ev.ID)
		switch {
		case err != nil:
			slog.Warn("dedupe check failed, accepting event", "event_id", ev.ID, "error", err)
		case !first:
			d.metrics.ObserveDuplicate()
			slog.Info("duplicate delivery dropped", "event_id", ev.ID, "user", policy.RedactAddress(ev.From))
			return false, nil
		default:
			recorded = true
		}
	}

	if err := d.push(ev); err != nil {
		if recorded {
			if ferr := d.deduper.Forget(context.WithoutCancel(ctx), ev.ID); ferr != nil {
				slog.Warn("dedupe rollback failed", "event_id", ev.ID, "error", ferr)
			}
		}
		return false, err
	}
	return true, nil
}

func (d *Dispatcher) push(ev messaging.InboundEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	box, ok := d.mailboxes[ev.From]
	if !ok {
		box = make(chan messaging.InboundEvent, d.cfg.MailboxSize)
		d.mailboxes[ev.From] = box
		d.wg.Add(1)
		go d.work(ev.From, box)
	}
	select {
	case box <- ev:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrMailboxFull, policy.RedactAddress(ev.From))
	}
}

// Pending is the number of users with a live worker.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.mailboxes)
}

func (d *Dispatcher) work(userID string, box chan messaging.InboundEvent) {
	defer d.wg.Done()
	idle := time.NewTimer(d.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case ev, ok := <-box:
			if !ok {
				return
			}
			d.process(ev)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.cfg.IdleTimeout)
		case <-idle.C:
			d.mu.Lock()
			if len(box) == 0 && !d.closed {
				delete(d.mailboxes, userID)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			idle.Reset(d.cfg.IdleTimeout)
		}
	}
}

func (d *Dispatcher) process(ev messaging.InboundEvent) {
	ctx, cancel := context.WithTimeout(d.baseCtx, d.cfg.EventTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.metrics.ObserveFailure("panic")
			slog.Error("event handler panic", "event_id", ev.ID, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	if err := d.handler.Handle(ctx, ev); err != nil {
		slog.Debug("event finished with error", "event_id", ev.ID, "error", err)
	}
}

// Shutdown stops accepting events and waits for queued ones to finish. When
// ctx expires first, in-flight handlers are cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, box := range d.mailboxes {
			close(box)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

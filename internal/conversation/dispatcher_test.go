package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/swaasthya/saathi/internal/messaging"
)

type recordingHandler struct {
	mu          sync.Mutex
	order       map[string][]string
	active      map[string]int
	overlap     bool
	delay       time.Duration
	panicOn     string
	sawDeadline bool
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{order: map[string][]string{}, active: map[string]int{}}
}

func (h *recordingHandler) Handle(ctx context.Context, ev messaging.InboundEvent) error {
	h.mu.Lock()
	h.active[ev.From]++
	if h.active[ev.From] > 1 {
		h.overlap = true
	}
	if _, ok := ctx.Deadline(); ok {
		h.sawDeadline = true
	}
	h.mu.Unlock()

	time.Sleep(h.delay)

	h.mu.Lock()
	h.active[ev.From]--
	h.order[ev.From] = append(h.order[ev.From], ev.ID)
	h.mu.Unlock()

	if ev.ID == h.panicOn {
		panic("boom")
	}
	return nil
}

func (h *recordingHandler) handled(user string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.order[user]...)
}

func TestDispatcherSerializesPerUser(t *testing.T) {
	h := newRecordingHandler()
	h.delay = 5 * time.Millisecond
	d := NewDispatcher(h, nil, nil, DispatcherConfig{MailboxSize: 32})

	users := []string{"whatsapp:+1", "whatsapp:+2", "ws:abc"}
	for i := 0; i < 5; i++ {
		for _, u := range users {
			ok, err := d.Enqueue(context.Background(), messaging.InboundEvent{ID: fmt.Sprintf("%s-%d", u, i), From: u})
			if err != nil || !ok {
				t.Fatalf("Enqueue() = %v, %v", ok, err)
			}
		}
	}
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if h.overlap {
		t.Fatal("events for one user overlapped")
	}
	if !h.sawDeadline {
		t.Fatal("handler context has no deadline")
	}
	for _, u := range users {
		got := h.handled(u)
		if len(got) != 5 {
			t.Fatalf("%s handled %d events, want 5", u, len(got))
		}
		for i, id := range got {
			if want := fmt.Sprintf("%s-%d", u, i); id != want {
				t.Fatalf("%s order[%d] = %s, want %s", u, i, id, want)
			}
		}
	}
}

func TestDispatcherDropsDuplicateDeliveries(t *testing.T) {
	h := newRecordingHandler()
	d := NewDispatcher(h, messaging.NewMemoryDeduper(time.Hour), nil, DispatcherConfig{})

	ev := messaging.InboundEvent{ID: "SM1", From: "whatsapp:+1"}
	if ok, err := d.Enqueue(context.Background(), ev); !ok || err != nil {
		t.Fatalf("first Enqueue() = %v, %v", ok, err)
	}
	if ok, err := d.Enqueue(context.Background(), ev); ok || err != nil {
		t.Fatalf("duplicate Enqueue() = %v, %v, want false, nil", ok, err)
	}
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := h.handled("whatsapp:+1"); len(got) != 1 {
		t.Fatalf("handled = %v, want one event", got)
	}
}

func TestDispatcherRecoversFromPanic(t *testing.T) {
	h := newRecordingHandler()
	h.panicOn = "first"
	d := NewDispatcher(h, nil, nil, DispatcherConfig{})

	for _, id := range []string{"first", "second"} {
		if _, err := d.Enqueue(context.Background(), messaging.InboundEvent{ID: id, From: "whatsapp:+1"}); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", id, err)
		}
	}
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := h.handled("whatsapp:+1"); len(got) != 2 {
		t.Fatalf("handled = %v, want both events", got)
	}
}

func TestDispatcherRejectsAfterShutdown(t *testing.T) {
	d := NewDispatcher(newRecordingHandler(), nil, nil, DispatcherConfig{})
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	_, err := d.Enqueue(context.Background(), messaging.InboundEvent{ID: "x", From: "whatsapp:+1"})
	if !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("Enqueue() error = %v, want ErrDispatcherClosed", err)
	}
}

func TestDispatcherMailboxFull(t *testing.T) {
	h := newRecordingHandler()
	h.delay = 50 * time.Millisecond
	d := NewDispatcher(h, nil, nil, DispatcherConfig{MailboxSize: 1})
	defer d.Shutdown(context.Background())

	var full bool
	for i := 0; i < 5; i++ {
		_, err := d.Enqueue(context.Background(), messaging.InboundEvent{ID: fmt.Sprint(i), From: "whatsapp:+1"})
		if errors.Is(err, ErrMailboxFull) {
			full = true
			break
		}
	}
	if !full {
		t.Fatal("Enqueue never reported a full mailbox")
	}
}

func TestDispatcherStopsIdleWorkers(t *testing.T) {
	d := NewDispatcher(newRecordingHandler(), nil, nil, DispatcherConfig{IdleTimeout: 10 * time.Millisecond})
	defer d.Shutdown(context.Background())

	if _, err := d.Enqueue(context.Background(), messaging.InboundEvent{ID: "1", From: "whatsapp:+1"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for d.Pending() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Pending() = %d after idle timeout, want 0", d.Pending())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type gatedHandler struct {
	started chan string
	release chan struct{}
	mu      sync.Mutex
	ids     []string
}

func (h *gatedHandler) Handle(_ context.Context, ev messaging.InboundEvent) error {
	h.started <- ev.ID
	<-h.release
	h.mu.Lock()
	h.ids = append(h.ids, ev.ID)
	h.mu.Unlock()
	return nil
}

func TestDispatcherAcceptsRedeliveryAfterFullMailbox(t *testing.T) {
	h := &gatedHandler{started: make(chan string, 8), release: make(chan struct{})}
	d := NewDispatcher(h, messaging.NewMemoryDeduper(time.Hour), nil, DispatcherConfig{MailboxSize: 1})
	ctx := context.Background()
	event := func(id string) messaging.InboundEvent {
		return messaging.InboundEvent{ID: id, From: "whatsapp:+1"}
	}

	if _, err := d.Enqueue(ctx, event("a")); err != nil {
		t.Fatalf("Enqueue(a) error = %v", err)
	}
	<-h.started
	if _, err := d.Enqueue(ctx, event("b")); err != nil {
		t.Fatalf("Enqueue(b) error = %v", err)
	}
	if _, err := d.Enqueue(ctx, event("c")); !errors.Is(err, ErrMailboxFull) {
		t.Fatalf("Enqueue(c) error = %v, want ErrMailboxFull", err)
	}

	close(h.release)
	<-h.started
	deadline := time.Now().Add(2 * time.Second)
	for {
		ok, err := d.Enqueue(ctx, event("c"))
		if err == nil {
			if !ok {
				t.Fatal("retried event was dropped as a duplicate")
			}
			break
		}
		if !errors.Is(err, ErrMailboxFull) || time.Now().After(deadline) {
			t.Fatalf("retry Enqueue(c) error = %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if got := strings.Join(h.ids, ","); got != "a,b,c" {
		t.Fatalf("handled = %s, want a,b,c", got)
	}
}

func TestDispatcherForgetsEventRejectedAfterShutdown(t *testing.T) {
	dedupe := messaging.NewMemoryDeduper(time.Hour)
	closed := NewDispatcher(newRecordingHandler(), dedupe, nil, DispatcherConfig{})
	if err := closed.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	ev := messaging.InboundEvent{ID: "SM9", From: "whatsapp:+1"}
	if _, err := closed.Enqueue(context.Background(), ev); !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("Enqueue() error = %v, want ErrDispatcherClosed", err)
	}

	h := newRecordingHandler()
	next := NewDispatcher(h, dedupe, nil, DispatcherConfig{})
	if ok, err := next.Enqueue(context.Background(), ev); !ok || err != nil {
		t.Fatalf("redelivery Enqueue() = %v, %v, want true, nil", ok, err)
	}
	if err := next.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := h.handled("whatsapp:+1"); len(got) != 1 {
		t.Fatalf("handled = %v, want the redelivered event", got)
	}
}

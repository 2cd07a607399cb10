package events

import (
	"context"
	"log"
	"sync"
)

// Notification is the payload handed to in-process subscribers. External
// collaborators (grading sync, conference-bridge floor control, search
// indexing) attach handlers for the event types they care about.
type Notification struct {
	Type      string
	MeetingID string
	MotionID  int64
	Status    string
	ActorID   string
}

// Handler consumes one notification. Before-hooks (BeforeMotionDeleted) run
// synchronously and their error aborts the mutation; all other hooks are
// fire-and-forget, failures are logged and never propagate.
type Handler func(ctx context.Context, n Notification) error

// Bus is a minimal in-process hook bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	Logger   *log.Logger
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe attaches a handler for the given event type.
func (b *Bus) Subscribe(evtType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[evtType] = append(b.handlers[evtType], h)
}

// Publish delivers n to every subscriber of its type. Handler errors are
// logged; they do not stop later handlers and do not reach the caller.
func (b *Bus) Publish(ctx context.Context, n Notification) {
	if b == nil {
		return
	}
	for _, h := range b.snapshot(n.Type) {
		if err := h(ctx, n); err != nil {
			b.logger().Printf("events: %s handler failed: %v", n.Type, err)
		}
	}
}

// PublishBlocking delivers n and returns the first handler error. Used for
// before_* hooks that must complete before the store mutation.
func (b *Bus) PublishBlocking(ctx context.Context, n Notification) error {
	if b == nil {
		return nil
	}
	for _, h := range b.snapshot(n.Type) {
		if err := h(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) snapshot(evtType string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handlers[evtType]
}

func (b *Bus) logger() *log.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return log.Default()
}

package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	application "pqrsd/contexts/citizen-services/request-lifecycle-service/application"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
)

const DefaultBufferSize = 64

// LifecycleNotification is the lightweight change signal broadcast after a
// committed transition. Subscribers re-read state for details.
type LifecycleNotification struct {
	RequestID  string
	Radicado   string
	EventType  entities.EventType
	State      entities.State
	Sequence   int64
	OccurredAt time.Time
	FromActor  entities.Actor
	ToActor    *entities.Actor
}

// Dispatcher fans notifications out to live subscribers. Delivery is
// at-most-once: absent or slow subscribers miss events and nothing is replayed.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[uint64]chan LifecycleNotification
	nextID      uint64
	bufferSize  int
	observer    ports.TransitionObserver
	logger      *slog.Logger
}

func NewDispatcher(bufferSize int, observer ports.TransitionObserver, logger *slog.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if observer == nil {
		observer = ports.NopObserver{}
	}
	return &Dispatcher{
		subscribers: make(map[uint64]chan LifecycleNotification),
		bufferSize:  bufferSize,
		observer:    observer,
		logger:      application.ResolveLogger(logger),
	}
}

// Subscribe registers a stream that receives events published from now on.
// The channel closes when cancel is called or ctx is done.
func (d *Dispatcher) Subscribe(ctx context.Context) (<-chan LifecycleNotification, func()) {
	ch := make(chan LifecycleNotification, d.bufferSize)

	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.subscribers[id] = ch
	d.mu.Unlock()

	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, id)
			d.mu.Unlock()
			close(ch)
			close(stop)
		})
	}
	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-stop:
			}
		}()
	}
	return ch, cancel
}

// Publish never blocks. It returns how many subscribers accepted the event.
func (d *Dispatcher) Publish(notification LifecycleNotification) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	delivered := 0
	for _, ch := range d.subscribers {
		select {
		case ch <- notification:
			delivered++
		default:
			d.observer.ObserveDrop()
			d.logger.Warn("dropping lifecycle notification for slow subscriber",
				"event", "lifecycle_notification_dropped",
				"module", "citizen-services/request-lifecycle-service",
				"layer", "application",
				"request_id", notification.RequestID,
				"event_type", string(notification.EventType),
			)
		}
	}
	return delivered
}

func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

// FromTraceEvent builds the broadcast payload for a committed event.
func FromTraceEvent(request entities.Request, event entities.TraceEvent) LifecycleNotification {
	out := LifecycleNotification{
		RequestID:  request.ID,
		Radicado:   request.Radicado,
		EventType:  event.EventType,
		State:      request.State,
		Sequence:   event.Sequence,
		OccurredAt: event.OccurredAt,
		FromActor:  event.FromActor,
	}
	if event.ToActor != nil {
		to := *event.ToActor
		out.ToActor = &to
	}
	return out
}

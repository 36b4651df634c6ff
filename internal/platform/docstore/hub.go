package docstore

import (
	"context"
	"sync"
)

// DeliverFunc re-reads the watched state and hands it to the listener. It runs on the
// subscription's own goroutine and receives a context cancelled on unsubscribe.
type DeliverFunc func(ctx context.Context)

// Hub tracks live subscriptions for a backend and wakes them when a collection changes.
// Wake-ups coalesce: a subscription that is still delivering when several changes land
// re-reads once more afterwards and observes only the latest committed state.
type Hub struct {
	mu       sync.Mutex
	watchers map[uint64]*watcher
	nextID   uint64
	closed   bool
}

type watcher struct {
	collection string
	documentID string
	signal     chan struct{}
	cancel     context.CancelFunc
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{watchers: map[uint64]*watcher{}}
}

// Register starts a subscription on collection (optionally narrowed to one document ID).
// The first delivery happens immediately.
func (h *Hub) Register(ctx context.Context, collection, documentID string, deliver DeliverFunc) Subscription {
	wctx, cancel := context.WithCancel(ctx)
	w := &watcher{
		collection: collection,
		documentID: documentID,
		signal:     make(chan struct{}, 1),
		cancel:     cancel,
	}
	// Queue the initial delivery before Publish can see the watcher.
	w.signal <- struct{}{}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		return &subscription{cancel: cancel}
	}
	id := h.nextID
	h.nextID++
	h.watchers[id] = w
	h.mu.Unlock()

	go func() {
		defer h.remove(id)
		for {
			select {
			case <-wctx.Done():
				return
			case <-w.signal:
				if wctx.Err() != nil {
					return
				}
				deliver(wctx)
			}
		}
	}()
	return &subscription{cancel: cancel}
}

// Publish wakes subscriptions watching collection. An empty documentID wakes every
// subscription of the collection.
func (h *Hub) Publish(collection, documentID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, w := range h.watchers {
		if w.collection != collection {
			continue
		}
		if documentID != "" && w.documentID != "" && w.documentID != documentID {
			continue
		}
		w.wake()
	}
}

// PublishAll wakes every subscription, used after a change feed reconnects.
func (h *Hub) PublishAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, w := range h.watchers {
		w.wake()
	}
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

// Close cancels every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, w := range h.watchers {
		w.cancel()
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.watchers, id)
}

func (w *watcher) wake() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

type subscription struct {
	cancel context.CancelFunc
}

func (s *subscription) Unsubscribe() {
	s.cancel()
}

package priority

import (
	"container/heap"
	"context"
	"fmt"
	"sync"

	"github.com/viant/fleetsched/service/messaging"
)

// Config for the priority queue.
type Config struct {
	// MaxRetries is how many times a nacked message is put back.
	MaxRetries int `json:"maxRetries" yaml:"maxRetries"`
}

// DefaultConfig returns the default priority queue configuration.
func DefaultConfig() Config {
	return Config{MaxRetries: 0}
}

// LessFunc orders payloads; the smallest payload is consumed first.
type LessFunc[T any] func(a, b *T) bool

// Queue is an unbounded in-memory queue delivering payloads in less order.
// Payloads comparing equal are delivered in publish order. Publish never
// blocks.
type Queue[T any] struct {
	mu     sync.Mutex
	items  items[T]
	seq    uint64
	signal chan struct{}
	config Config
}

// NewQueue creates a priority queue ordered by less.
func NewQueue[T any](less LessFunc[T], config Config) *Queue[T] {
	return &Queue[T]{
		items:  items[T]{less: less},
		signal: make(chan struct{}, 1),
		config: config,
	}
}

// Publish enqueues a copy of t.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.push(*t, 0)
	return nil
}

func (q *Queue[T]) push(payload T, retryCount int) {
	q.mu.Lock()
	q.seq++
	heap.Push(&q.items, &item[T]{payload: payload, seq: q.seq, retryCount: retryCount})
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Consume blocks until a message is available or ctx is done.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	for {
		q.mu.Lock()
		if q.items.Len() > 0 {
			next := heap.Pop(&q.items).(*item[T])
			q.mu.Unlock()
			return &Message[T]{item: next, queue: q}, nil
		}
		q.mu.Unlock()
		select {
		case <-q.signal:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Size returns the number of queued messages.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Message is a payload delivered by Queue.
type Message[T any] struct {
	item      *item[T]
	queue     *Queue[T]
	mu        sync.Mutex
	processed bool
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.item.payload
}

// Ack acknowledges the message.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	return nil
}

// Nack puts the payload back while retries remain.
func (m *Message[T]) Nack(error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message already processed")
	}
	m.processed = true
	if m.item.retryCount < m.queue.config.MaxRetries {
		m.queue.push(m.item.payload, m.item.retryCount+1)
	}
	return nil
}

type item[T any] struct {
	payload    T
	seq        uint64
	retryCount int
}

type items[T any] struct {
	less LessFunc[T]
	list []*item[T]
}

func (h items[T]) Len() int { return len(h.list) }

func (h items[T]) Less(i, j int) bool {
	a, b := h.list[i], h.list[j]
	if h.less(&a.payload, &b.payload) {
		return true
	}
	if h.less(&b.payload, &a.payload) {
		return false
	}
	return a.seq < b.seq
}

func (h items[T]) Swap(i, j int) { h.list[i], h.list[j] = h.list[j], h.list[i] }

func (h *items[T]) Push(x any) { h.list = append(h.list, x.(*item[T])) }

func (h *items[T]) Pop() any {
	n := len(h.list)
	last := h.list[n-1]
	h.list[n-1] = nil
	h.list = h.list[:n-1]
	return last
}

var _ messaging.Queue[int] = (*Queue[int])(nil)
var _ messaging.Sizer = (*Queue[int])(nil)

package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MessageFunc processes one transport message.
type MessageFunc func(ctx context.Context, topic string, payload []byte) error

type message struct {
	topic   string
	payload []byte
}

// Pool runs a MessageFunc on a fixed number of workers behind a bounded
// queue. Submit never blocks: a full queue drops the message.
type Pool struct {
	fn      MessageFunc
	queue   chan message
	workers int
	timeout time.Duration
	logf    func(format string, args ...any)

	dropped   atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64

	// mu orders Submit against Stop so nothing is sent after the queue closes.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a pool. Non-positive sizes fall back to one worker and a
// queue of one; a zero timeout disables the per-message deadline.
func NewPool(fn MessageFunc, workers, queueSize int, timeout time.Duration, logf func(string, ...any)) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Pool{
		fn:      fn,
		queue:   make(chan message, queueSize),
		workers: workers,
		timeout: timeout,
		logf:    logf,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	p.logf("ingest: started %d workers (queue %d)", p.workers, cap(p.queue))
}

// Stop stops accepting messages, drains what is queued and waits for the
// workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Submit queues a message and reports whether it was accepted. The payload
// is copied since transport clients may reuse their buffers.
func (p *Pool) Submit(topic string, payload []byte) bool {
	msg := message{topic: topic, payload: append([]byte(nil), payload...)}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.queue <- msg:
		return true
	default:
		n := p.dropped.Add(1)
		p.logf("ingest: queue full, dropped message on %s (%d dropped)", topic, n)
		return false
	}
}

// Stats returns processed, failed and dropped message counts.
func (p *Pool) Stats() (processed, failed, dropped int64) {
	return p.processed.Load(), p.failed.Load(), p.dropped.Load()
}

func (p *Pool) work() {
	defer p.wg.Done()
	for msg := range p.queue {
		p.run(msg)
	}
}

func (p *Pool) run(msg message) {
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.logf("ingest: panic handling %s: %v", msg.topic, r)
		}
	}()

	if err := p.fn(ctx, msg.topic, msg.payload); err != nil {
		p.failed.Add(1)
		p.logf("ingest: %s: %v", msg.topic, err)
		return
	}
	p.processed.Add(1)
}

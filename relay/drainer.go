package relay

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cyberorg/sparagliding-meshmap/store"
)

// DefaultMaxRetries is the number of failed deliveries before a job is
// abandoned.
const DefaultMaxRetries = 5

// Drainer periodically delivers pending outbox jobs.
type Drainer struct {
	db         *store.DB
	deliverers map[string]Deliverer
	interval   time.Duration
	maxRetries int
	timeout    time.Duration
	now        func() time.Time
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

// NewDrainer creates a drainer. Jobs of kinds without a deliverer are left
// pending.
func NewDrainer(db *store.DB, deliverers map[string]Deliverer, interval time.Duration, maxRetries int) *Drainer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Drainer{
		db:         db,
		deliverers: deliverers,
		interval:   interval,
		maxRetries: maxRetries,
		timeout:    30 * time.Second,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the drain loop.
func (d *Drainer) Start() {
	d.wg.Add(1)
	go d.drainLoop()
}

// Stop stops the drain loop.
func (d *Drainer) Stop() {
	select {
	case <-d.stopChan:
	default:
		close(d.stopChan)
	}
	d.wg.Wait()
}

func (d *Drainer) drainLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.Drain(context.Background())
		}
	}
}

// Drain delivers one batch of pending jobs and returns how many were sent.
func (d *Drainer) Drain(ctx context.Context) int {
	jobs, err := d.db.ListPendingOutbox(ctx, 50)
	if err != nil {
		log.Printf("relay: list pending outbox: %v", err)
		return 0
	}

	sent := 0
	for _, job := range jobs {
		deliverer, ok := d.deliverers[job.Kind]
		if !ok {
			continue
		}
		dctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := deliverer.Deliver(dctx, job.Payload)
		cancel()
		if err != nil {
			log.Printf("relay: deliver %s job %s (attempt %d): %v", job.Kind, job.JobID, job.Retries+1, err)
			if err := d.db.FailOutbox(ctx, job.ID, err.Error(), d.maxRetries, d.now()); err != nil {
				log.Printf("relay: record failure of job %s: %v", job.JobID, err)
			}
			if job.Retries+1 >= d.maxRetries {
				log.Printf("relay: abandoned %s job %s after %d attempts", job.Kind, job.JobID, job.Retries+1)
			}
			continue
		}
		if err := d.db.AckOutbox(ctx, job.ID, d.now()); err != nil {
			log.Printf("relay: ack job %s: %v", job.JobID, err)
			continue
		}
		sent++
	}
	return sent
}

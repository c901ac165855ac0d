package relay

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cyberorg/sparagliding-meshmap/config"
	"github.com/cyberorg/sparagliding-meshmap/store"
)

// Queue enqueues relay jobs into the outbox. A relay whose credentials are
// not configured is a no-op.
type Queue struct {
	db  *store.DB
	cfg config.RelayConfig
	now func() time.Time
}

func NewQueue(db *store.DB, cfg config.RelayConfig) *Queue {
	return &Queue{db: db, cfg: cfg, now: time.Now}
}

func (q *Queue) SendChatMessage(ctx context.Context, from, text string) {
	if !q.cfg.Telegram.Enabled() {
		return
	}
	q.enqueue(ctx, KindTelegram, chatJob{From: from, Message: text})
}

func (q *Queue) SendTrackingPayload(ctx context.Context, payload any) {
	if !q.cfg.FlyXC.Enabled() {
		return
	}
	q.enqueue(ctx, KindFlyXC, payload)
}

func (q *Queue) enqueue(ctx context.Context, kind string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("relay: encode %s job: %v", kind, err)
		return
	}
	jobID := uuid.NewString()
	if err := q.db.EnqueueOutbox(ctx, jobID, kind, data, q.now()); err != nil {
		log.Printf("relay: enqueue %s job %s: %v", kind, jobID, err)
		return
	}
	log.Printf("relay: queued %s job %s", kind, jobID)
}

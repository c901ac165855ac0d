package engine

import (
	"context"
	"time"
)

func (e *Engine) retentionLoop() {
	defer e.wg.Done()
	rc := e.cfg.Retention
	if rc.MaxAge <= 0 || rc.PurgeInterval <= 0 {
		e.logFn("engine: retention disabled")
		return
	}
	ticker := time.NewTicker(rc.PurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.PurgeHistory(context.Background())
		}
	}
}

// PurgeHistory deletes history older than the configured maximum age and
// returns the rows removed per table.
func (e *Engine) PurgeHistory(ctx context.Context) map[string]int64 {
	cutoff := e.now().Add(-e.cfg.Retention.MaxAge)
	deleted, err := e.db.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		e.logFn("engine: retention purge: %v", err)
	}
	var total int64
	for _, n := range deleted {
		total += n
	}
	if total > 0 {
		e.logFn("engine: purged %d rows older than %s", total, cutoff.Format(time.RFC3339))
		e.Events.Emit(Event{Type: EventRetentionPurged, Payload: RetentionEvent{Cutoff: cutoff, Deleted: deleted}})
	}
	return deleted
}

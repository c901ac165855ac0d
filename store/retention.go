package store

import (
	"context"
	"fmt"
	"time"
)

// historyTables hold append-only history that ages out. Nodes, waypoints and
// neighbour edges are current state and are never purged here.
var historyTables = []string{
	"positions",
	"text_messages",
	"traceroutes",
	"map_reports",
	"service_envelopes",
	"device_metrics",
	"environment_metrics",
	"power_metrics",
	"air_quality_metrics",
}

// PurgeOlderThan deletes history rows created before cutoff and finished
// outbox jobs. It returns the number of rows removed per table.
func (db *DB) PurgeOlderThan(ctx context.Context, cutoff time.Time) (map[string]int64, error) {
	removed := make(map[string]int64)
	for _, table := range historyTables {
		res, err := db.ExecContext(ctx, db.Q(fmt.Sprintf(`DELETE FROM %s WHERE created_at < ?`, table)), db.ts(cutoff))
		if err != nil {
			return removed, fmt.Errorf("purge %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		removed[table] = n
	}
	res, err := db.ExecContext(ctx, db.Q(`DELETE FROM outbox WHERE created_at < ? AND (sent_at IS NOT NULL OR failed_at IS NOT NULL)`), db.ts(cutoff))
	if err != nil {
		return removed, fmt.Errorf("purge outbox: %w", err)
	}
	n, _ := res.RowsAffected()
	removed["outbox"] = n
	return removed, nil
}

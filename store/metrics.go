package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cyberorg/sparagliding-meshmap/telemetry"
)

func quoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = `"` + c + `"`
	}
	return strings.Join(quoted, ", ")
}

func metricSelect(f telemetry.Family) string {
	return fmt.Sprintf(`SELECT id, node_id, %s, created_at FROM %s`, quoteColumns(f.Columns()), f.Table())
}

func scanMetric(f telemetry.Family, row interface{ Scan(...any) error }) (*telemetry.Metric, error) {
	cols := f.Columns()
	m := &telemetry.Metric{Family: f, Values: make(map[string]float64)}
	var nodeID int64
	var createdAt any
	raw := make([]any, len(cols))
	dest := make([]any, 0, len(cols)+3)
	dest = append(dest, &m.ID, &nodeID)
	for i := range raw {
		dest = append(dest, &raw[i])
	}
	dest = append(dest, &createdAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	for i, c := range cols {
		if v := anyFloat(raw[i]); v != nil {
			m.Values[c] = *v
		}
	}
	m.NodeID = uint32(nodeID)
	m.CreatedAt = parseTime(createdAt)
	return m, nil
}

// SaveMetric stores m in its family table. Fields absent from m.Values are
// stored as NULL.
func (db *DB) SaveMetric(ctx context.Context, m *telemetry.Metric) error {
	if !m.Family.Valid() {
		return fmt.Errorf("save metric: unknown family %q", m.Family)
	}
	cols := m.Family.Columns()
	args := make([]any, 0, len(cols)+2)
	args = append(args, int64(m.NodeID))
	for _, c := range cols {
		if v, ok := m.Values[c]; ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	args = append(args, db.ts(m.CreatedAt))
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	query := fmt.Sprintf(`INSERT INTO %s (node_id, %s, created_at) VALUES (%s)`, m.Family.Table(), quoteColumns(cols), marks)
	id, err := db.insertID(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save %s metric: %w", m.Family, err)
	}
	m.ID = id
	return nil
}

// FindRecentMetric returns the newest record of a family for a node created
// at or after since.
func (db *DB) FindRecentMetric(ctx context.Context, f telemetry.Family, nodeID uint32, since time.Time) (*telemetry.Metric, bool, error) {
	if !f.Valid() {
		return nil, false, fmt.Errorf("unknown metric family %q", f)
	}
	row := db.QueryRowContext(ctx, db.Q(metricSelect(f)+` WHERE node_id=? AND created_at >= ? ORDER BY created_at DESC, id DESC LIMIT 1`),
		int64(nodeID), db.ts(since))
	m, err := scanMetric(f, row)
	found, err := notFound(err)
	if !found {
		return nil, false, err
	}
	return m, true, nil
}

// ListMetrics returns a node's records of one family since the given time,
// oldest first.
func (db *DB) ListMetrics(ctx context.Context, f telemetry.Family, nodeID uint32, since time.Time, limit int) ([]*telemetry.Metric, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("unknown metric family %q", f)
	}
	rows, err := db.QueryContext(ctx, db.Q(metricSelect(f)+` WHERE node_id=? AND created_at >= ? ORDER BY created_at LIMIT ?`),
		int64(nodeID), db.ts(since), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*telemetry.Metric
	for rows.Next() {
		m, err := scanMetric(f, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

package store

import (
	"context"
	"time"

	"github.com/cyberorg/sparagliding-meshmap/dedup"
	"github.com/cyberorg/sparagliding-meshmap/telemetry"
)

// MetricRepository adapts the metric tables to a dedup gate. The identity's
// family selects the table.
type MetricRepository struct {
	DB *DB
}

func (r MetricRepository) FindMostRecent(ctx context.Context, id dedup.Identity, since time.Time) (*telemetry.Metric, bool, error) {
	return r.DB.FindRecentMetric(ctx, telemetry.Family(id.Family), id.NodeID, since)
}

func (r MetricRepository) Save(ctx context.Context, m *telemetry.Metric) error {
	return r.DB.SaveMetric(ctx, m)
}

// PositionFamily is the dedup identity family of position history.
const PositionFamily = "position"

// PositionRepository adapts position history to a dedup gate.
type PositionRepository struct {
	DB *DB
}

func (r PositionRepository) FindMostRecent(ctx context.Context, id dedup.Identity, since time.Time) (*Position, bool, error) {
	return r.DB.FindRecentPosition(ctx, id.NodeID, since)
}

func (r PositionRepository) Save(ctx context.Context, p *Position) error {
	return r.DB.SavePosition(ctx, p)
}

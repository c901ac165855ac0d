package engine

import (
	"context"

	"github.com/cyberorg/sparagliding-meshmap/nodestate"
	"github.com/cyberorg/sparagliding-meshmap/store"
	"github.com/cyberorg/sparagliding-meshmap/telemetry"
)

// meshEmitter bridges the mesh handler's emitter interface to the EventBus.
type meshEmitter struct {
	bus *EventBus
}

func (e *meshEmitter) EmitNodeUpdated(n *store.Node) {
	e.bus.Emit(Event{Type: EventNodeUpdated, Payload: NodeUpdatedEvent{Node: n}})
}

func (e *meshEmitter) EmitTextMessage(m *store.TextMessage) {
	e.bus.Emit(Event{Type: EventTextMessage, Payload: TextMessageEvent{Message: m}})
}

func (e *meshEmitter) EmitPosition(p *store.Position) {
	e.bus.Emit(Event{Type: EventPosition, Payload: PositionEvent{Position: p}})
}

func (e *meshEmitter) EmitTelemetry(m *telemetry.Metric) {
	e.bus.Emit(Event{Type: EventTelemetry, Payload: TelemetryEvent{Metric: m}})
}

// statusRecorder adapts the nodestate manager to the ingest status hook and
// announces every recorded state.
type statusRecorder struct {
	states *nodestate.Manager
	bus    *EventBus
}

func (s *statusRecorder) HandleStatus(ctx context.Context, topic string, payload []byte) error {
	cs, err := s.states.HandleStatus(ctx, topic, payload)
	if err != nil || cs == nil {
		return err
	}
	s.bus.Emit(Event{Type: EventNodeStatus, Timestamp: cs.UpdatedAt, Payload: NodeStatusEvent{
		NodeID:    cs.NodeID,
		NodeIDHex: cs.NodeIDHex,
		State:     cs.State,
		UpdatedAt: cs.UpdatedAt,
	}})
	return nil
}

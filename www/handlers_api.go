package www

import (
	"database/sql"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cyberorg/sparagliding-meshmap/meshid"
	"github.com/cyberorg/sparagliding-meshmap/nodestate"
	"github.com/cyberorg/sparagliding-meshmap/telemetry"
)

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	dbOK := h.engine.DB().PingContext(r.Context()) == nil
	status := map[string]any{
		"status":      "ok",
		"database":    dbOK,
		"messaging":   h.engine.MessagingConnected(),
		"sse_clients": h.eventHub.ClientCount(),
	}
	if pool := h.engine.Pool(); pool != nil {
		processed, failed, dropped := pool.Stats()
		status["ingest"] = map[string]int64{
			"processed": processed,
			"failed":    failed,
			"dropped":   dropped,
		}
	}
	if !dbOK {
		status["status"] = "degraded"
	}
	h.jsonOK(w, status)
}

func (h *Handlers) apiListNodes(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r, time.Now(), 0)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	nodes, err := h.engine.DB().ListNodes(r.Context(), since)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	views := make([]nodeView, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, newNodeView(n))
	}
	h.jsonOK(w, views)
}

func (h *Handlers) apiGetNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeIDParam(r)
	if !ok {
		h.jsonError(w, "invalid node id", http.StatusBadRequest)
		return
	}
	n, err := h.engine.DB().GetNode(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		h.jsonError(w, "node not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, newNodeView(n))
}

func (h *Handlers) apiNodePositions(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeIDParam(r)
	if !ok {
		h.jsonError(w, "invalid node id", http.StatusBadRequest)
		return
	}
	since, err := parseSince(r, time.Now(), 0)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	positions, err := h.engine.DB().ListPositions(r.Context(), id, since, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, positions)
}

func (h *Handlers) apiNodeTelemetry(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeIDParam(r)
	if !ok {
		h.jsonError(w, "invalid node id", http.StatusBadRequest)
		return
	}
	family := telemetry.Family(chi.URLParam(r, "family"))
	if !family.Valid() {
		h.jsonError(w, "unknown telemetry family", http.StatusBadRequest)
		return
	}
	since, err := parseSince(r, time.Now(), 0)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	metrics, err := h.engine.DB().ListMetrics(r.Context(), family, id, since, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, metrics)
}

func (h *Handlers) apiNodeNeighbours(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeIDParam(r)
	if !ok {
		h.jsonError(w, "invalid node id", http.StatusBadRequest)
		return
	}
	edges, err := h.engine.DB().ListNeighbourEdges(r.Context(), id)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, edges)
}

func (h *Handlers) apiListMessages(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r, time.Now(), 0)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var to *uint32
	if v := r.URL.Query().Get("to"); v != "" {
		id, ok := meshid.Parse(v)
		if !ok {
			h.jsonError(w, "invalid to", http.StatusBadRequest)
			return
		}
		n := uint32(id)
		to = &n
	}
	msgs, err := h.engine.DB().ListTextMessages(r.Context(), since, to, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, msgs)
}

func (h *Handlers) apiListWaypoints(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	since, err := parseSince(r, now, 0)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	waypoints, err := h.engine.DB().ListWaypoints(r.Context(), since, now)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, waypoints)
}

func (h *Handlers) apiListTraceroutes(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r, time.Now(), 0)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	routes, err := h.engine.DB().ListTraceroutes(r.Context(), since, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, routes)
}

func (h *Handlers) apiListMapReports(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r, time.Now(), 0)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	reports, err := h.engine.DB().ListMapReports(r.Context(), since, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, reports)
}

func (h *Handlers) apiNodeState(w http.ResponseWriter, r *http.Request) {
	ns := h.engine.NodeState()
	if ns == nil {
		h.jsonOK(w, []*nodestate.ConnectionState{})
		return
	}
	states, err := ns.GetAllStates(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	list := make([]*nodestate.ConnectionState, 0, len(states))
	for _, s := range states {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].NodeID < list[j].NodeID })
	h.jsonOK(w, list)
}

func (h *Handlers) apiListEnvelopes(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var gateway *string
	if v := r.URL.Query().Get("gateway_id"); v != "" {
		gateway = &v
	}
	envs, err := h.engine.DB().ListServiceEnvelopes(r.Context(), gateway, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, envs)
}

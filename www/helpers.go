package www

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cyberorg/sparagliding-meshmap/geo"
	"github.com/cyberorg/sparagliding-meshmap/meshid"
	"github.com/cyberorg/sparagliding-meshmap/store"
)

const (
	defaultLimit = 200
	maxLimit     = 5000
)

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseSince reads the "since" query parameter as either an RFC 3339 time or
// a duration back from now ("24h"). Absent means def.
func parseSince(r *http.Request, now time.Time, def time.Duration) (time.Time, error) {
	v := r.URL.Query().Get("since")
	if v == "" {
		if def == 0 {
			return time.Time{}, nil
		}
		return now.Add(-def), nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid since %q", v)
	}
	return t, nil
}

func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", v)
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}

// nodeIDParam accepts "!8d2abf01", "0x8d2abf01" or a decimal node number.
func nodeIDParam(r *http.Request) (uint32, bool) {
	v := chi.URLParam(r, "id")
	if n, err := strconv.ParseUint(v, 10, 32); err == nil {
		return uint32(n), true
	}
	id, ok := meshid.Parse(v)
	return uint32(id), ok
}

// nodeView is a node as served to the map, with the display coordinates.
type nodeView struct {
	*store.Node
	OffsetLatLng *geo.Point `json:"offset_lat_lng"`
}

func newNodeView(n *store.Node) nodeView {
	v := nodeView{Node: n}
	if n.Latitude != nil && n.Longitude != nil {
		if p, ok := geo.SanitizeLatLon(*n.Latitude, *n.Longitude); ok {
			v.OffsetLatLng = &p
		}
	}
	return v
}

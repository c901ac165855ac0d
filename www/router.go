package www

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"github.com/cyberorg/sparagliding-meshmap/engine"
)

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub
}

// NewRouter builds the HTTP handler and returns a func that stops the SSE hub.
func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	unsubscribe := hub.SetupEngineListeners(eng)

	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(eng.AppConfig().Web.SessionSecret),
		eventHub: hub,
	}

	if err := h.ensureDefaultAdmin(eng.DB()); err != nil {
		log.Printf("www: default admin: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/events", hub.SSEHandler)

	r.Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)

	// Read API, no auth
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.apiHealthCheck)
		r.Get("/nodes", h.apiListNodes)
		r.Get("/nodes/{id}", h.apiGetNode)
		r.Get("/nodes/{id}/positions", h.apiNodePositions)
		r.Get("/nodes/{id}/telemetry/{family}", h.apiNodeTelemetry)
		r.Get("/nodes/{id}/neighbours", h.apiNodeNeighbours)
		r.Get("/messages", h.apiListMessages)
		r.Get("/waypoints", h.apiListWaypoints)
		r.Get("/traceroutes", h.apiListTraceroutes)
		r.Get("/map-reports", h.apiListMapReports)
		r.Get("/nodestate", h.apiNodeState)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Get("/admin/envelopes", h.apiListEnvelopes)
		})
	})

	stop := func() {
		unsubscribe()
		hub.Stop()
	}
	return r, stop
}

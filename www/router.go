package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"maintcore/engine"
)

// Options carries the collaborators the router does not get from the engine.
type Options struct {
	Admins        AdminStore
	Notifications *NotificationHub
}

type Handlers struct {
	engine        *engine.Engine
	admins        AdminStore
	sessions      *sessions.CookieStore
	eventHub      *EventHub
	notifications *NotificationHub
	limiter       *KeyLimiter
	apiKeys       map[string]struct{}
}

func NewRouter(eng *engine.Engine, opts Options) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	subID := hub.SetupEngineListeners(eng)

	webCfg := eng.AppConfig().Web
	h := &Handlers{
		engine:        eng,
		admins:        opts.Admins,
		sessions:      newSessionStore(webCfg.SessionSecret),
		eventHub:      hub,
		notifications: opts.Notifications,
		limiter:       NewKeyLimiter(webCfg.RatePerSecond, webCfg.RateBurst),
		apiKeys:       make(map[string]struct{}, len(webCfg.APIKeys)),
	}
	for _, k := range webCfg.APIKeys {
		if k != "" {
			h.apiKeys[k] = struct{}{}
		}
	}

	if h.admins != nil {
		h.ensureDefaultAdmin(h.admins)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/events", hub.SSEHandler)
	if h.notifications != nil {
		r.Get("/ws/notifications", h.notifications.ServeWS)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Route("/api", func(r chi.Router) {
		// Reads and stateless queries
		r.Get("/health", h.apiHealthCheck)
		r.Get("/decisions", h.apiListDecisions)
		r.Get("/components", h.apiListComponents)
		r.Get("/work-orders", h.apiListWorkOrders)
		r.Get("/work-orders/{id}", h.apiGetWorkOrder)
		r.Get("/purchase-orders", h.apiListPurchaseOrders)
		r.Get("/technicians", h.apiListTechnicians)
		r.Get("/spares", h.apiListSpares)
		r.Get("/schedule", h.apiGetSchedule)
		r.Get("/audit", h.apiListAudit)
		r.Post("/rul/predict", h.apiPredictRUL)
		r.Post("/idle-window", h.apiIdleWindow)

		// Ingestion
		r.Group(func(r chi.Router) {
			r.Use(h.requireAPIKey)
			r.Post("/schedule", h.apiSetSchedule)
			r.Post("/telemetry/health", h.apiSubmitHealth)
			r.Post("/telemetry/samples", h.apiSubmitSamples)
			r.Post("/telemetry/signals", h.apiSubmitSignals)
			r.Post("/anomalies", h.apiSubmitAnomaly)
		})

		// Operator actions
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/work-orders/{id}/start", h.apiStartWorkOrder)
			r.Post("/work-orders/{id}/complete", h.apiCompleteWorkOrder)
			r.Post("/work-orders/{id}/release-spares", h.apiReleaseSpares)
			r.Post("/purchase-orders/{id}/status", h.apiAdvancePurchaseOrder)
			r.Post("/replenish", h.apiReplenish)
		})
	})

	stopFn := func() {
		eng.Events.Unsubscribe(subID)
		hub.Stop()
	}

	return r, stopFn
}

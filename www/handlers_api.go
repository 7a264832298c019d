package www

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"maintcore/decision"
	"maintcore/schedule"
	"maintcore/telemetry"
	"maintcore/workorder"
)

// --- Reads ---

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, map[string]any{
		"status":      "ok",
		"messaging":   h.engine.MessagingConnected(),
		"sse_clients": h.eventHub.ClientCount(),
		"time":        h.engine.Now(),
	})
}

func (h *Handlers) apiListDecisions(w http.ResponseWriter, r *http.Request) {
	ds, err := h.engine.Decisions(r.Context())
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, ds)
}

func (h *Handlers) apiListComponents(w http.ResponseWriter, r *http.Request) {
	cs, err := h.engine.Components(r.Context())
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, cs)
}

func (h *Handlers) apiListWorkOrders(w http.ResponseWriter, r *http.Request) {
	wos, err := h.engine.WorkOrders(r.Context())
	if err != nil {
		h.engineError(w, err)
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := wos[:0]
		for _, wo := range wos {
			if string(wo.Status) == status {
				filtered = append(filtered, wo)
			}
		}
		wos = filtered
	}
	h.jsonOK(w, wos)
}

func (h *Handlers) apiGetWorkOrder(w http.ResponseWriter, r *http.Request) {
	wo, err := h.engine.WorkOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, wo)
}

func (h *Handlers) apiListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	pos, err := h.engine.PurchaseOrders(r.Context())
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, pos)
}

func (h *Handlers) apiListTechnicians(w http.ResponseWriter, r *http.Request) {
	ts, err := h.engine.Technicians(r.Context())
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, ts)
}

func (h *Handlers) apiListSpares(w http.ResponseWriter, r *http.Request) {
	sp, err := h.engine.Spares(r.Context())
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, sp)
}

func (h *Handlers) apiGetSchedule(w http.ResponseWriter, r *http.Request) {
	bs, err := h.engine.Schedule(r.Context())
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, bs)
}

func (h *Handlers) apiListAudit(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.AuditEntries(parseLimit(r, 50)))
}

// --- Stateless queries ---

func (h *Handlers) apiPredictRUL(w http.ResponseWriter, r *http.Request) {
	var in decision.RULInput
	if err := decodeJSON(r, &in); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if in.ComponentName == "" {
		h.jsonError(w, "component_name is required", http.StatusBadRequest)
		return
	}
	h.jsonOK(w, h.engine.PredictRUL(in))
}

type idleWindowRequest struct {
	Batches       []telemetry.ScheduledBatch `json:"batches"`
	DurationHours float64                    `json:"duration_hours"`
	Now           *time.Time                 `json:"now,omitempty"`
}

func (h *Handlers) apiIdleWindow(w http.ResponseWriter, r *http.Request) {
	var req idleWindowRequest
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.DurationHours <= 0 {
		h.jsonError(w, "duration_hours must be positive", http.StatusBadRequest)
		return
	}
	if err := schedule.Validate(req.Batches); err != nil {
		h.engineError(w, err)
		return
	}
	now := h.engine.Now()
	if req.Now != nil {
		now = *req.Now
	}
	h.jsonOK(w, map[string]any{
		"window": schedule.FindIdleWindow(req.Batches, schedule.Hours(req.DurationHours), now),
	})
}

// --- Ingestion ---

func (h *Handlers) apiSetSchedule(w http.ResponseWriter, r *http.Request) {
	var req telemetry.ScheduleUpdate
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.engine.SetSchedule(r.Context(), req.Batches); err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, map[string]int{"batches": len(req.Batches)})
}

func (h *Handlers) apiSubmitHealth(w http.ResponseWriter, r *http.Request) {
	var c telemetry.ComponentHealth
	if err := decodeJSON(r, &c); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	out, err := h.engine.SubmitHealth(r.Context(), c)
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, out)
}

func (h *Handlers) apiSubmitAnomaly(w http.ResponseWriter, r *http.Request) {
	var a telemetry.Anomaly
	if err := decodeJSON(r, &a); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	out, err := h.engine.SubmitAnomaly(r.Context(), a)
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, out)
}

func (h *Handlers) apiSubmitSamples(w http.ResponseWriter, r *http.Request) {
	var req telemetry.SensorBatch
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	outs, err := h.engine.SubmitSamples(r.Context(), req.Samples)
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, outs)
}

func (h *Handlers) apiSubmitSignals(w http.ResponseWriter, r *http.Request) {
	var req telemetry.SignalBatch
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	drifts, outs, err := h.engine.SubmitSignals(r.Context(), req.Signals)
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, map[string]any{"drifts": drifts, "outcomes": outs})
}

// --- Operator actions ---

func (h *Handlers) apiStartWorkOrder(w http.ResponseWriter, r *http.Request) {
	h.respondWorkOrder(w, r, h.engine.StartWorkOrder)
}

func (h *Handlers) apiCompleteWorkOrder(w http.ResponseWriter, r *http.Request) {
	h.respondWorkOrder(w, r, h.engine.CompleteWorkOrder)
}

func (h *Handlers) apiReleaseSpares(w http.ResponseWriter, r *http.Request) {
	h.respondWorkOrder(w, r, h.engine.ReleaseSpares)
}

func (h *Handlers) respondWorkOrder(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, string, string) (*workorder.WorkOrder, error)) {
	wo, err := fn(r.Context(), chi.URLParam(r, "id"), h.getUsername(r))
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, wo)
}

type poStatusRequest struct {
	Status workorder.POStatus `json:"status"`
}

func (h *Handlers) apiAdvancePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req poStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	po, err := h.engine.AdvancePurchaseOrder(r.Context(), chi.URLParam(r, "id"), req.Status, h.getUsername(r))
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, po)
}

func (h *Handlers) apiReplenish(w http.ResponseWriter, r *http.Request) {
	pos, err := h.engine.Replenish(r.Context(), h.getUsername(r))
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, pos)
}

package engine

import (
	"context"
	"time"

	"maintcore/audit"
	"maintcore/decision"
	"maintcore/notify"
	"maintcore/telemetry"
	"maintcore/workorder"
)

// Recorder is the durable side of the engine: a records sink for
// presentation layers plus the outbound outbox. *store.DB implements it.
type Recorder interface {
	UpsertDecision(d decision.Decision) error
	SaveWorkOrder(wo *workorder.WorkOrder) error
	SavePurchaseOrder(po *workorder.PurchaseOrder) error
	SaveNotification(rec notify.Record) error
	AppendAudit(e audit.Entry) error
	EnqueueOutbox(topic string, payload []byte, msgType, stationID string) error
}

type nopRecorder struct{}

func (nopRecorder) UpsertDecision(decision.Decision) error             { return nil }
func (nopRecorder) SaveWorkOrder(*workorder.WorkOrder) error           { return nil }
func (nopRecorder) SavePurchaseOrder(*workorder.PurchaseOrder) error   { return nil }
func (nopRecorder) SaveNotification(notify.Record) error               { return nil }
func (nopRecorder) AppendAudit(audit.Entry) error                      { return nil }
func (nopRecorder) EnqueueOutbox(string, []byte, string, string) error { return nil }

// recordSink delivers notification records to the Recorder.
type recordSink struct {
	rec Recorder
}

func (s *recordSink) Name() string { return "store" }

func (s *recordSink) Send(_ context.Context, rec notify.Record) error {
	return s.rec.SaveNotification(rec)
}

// ingestHandler bridges decoded telemetry messages to the engine.
type ingestHandler struct {
	e       *Engine
	timeout time.Duration
}

// IngestHandler returns a telemetry.MessageHandler that submits every
// inbound message to the engine, waiting at most timeout per message.
func (e *Engine) IngestHandler(timeout time.Duration) telemetry.MessageHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ingestHandler{e: e, timeout: timeout}
}

func (h *ingestHandler) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.timeout)
}

func (h *ingestHandler) HandleHealthUpdate(env *telemetry.Envelope, p *telemetry.HealthUpdate) {
	ctx, cancel := h.ctx()
	defer cancel()
	if _, err := h.e.SubmitHealth(ctx, p.Component); err != nil {
		h.e.debugFn("engine: %s %s from %s: %v", env.Type, env.ID, env.Src.Station, err)
	}
}

func (h *ingestHandler) HandleAnomalyReport(env *telemetry.Envelope, p *telemetry.AnomalyReport) {
	ctx, cancel := h.ctx()
	defer cancel()
	if _, err := h.e.SubmitAnomaly(ctx, p.Anomaly); err != nil {
		h.e.debugFn("engine: %s %s from %s: %v", env.Type, env.ID, env.Src.Station, err)
	}
}

func (h *ingestHandler) HandleSensorBatch(env *telemetry.Envelope, p *telemetry.SensorBatch) {
	ctx, cancel := h.ctx()
	defer cancel()
	if _, err := h.e.SubmitSamples(ctx, p.Samples); err != nil {
		h.e.debugFn("engine: %s %s from %s: %v", env.Type, env.ID, env.Src.Station, err)
	}
}

func (h *ingestHandler) HandleSignalBatch(env *telemetry.Envelope, p *telemetry.SignalBatch) {
	ctx, cancel := h.ctx()
	defer cancel()
	if _, _, err := h.e.SubmitSignals(ctx, p.Signals); err != nil {
		h.e.debugFn("engine: %s %s from %s: %v", env.Type, env.ID, env.Src.Station, err)
	}
}

func (h *ingestHandler) HandleScheduleUpdate(env *telemetry.Envelope, p *telemetry.ScheduleUpdate) {
	ctx, cancel := h.ctx()
	defer cancel()
	if err := h.e.SetSchedule(ctx, p.Batches); err != nil {
		h.e.debugFn("engine: %s %s from %s: %v", env.Type, env.ID, env.Src.Station, err)
	}
}

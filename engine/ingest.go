package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"maintcore/audit"
	"maintcore/decision"
	"maintcore/detect"
	"maintcore/metrics"
	"maintcore/notify"
	"maintcore/schedule"
	"maintcore/telemetry"
	"maintcore/workorder"
)

// Skip reasons reported in Outcome.Skipped.
const (
	SkipUnchanged = "unchanged"
	SkipOpenOrder = "open work order"
	SkipDuplicate = "duplicate"
	SkipOverCap   = "over cap"
)

// Outcome is what one ingested event caused.
type Outcome struct {
	Decision       *decision.Decision         `json:"decision,omitempty"`
	Anomaly        *telemetry.Anomaly         `json:"anomaly,omitempty"`
	WorkOrder      *workorder.WorkOrder       `json:"work_order,omitempty"`
	PurchaseOrders []*workorder.PurchaseOrder `json:"purchase_orders,omitempty"`
	Skipped        string                     `json:"skipped,omitempty"`
}

// SubmitHealth records the maintenance decision for a component observation
// and opens a work order when maintenance is required and none is open for
// the component. An observation that leads to the same decision as the last
// one changes nothing.
func (e *Engine) SubmitHealth(ctx context.Context, c telemetry.ComponentHealth) (Outcome, error) {
	var out Outcome
	var err error
	if serr := e.submit(ctx, func() { out, err = e.handleHealth(ctx, c) }); serr != nil {
		return Outcome{}, serr
	}
	return out, err
}

// SubmitAnomaly runs one anomaly through admission and, if admitted, opens an
// anomaly-triggered work order.
func (e *Engine) SubmitAnomaly(ctx context.Context, a telemetry.Anomaly) (Outcome, error) {
	var out Outcome
	var err error
	if serr := e.submit(ctx, func() {
		if err = a.Validate(); err != nil {
			e.reject(kindAnomaly, err)
			return
		}
		out, err = e.handleAnomaly(ctx, a)
	}); serr != nil {
		return Outcome{}, serr
	}
	return out, err
}

// SubmitSamples classifies sensor samples against the detection thresholds
// and admits every resulting anomaly. One malformed sample rejects the batch.
func (e *Engine) SubmitSamples(ctx context.Context, samples []telemetry.SensorSample) ([]Outcome, error) {
	var outs []Outcome
	var err error
	if serr := e.submit(ctx, func() {
		for i := range samples {
			if err = samples[i].Validate(); err != nil {
				e.reject(kindSamples, err)
				return
			}
		}
		for _, s := range samples {
			for _, a := range e.thresholds.Classify(s) {
				var out Outcome
				out, err = e.handleAnomaly(ctx, a)
				if err != nil {
					return
				}
				outs = append(outs, out)
			}
		}
	}); serr != nil {
		return nil, serr
	}
	return outs, err
}

// SubmitSignals feeds process readings to the drift tracker. Every new drift
// is returned; drifts of medium severity or above also go through anomaly
// admission.
func (e *Engine) SubmitSignals(ctx context.Context, signals []telemetry.ProcessSignal) ([]detect.Drift, []Outcome, error) {
	var drifts []detect.Drift
	var outs []Outcome
	var err error
	if serr := e.submit(ctx, func() {
		for i := range signals {
			if err = signals[i].Validate(); err != nil {
				e.reject(kindSignals, err)
				return
			}
		}
		for _, sig := range signals {
			e.drift.Observe(sig)
		}
		metrics.EventsProcessed.WithLabelValues(kindSignals, resultAccepted).Add(float64(len(signals)))

		drifts = e.drift.Evaluate(e.now())
		for _, d := range drifts {
			metrics.DriftsDetected.WithLabelValues(d.Parameter, string(d.Severity)).Inc()
			e.Events.Emit(Event{Type: EventDriftDetected, Payload: DriftDetectedEvent{Drift: d}})
			if !d.Actionable() {
				e.debugFn("engine: drift on %s (%s, %.2f%%) below action severity", d.Parameter, d.Severity, d.Magnitude)
				continue
			}
			var out Outcome
			out, err = e.handleAnomaly(ctx, d.Anomaly())
			if err != nil {
				return
			}
			outs = append(outs, out)
		}
	}); serr != nil {
		return nil, nil, serr
	}
	return drifts, outs, err
}

// SetSchedule replaces the production schedule used for idle windows.
func (e *Engine) SetSchedule(ctx context.Context, batches []telemetry.ScheduledBatch) error {
	var err error
	if serr := e.submit(ctx, func() {
		if err = schedule.Validate(batches); err != nil {
			e.reject(kindSchedule, err)
			return
		}
		e.batches = append([]telemetry.ScheduledBatch(nil), batches...)
		metrics.EventsProcessed.WithLabelValues(kindSchedule, resultAccepted).Inc()
		e.logFn("engine: schedule updated (%d batches)", len(batches))
	}); serr != nil {
		return serr
	}
	return err
}

const (
	kindHealth   = "health"
	kindAnomaly  = "anomaly"
	kindSamples  = "samples"
	kindSignals  = "signals"
	kindSchedule = "schedule"

	resultAccepted  = "accepted"
	resultRejected  = "rejected"
	resultDuplicate = "duplicate"
	resultSkipped   = "skipped"
)

func (e *Engine) handleHealth(ctx context.Context, c telemetry.ComponentHealth) (Outcome, error) {
	if err := c.Validate(); err != nil {
		e.reject(kindHealth, err)
		return Outcome{}, err
	}
	e.components[c.Name] = c

	d := decision.Analyze(c, e.batches, e.policy, e.now())
	if prev, ok := e.decisions[c.Name]; ok && decision.SameOutcome(prev, d) {
		_, open := e.orders.OpenComponentOrder(c.Name)
		if !prev.RequiresMaintenance || open {
			e.debugFn("engine: %s unchanged (%s, %s)", c.Name, d.Type, d.Priority)
			metrics.EventsProcessed.WithLabelValues(kindHealth, resultSkipped).Inc()
			return Outcome{Decision: &prev, Skipped: SkipUnchanged}, nil
		}
	}

	e.decisions[c.Name] = d
	e.Audit.Append(audit.ActionDecisionRecorded,
		fmt.Sprintf("%s: %s, %s priority. %s", c.Name, d.Type, d.Priority, d.Reasoning), audit.ActorSystem)
	e.Events.Emit(Event{Type: EventDecisionRecorded, Payload: DecisionRecordedEvent{Decision: d}})
	metrics.EventsProcessed.WithLabelValues(kindHealth, resultAccepted).Inc()

	out := Outcome{Decision: &d}
	if !d.RequiresMaintenance {
		return out, nil
	}
	if wo, ok := e.orders.OpenComponentOrder(c.Name); ok {
		e.debugFn("engine: %s already has open work order %s", c.Name, wo.ID)
		out.Skipped = SkipOpenOrder
		return out, nil
	}

	wo, pos, err := e.createWorkOrder(ctx, workorder.Request{
		Source:         c.Name,
		Trigger:        workorder.TriggerComponent,
		Type:           d.Type,
		Priority:       d.Priority,
		ScheduledTime:  d.SuggestedStart,
		EstimatedHours: d.EstimatedHours,
		Instructions:   d.Reasoning,
	})
	if err != nil {
		return out, err
	}
	out.WorkOrder, out.PurchaseOrders = wo, pos
	return out, nil
}

// handleAnomaly expects a validated anomaly and runs on the loop.
func (e *Engine) handleAnomaly(ctx context.Context, a telemetry.Anomaly) (Outcome, error) {
	out := Outcome{Anomaly: &a}

	adm, err := e.orders.Admit(ctx, a.ID)
	if err != nil {
		e.logFn("engine: admission check for anomaly %s: %v", a.ID, err)
		return out, err
	}
	switch adm {
	case workorder.Duplicate:
		e.skip(a, audit.ActionAnomalyDuplicate, SkipDuplicate, resultDuplicate)
		out.Skipped = SkipDuplicate
		return out, nil
	case workorder.OverCap:
		e.skip(a, audit.ActionAnomalySkipped, SkipOverCap, resultSkipped)
		out.Skipped = SkipOverCap
		return out, nil
	}

	typ, pri := anomalyPlan(a.Severity)
	hours := e.cfg.Durations.GeneralHours
	if typ == decision.TypeSpareReplacement {
		hours = e.cfg.Durations.SpareReplacementHours
	}
	var start *time.Time
	if w := schedule.FindIdleWindow(e.batches, schedule.Hours(hours), e.now()); w != nil {
		s := w.Start
		start = &s
	}

	wo, pos, err := e.createWorkOrder(ctx, workorder.Request{
		Source:         a.Source,
		Trigger:        workorder.TriggerAnomaly,
		AnomalyID:      a.ID,
		Severity:       a.Severity,
		Type:           typ,
		Priority:       pri,
		ScheduledTime:  start,
		EstimatedHours: hours,
		Instructions:   a.Description,
	})
	if errors.Is(err, workorder.ErrAlreadyProcessed) {
		e.skip(a, audit.ActionAnomalyDuplicate, SkipDuplicate, resultDuplicate)
		out.Skipped = SkipDuplicate
		return out, nil
	}
	if err != nil {
		return out, err
	}
	metrics.EventsProcessed.WithLabelValues(kindAnomaly, resultAccepted).Inc()
	out.WorkOrder, out.PurchaseOrders = wo, pos
	return out, nil
}

// anomalyPlan maps anomaly severity to the work it calls for. A high
// severity anomaly is assumed to have damaged parts.
func anomalyPlan(sev telemetry.Severity) (decision.MaintenanceType, decision.Priority) {
	switch sev {
	case telemetry.SeverityHigh:
		return decision.TypeSpareReplacement, decision.PriorityHigh
	case telemetry.SeverityMedium:
		return decision.TypeGeneral, decision.PriorityMedium
	}
	return decision.TypeGeneral, decision.PriorityLow
}

func (e *Engine) createWorkOrder(ctx context.Context, r workorder.Request) (*workorder.WorkOrder, []*workorder.PurchaseOrder, error) {
	wo, pos, err := e.orders.Create(ctx, r)
	if errors.Is(err, workorder.ErrAlreadyProcessed) {
		return nil, nil, err
	}
	if err != nil {
		e.logFn("engine: create work order for %s: %v", r.Source, err)
		return nil, nil, err
	}
	e.logFn("engine: work order %s for %s (%s, %s priority, %s)", wo.ID, wo.Source, wo.Type, wo.Priority, wo.Status)
	e.Audit.Append(audit.ActionWorkOrderCreated,
		fmt.Sprintf("%s for %s: %s, %s priority, status %s", wo.ID, wo.Source, wo.Type, wo.Priority, wo.Status), audit.ActorSystem)
	e.Events.Emit(Event{Type: EventWorkOrderCreated, Payload: WorkOrderCreatedEvent{WorkOrder: wo}})

	for _, po := range pos {
		e.Audit.Append(audit.ActionPurchaseOrderCreated,
			fmt.Sprintf("%s: %dx %s from %s for %s", po.ID, po.Quantity, po.PartName, po.Vendor, wo.ID), audit.ActorSystem)
		e.Events.Emit(Event{Type: EventPurchaseOrderCreated, Payload: PurchaseOrderCreatedEvent{PurchaseOrder: po, Reason: "shortfall"}})
	}

	e.sendNotifications(ctx, wo.NotificationsSent)
	e.refreshGauges()
	return wo, pos, nil
}

func (e *Engine) sendNotifications(ctx context.Context, recs []notify.Record) {
	if failed := e.dispatcher.Dispatch(ctx, recs); failed > 0 {
		metrics.NotificationFailures.Add(float64(failed))
	}
	for _, rec := range recs {
		e.Audit.Append(audit.ActionNotificationSent,
			fmt.Sprintf("%s to %s: %s", rec.WorkOrderID, rec.Role, rec.Message), audit.ActorSystem)
		e.Events.Emit(Event{Type: EventNotificationSent, Payload: NotificationSentEvent{Record: rec}})
	}
}

func (e *Engine) skip(a telemetry.Anomaly, action, reason, result string) {
	e.debugFn("engine: anomaly %s from %s skipped: %s", a.ID, a.Source, reason)
	e.Audit.Append(action, fmt.Sprintf("%s from %s (%s): %s", a.ID, a.Source, a.Severity, reason), audit.ActorSystem)
	e.Events.Emit(Event{Type: EventAnomalySkipped, Payload: AnomalySkippedEvent{Anomaly: a, Reason: reason}})
	metrics.EventsProcessed.WithLabelValues(kindAnomaly, result).Inc()
}

func (e *Engine) reject(kind string, err error) {
	e.logFn("engine: rejected %s: %v", kind, err)
	e.Audit.Append(audit.ActionInputRejected, fmt.Sprintf("%s: %v", kind, err), audit.ActorSystem)
	e.Events.Emit(Event{Type: EventInputRejected, Payload: InputRejectedEvent{Kind: kind, Detail: err.Error()}})
	metrics.EventsProcessed.WithLabelValues(kind, resultRejected).Inc()
}

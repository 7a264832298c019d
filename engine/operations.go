package engine

import (
	"context"
	"fmt"
	"sort"

	"maintcore/audit"
	"maintcore/decision"
	"maintcore/resources"
	"maintcore/telemetry"
	"maintcore/workorder"
)

// --- Operator transitions ---

func (e *Engine) StartWorkOrder(ctx context.Context, id, actor string) (*workorder.WorkOrder, error) {
	return e.transition(ctx, id, actor, e.orders.Start)
}

func (e *Engine) CompleteWorkOrder(ctx context.Context, id, actor string) (*workorder.WorkOrder, error) {
	return e.transition(ctx, id, actor, e.orders.Complete)
}

// ReleaseSpares moves a waiting-spares order on once its parts are in stock.
func (e *Engine) ReleaseSpares(ctx context.Context, id, actor string) (*workorder.WorkOrder, error) {
	return e.transition(ctx, id, actor, e.orders.ReleaseSpares)
}

func (e *Engine) transition(ctx context.Context, id, actor string,
	fn func(string) (*workorder.WorkOrder, workorder.Status, error)) (*workorder.WorkOrder, error) {
	var wo *workorder.WorkOrder
	var err error
	if serr := e.submit(ctx, func() {
		var from workorder.Status
		wo, from, err = fn(id)
		if err != nil {
			e.debugFn("engine: work order transition %s: %v", id, err)
			return
		}
		e.Audit.Append(audit.ActionWorkOrderStatus, fmt.Sprintf("%s: %s -> %s", wo.ID, from, wo.Status), actor)
		e.Events.Emit(Event{Type: EventWorkOrderStatusChanged, Payload: WorkOrderStatusChangedEvent{
			WorkOrder: wo, OldStatus: from, NewStatus: wo.Status, Actor: actor,
		}})
		e.refreshGauges()
	}); serr != nil {
		return nil, serr
	}
	return wo, err
}

// AdvancePurchaseOrder moves a purchase order forward. Receiving it credits
// inventory; waiting orders it now covers are reported, not released.
func (e *Engine) AdvancePurchaseOrder(ctx context.Context, id string, to workorder.POStatus, actor string) (*workorder.PurchaseOrder, error) {
	var po *workorder.PurchaseOrder
	var err error
	if serr := e.submit(ctx, func() {
		var from workorder.POStatus
		po, from, err = e.orders.AdvancePurchaseOrder(id, to)
		if err != nil {
			e.debugFn("engine: purchase order %s: %v", id, err)
			return
		}
		e.Audit.Append(audit.ActionPurchaseOrderStatus, fmt.Sprintf("%s: %s -> %s", po.ID, from, po.Status), actor)
		e.Events.Emit(Event{Type: EventPurchaseOrderStatusChanged, Payload: PurchaseOrderStatusChangedEvent{
			PurchaseOrder: po, OldStatus: from, NewStatus: po.Status, Actor: actor,
		}})
		if po.Status == workorder.POReceived {
			if ids := e.orders.CoveredWaiting(); len(ids) > 0 {
				e.logFn("engine: %s received; spares now cover %v", po.ID, ids)
			}
		}
	}); serr != nil {
		return nil, serr
	}
	return po, err
}

// Replenish raises purchase orders for parts below minimum stock.
func (e *Engine) Replenish(ctx context.Context, actor string) ([]*workorder.PurchaseOrder, error) {
	var pos []*workorder.PurchaseOrder
	err := e.submit(ctx, func() {
		pos = e.orders.AutoReplenish()
		for _, po := range pos {
			e.Audit.Append(audit.ActionPurchaseOrderCreated,
				fmt.Sprintf("%s: %dx %s from %s (%s)", po.ID, po.Quantity, po.PartName, po.Vendor, po.WorkOrderID), actor)
			e.Events.Emit(Event{Type: EventPurchaseOrderCreated, Payload: PurchaseOrderCreatedEvent{PurchaseOrder: po, Reason: "replenish"}})
		}
	})
	return pos, err
}

// PredictRUL is stateless and does not touch the loop.
func (e *Engine) PredictRUL(in decision.RULInput) decision.RULPrediction {
	return decision.PredictRUL(in, e.cfg.Detection, e.now())
}

// --- Reads. Each returns copies taken on the loop. ---

func read[T any](ctx context.Context, e *Engine, fn func() T) (T, error) {
	var v T
	err := e.submit(ctx, func() { v = fn() })
	return v, err
}

// Decisions returns the latest decision per component, by name.
func (e *Engine) Decisions(ctx context.Context) ([]decision.Decision, error) {
	return read(ctx, e, func() []decision.Decision {
		out := make([]decision.Decision, 0, len(e.decisions))
		for _, d := range e.decisions {
			out = append(out, d)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ComponentName < out[j].ComponentName })
		return out
	})
}

// Components returns the last accepted observation per component, by name.
func (e *Engine) Components(ctx context.Context) ([]telemetry.ComponentHealth, error) {
	return read(ctx, e, func() []telemetry.ComponentHealth {
		out := make([]telemetry.ComponentHealth, 0, len(e.components))
		for _, c := range e.components {
			out = append(out, c)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out
	})
}

func (e *Engine) WorkOrders(ctx context.Context) ([]*workorder.WorkOrder, error) {
	return read(ctx, e, e.orders.List)
}

func (e *Engine) WorkOrder(ctx context.Context, id string) (*workorder.WorkOrder, error) {
	var wo *workorder.WorkOrder
	var err error
	if serr := e.submit(ctx, func() { wo, err = e.orders.Get(id) }); serr != nil {
		return nil, serr
	}
	return wo, err
}

func (e *Engine) PurchaseOrders(ctx context.Context) ([]*workorder.PurchaseOrder, error) {
	return read(ctx, e, e.orders.PurchaseOrders)
}

func (e *Engine) Technicians(ctx context.Context) ([]resources.Technician, error) {
	return read(ctx, e, e.pool.List)
}

func (e *Engine) Spares(ctx context.Context) ([]resources.SparePart, error) {
	return read(ctx, e, e.inv.List)
}

func (e *Engine) Schedule(ctx context.Context) ([]telemetry.ScheduledBatch, error) {
	return read(ctx, e, func() []telemetry.ScheduledBatch {
		return append([]telemetry.ScheduledBatch(nil), e.batches...)
	})
}

// CoveredWaiting lists waiting-spares orders that ReleaseSpares would accept.
func (e *Engine) CoveredWaiting(ctx context.Context) ([]string, error) {
	return read(ctx, e, e.orders.CoveredWaiting)
}

// AuditEntries reads the audit log directly; it has its own lock.
func (e *Engine) AuditEntries(limit int) []audit.Entry {
	return e.Audit.Entries(limit)
}

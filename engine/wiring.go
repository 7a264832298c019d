package engine

import (
	"maintcore/metrics"
	"maintcore/telemetry"
	"maintcore/workorder"
)

func (e *Engine) wireEventHandlers() {
	// Decisions: records sink
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(DecisionRecordedEvent)
		metrics.DecisionsRecorded.WithLabelValues(string(ev.Decision.Type), string(ev.Decision.Priority)).Inc()
		if err := e.recorder.UpsertDecision(ev.Decision); err != nil {
			e.logFn("engine: record decision for %s: %v", ev.Decision.ComponentName, err)
		}
	}, EventDecisionRecorded)

	// New work orders: records sink + outbound record
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(WorkOrderCreatedEvent)
		metrics.WorkOrdersCreated.WithLabelValues(string(ev.WorkOrder.Trigger), string(ev.WorkOrder.Status)).Inc()
		e.saveWorkOrder(ev.WorkOrder)
		e.publish(telemetry.TypeWorkOrderCreated, ev.WorkOrder)
	}, EventWorkOrderCreated)

	// Status changes: records sink
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(WorkOrderStatusChangedEvent)
		metrics.WorkOrderTransitions.WithLabelValues(string(ev.OldStatus), string(ev.NewStatus)).Inc()
		e.logFn("engine: work order %s %s -> %s by %s", ev.WorkOrder.ID, ev.OldStatus, ev.NewStatus, ev.Actor)
		e.saveWorkOrder(ev.WorkOrder)
	}, EventWorkOrderStatusChanged)

	// Purchase orders: records sink + outbound record
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(PurchaseOrderCreatedEvent)
		metrics.PurchaseOrdersCreated.WithLabelValues(ev.Reason).Inc()
		e.savePurchaseOrder(ev.PurchaseOrder)
		e.publish(telemetry.TypePurchaseOrderCreated, ev.PurchaseOrder)
	}, EventPurchaseOrderCreated)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(PurchaseOrderStatusChangedEvent)
		e.logFn("engine: purchase order %s %s -> %s by %s", ev.PurchaseOrder.ID, ev.OldStatus, ev.NewStatus, ev.Actor)
		e.savePurchaseOrder(ev.PurchaseOrder)
	}, EventPurchaseOrderStatusChanged)

	// Notifications are stored by the record sink; only publish here
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(NotificationSentEvent)
		metrics.NotificationsSent.WithLabelValues(string(ev.Record.Role)).Inc()
		e.publish(telemetry.TypeNotification, ev.Record)
	}, EventNotificationSent)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		e.logFn("engine: %s", ev.Detail)
	}, EventMessagingConnected, EventMessagingDisconnected)
}

func (e *Engine) saveWorkOrder(wo *workorder.WorkOrder) {
	if err := e.recorder.SaveWorkOrder(wo); err != nil {
		e.logFn("engine: record work order %s: %v", wo.ID, err)
	}
}

func (e *Engine) savePurchaseOrder(po *workorder.PurchaseOrder) {
	if err := e.recorder.SavePurchaseOrder(po); err != nil {
		e.logFn("engine: record purchase order %s: %v", po.ID, err)
	}
}

// publish enqueues an outbound record on the outbox. Nothing is queued
// when no records topic is configured.
func (e *Engine) publish(msgType string, payload any) {
	topic := e.cfg.Messaging.RecordsTopic
	if topic == "" {
		return
	}
	station := e.cfg.Messaging.StationID
	env, err := telemetry.NewEnvelope(msgType,
		telemetry.Address{Role: telemetry.RoleCore, Station: station},
		telemetry.Address{Role: telemetry.RoleGateway},
		payload)
	if err != nil {
		e.logFn("engine: build %s envelope: %v", msgType, err)
		return
	}
	data, err := env.Encode()
	if err != nil {
		e.logFn("engine: encode %s envelope: %v", msgType, err)
		return
	}
	if err := e.recorder.EnqueueOutbox(topic, data, msgType, station); err != nil {
		e.logFn("engine: enqueue %s: %v", msgType, err)
	}
}

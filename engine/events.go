package engine

import (
	"maintcore/decision"
	"maintcore/detect"
	"maintcore/notify"
	"maintcore/telemetry"
	"maintcore/workorder"
)

const (
	EventDecisionRecorded EventType = iota + 1
	EventWorkOrderCreated
	EventWorkOrderStatusChanged
	EventPurchaseOrderCreated
	EventPurchaseOrderStatusChanged
	EventNotificationSent
	EventAnomalySkipped
	EventInputRejected
	EventDriftDetected
	EventMessagingConnected
	EventMessagingDisconnected
)

// --- Event payloads ---

type DecisionRecordedEvent struct {
	Decision decision.Decision
}

type WorkOrderCreatedEvent struct {
	WorkOrder *workorder.WorkOrder
}

type WorkOrderStatusChangedEvent struct {
	WorkOrder *workorder.WorkOrder
	OldStatus workorder.Status
	NewStatus workorder.Status
	Actor     string
}

type PurchaseOrderCreatedEvent struct {
	PurchaseOrder *workorder.PurchaseOrder
	Reason        string // "shortfall", "replenish"
}

type PurchaseOrderStatusChangedEvent struct {
	PurchaseOrder *workorder.PurchaseOrder
	OldStatus     workorder.POStatus
	NewStatus     workorder.POStatus
	Actor         string
}

type NotificationSentEvent struct {
	Record notify.Record
}

type AnomalySkippedEvent struct {
	Anomaly telemetry.Anomaly
	Reason  string // "duplicate", "over cap"
}

type InputRejectedEvent struct {
	Kind   string
	Detail string
}

type DriftDetectedEvent struct {
	Drift detect.Drift
}

type ConnectionEvent struct {
	Detail string
}

var eventNames = map[EventType]string{
	EventDecisionRecorded:           "decision-recorded",
	EventWorkOrderCreated:           "work-order-created",
	EventWorkOrderStatusChanged:     "work-order-status",
	EventPurchaseOrderCreated:       "purchase-order-created",
	EventPurchaseOrderStatusChanged: "purchase-order-status",
	EventNotificationSent:           "notification",
	EventAnomalySkipped:             "anomaly-skipped",
	EventInputRejected:              "input-rejected",
	EventDriftDetected:              "drift",
	EventMessagingConnected:         "messaging-connected",
	EventMessagingDisconnected:      "messaging-disconnected",
}

// String is the SSE event name.
func (t EventType) String() string {
	if n, ok := eventNames[t]; ok {
		return n
	}
	return "unknown"
}

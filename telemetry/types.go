package telemetry

// Message type constants carried on the telemetry topic.
const (
	TypeHealthUpdate   = "health.update"
	TypeAnomalyReport  = "anomaly.report"
	TypeSensorSamples  = "sensor.samples"
	TypeProcessSignals = "process.signals"
	TypeScheduleUpdate = "schedule.update"

	// Outbound records published for presentation layers.
	TypeWorkOrderCreated     = "workorder.created"
	TypePurchaseOrderCreated = "purchaseorder.created"
	TypeNotification         = "notification"
)

// Roles for Address.Role.
const (
	RoleGateway = "gateway"
	RoleCore    = "core"
)

// Protocol version.
const Version = 1

package telemetry

import (
	"encoding/json"
	"log"
)

// FilterFunc returns true if the message should be processed.
type FilterFunc func(hdr *RawHeader) bool

// MessageHandler defines callbacks for every inbound telemetry message type.
// Embed NoOpHandler and override only the methods you need.
type MessageHandler interface {
	HandleHealthUpdate(env *Envelope, p *HealthUpdate)
	HandleAnomalyReport(env *Envelope, p *AnomalyReport)
	HandleSensorBatch(env *Envelope, p *SensorBatch)
	HandleSignalBatch(env *Envelope, p *SignalBatch)
	HandleScheduleUpdate(env *Envelope, p *ScheduleUpdate)
}

// Ingestor performs two-phase decode and dispatches to a MessageHandler.
type Ingestor struct {
	handler MessageHandler
	filter  FilterFunc
}

func NewIngestor(handler MessageHandler, filter FilterFunc) *Ingestor {
	return &Ingestor{
		handler: handler,
		filter:  filter,
	}
}

// HandleRaw is the entry point for raw message bytes from the messaging layer.
func (ing *Ingestor) HandleRaw(data []byte) {
	// Phase 1: decode routing header only
	var hdr RawHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		log.Printf("telemetry: header decode error: %v", err)
		return
	}

	if IsExpiredHeader(&hdr) {
		log.Printf("telemetry: dropping expired message %s (type=%s)", hdr.ID, hdr.Type)
		return
	}

	if ing.filter != nil && !ing.filter(&hdr) {
		return
	}

	// Phase 2: full envelope decode
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("telemetry: envelope decode error: %v", err)
		return
	}

	switch env.Type {
	case TypeHealthUpdate:
		decodeAndCall(ing.handler.HandleHealthUpdate, &env)
	case TypeAnomalyReport:
		decodeAndCall(ing.handler.HandleAnomalyReport, &env)
	case TypeSensorSamples:
		decodeAndCall(ing.handler.HandleSensorBatch, &env)
	case TypeProcessSignals:
		decodeAndCall(ing.handler.HandleSignalBatch, &env)
	case TypeScheduleUpdate:
		decodeAndCall(ing.handler.HandleScheduleUpdate, &env)
	default:
		log.Printf("telemetry: unknown message type: %s", env.Type)
	}
}

func decodeAndCall[T any](fn func(*Envelope, *T), env *Envelope) {
	var p T
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		log.Printf("telemetry: payload decode error for %s: %v", env.Type, err)
		return
	}
	fn(env, &p)
}

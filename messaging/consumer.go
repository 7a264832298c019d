package messaging

import (
	"maintcore/telemetry"
)

// Subscriber is the part of Client the consumer needs.
type Subscriber interface {
	Subscribe(topic string, handler MessageHandler) error
}

// Consumer subscribes to the telemetry topic and feeds every message to the
// ingestor, which decodes envelopes and routes them by type.
type Consumer struct {
	client   Subscriber
	topic    string
	ingestor *telemetry.Ingestor
}

func NewConsumer(client Subscriber, topic string, handler telemetry.MessageHandler, filter telemetry.FilterFunc) *Consumer {
	return &Consumer{
		client:   client,
		topic:    topic,
		ingestor: telemetry.NewIngestor(handler, filter),
	}
}

func (c *Consumer) Start() error {
	return c.client.Subscribe(c.topic, c.handleMessage)
}

func (c *Consumer) handleMessage(_ string, payload []byte) {
	c.ingestor.HandleRaw(payload)
}

// StationFilter accepts messages addressed to stationID, broadcast ("*"), or
// unaddressed.
func StationFilter(stationID string) telemetry.FilterFunc {
	return func(hdr *telemetry.RawHeader) bool {
		return hdr.Dst.Station == "" || hdr.Dst.Station == "*" || hdr.Dst.Station == stationID
	}
}

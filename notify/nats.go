package notify

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes each record as JSON on <prefix>.<role>.
type NATSSink struct {
	Conn   *nats.Conn
	Prefix string
}

func NewNATSSink(url, prefix string) (*NATSSink, error) {
	conn, err := nats.Connect(url, nats.Name("maintcore-notify"))
	if err != nil {
		return nil, err
	}
	return &NATSSink{Conn: conn, Prefix: prefix}, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Subject(role Role) string {
	return s.Prefix + "." + string(role)
}

func (s *NATSSink) Send(_ context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.Conn.Publish(s.Subject(rec.Role), data)
}

func (s *NATSSink) Close() {
	if s.Conn != nil {
		s.Conn.Drain()
		s.Conn.Close()
	}
}

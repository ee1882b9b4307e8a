package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ai776/daily-picks/internal/logger"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink forwards events as JSON to "<subject>.<kind>".
type NATSSink struct {
	conn    publisher
	nc      *nats.Conn
	subject string
	logger  *logger.Logger
}

func NewNATSSink(url, subject string, log *logger.Logger) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("daily-picks"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	log.Info("nats sink connected", "url", url, "subject", subject)
	return &NATSSink{conn: nc, nc: nc, subject: subject, logger: log}, nil
}

func (s *NATSSink) Subject(k Kind) string {
	return s.subject + "." + string(k)
}

func (s *NATSSink) Handle(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("failed to encode event", "kind", e.Kind, "error", err)
		return
	}
	if err := s.conn.Publish(s.Subject(e.Kind), data); err != nil {
		s.logger.Warn("failed to publish event", "kind", e.Kind, "error", err)
	}
}

// Close flushes pending messages and closes the connection.
func (s *NATSSink) Close() {
	if s.nc == nil {
		return
	}
	if err := s.nc.Drain(); err != nil {
		s.logger.Warn("nats drain failed", "error", err)
		s.nc.Close()
	}
}

package progress

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is the subset of *nats.Conn used to emit progress events.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSReporter publishes progress events as JSON to "<prefix>.<analysis id>"
// so a UI process can follow a long parse without sharing memory with it.
type NATSReporter struct {
	pub    Publisher
	conn   *nats.Conn
	prefix string
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Name          string
}

// DialNATS connects to the NATS server and returns a reporter bound to it.
func DialNATS(cfg NATSConfig) (*NATSReporter, error) {
	name := cfg.Name
	if name == "" {
		name = "pairing_analyzer"
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	r := NewNATSReporter(conn, cfg.SubjectPrefix)
	r.conn = conn
	return r, nil
}

// NewNATSReporter wraps an existing publisher (usually a *nats.Conn).
func NewNATSReporter(pub Publisher, prefix string) *NATSReporter {
	if prefix == "" {
		prefix = "pairings.progress"
	}
	return &NATSReporter{pub: pub, prefix: prefix}
}

// Subject returns the subject used for an analysis.
func (r *NATSReporter) Subject(analysisID string) string {
	return r.prefix + "." + analysisID
}

// Reporter returns a Func publishing updates for one analysis.
// Publish failures are passed to onErr (which may be nil) and never interrupt the parse.
func (r *NATSReporter) Reporter(analysisID string, onErr func(error)) Func {
	subject := r.Subject(analysisID)
	return func(p int, msg string) {
		data, err := json.Marshal(Event{Progress: p, Message: msg})
		if err == nil {
			err = r.pub.Publish(subject, data)
		}
		if err != nil && onErr != nil {
			onErr(err)
		}
	}
}

// Close drains and closes the underlying connection when DialNATS created it.
func (r *NATSReporter) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Drain()
}

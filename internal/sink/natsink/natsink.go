// Package natsink publishes reports to NATS as JSON, one message per report.
package natsink

import (
	"CommSpectra/internal/config"
	"CommSpectra/internal/factory"
	"CommSpectra/internal/model"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/nats-io/nats.go"
)

// RunIDHeader carries the id of the process run that produced a report.
const RunIDHeader = "Run-Id"

const defaultSubject = "commspectra.reports"

func init() {
	factory.RegisterSink("nats", func(def config.SinkDef, runID string) (model.Sink, error) {
		return NewSink(def.NATS, runID)
	})
}

// Sink publishes every report on <subject>.<category>.
type Sink struct {
	nc      *nats.Conn
	subject string
	runID   string
}

// NewSink connects to the NATS server.
func NewSink(cfg config.NATSConfig, runID string) (*Sink, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("cs-recv "+runID))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	subject := cfg.Subject
	if subject == "" {
		subject = defaultSubject
	}
	return &Sink{nc: nc, subject: subject, runID: runID}, nil
}

func (s *Sink) Emit(r model.Report) error {
	msg, err := newMsg(s.subject, s.runID, r)
	if err != nil {
		return err
	}
	return s.nc.PublishMsg(msg)
}

// Close drains and closes the NATS connection.
func (s *Sink) Close() error {
	if s.nc == nil {
		return nil
	}
	err := s.nc.Drain()
	log.Println("NATS connection drained and closed.")
	return err
}

// subjectFor appends the lowercase category, e.g. "reports.late".
func subjectFor(base string, c model.Category) string {
	return base + "." + strings.ToLower(string(c))
}

func newMsg(base, runID string, r model.Report) (*nats.Msg, error) {
	data, err := json.Marshal(r.Doc())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	msg := nats.NewMsg(subjectFor(base, r.Category))
	msg.Data = data
	msg.Header.Set(RunIDHeader, runID)
	return msg, nil
}

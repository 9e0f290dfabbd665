package natsink

import (
	"CommSpectra/internal/model"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// ReportHandler processes one received report and the run that produced it.
type ReportHandler func(runID string, doc model.ReportDoc)

// Subscriber follows the reports published by a Sink.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber connects to the NATS server. subject is the sink's base
// subject; all categories below it are followed.
func NewSubscriber(url, subject string) (*Subscriber, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	log.Printf("Connected to NATS server at %s", url)
	if subject == "" {
		subject = defaultSubject
	}
	return &Subscriber{nc: nc, subject: subject + ".>"}, nil
}

// Start subscribes and hands every decoded report to handler.
func (s *Subscriber) Start(handler ReportHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		runID, doc, err := decodeMsg(msg)
		if err != nil {
			log.Printf("Error decoding report: %v", err)
			return
		}
		handler(runID, doc)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	log.Printf("Subscribed to '%s'. Waiting for reports...", s.subject)
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
}

func decodeMsg(msg *nats.Msg) (string, model.ReportDoc, error) {
	var doc model.ReportDoc
	if err := json.Unmarshal(msg.Data, &doc); err != nil {
		return "", doc, fmt.Errorf("failed to unmarshal report on %s: %w", msg.Subject, err)
	}
	return msg.Header.Get(RunIDHeader), doc, nil
}

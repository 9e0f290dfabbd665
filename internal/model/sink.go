package model

// Sink defines a generic interface for delivering reports to an observer.
type Sink interface {
	// Emit delivers a single report. Implementations may buffer.
	Emit(report Report) error

	// Close flushes anything buffered and releases the sink's resources.
	Close() error
}

// Notifier defines a generic interface for sending notifications.
type Notifier interface {
	Send(subject, body string) error
}

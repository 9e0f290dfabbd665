// Package text writes one line per report, to stdout or a file.
package text

import (
	"CommSpectra/internal/config"
	"CommSpectra/internal/factory"
	"CommSpectra/internal/model"
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

func init() {
	factory.RegisterSink("text", func(def config.SinkDef, _ string) (model.Sink, error) {
		if def.Text.Path == "" {
			log.Println("Text sink writing to stdout")
			return NewSink(os.Stdout), nil
		}
		if err := os.MkdirAll(filepath.Dir(def.Text.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
		file, err := os.Create(def.Text.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create report file '%s': %w", def.Text.Path, err)
		}
		log.Printf("Text sink writing to %s", def.Text.Path)
		return newSink(file, file), nil
	})
}

// Sink writes report lines as they arrive.
type Sink struct {
	w      *bufio.Writer
	closer io.Closer
	lines  int
}

// NewSink creates a sink writing to w. Close does not close w.
func NewSink(w io.Writer) *Sink {
	return newSink(w, nil)
}

func newSink(w io.Writer, closer io.Closer) *Sink {
	return &Sink{w: bufio.NewWriter(w), closer: closer}
}

// Emit writes the report line and flushes it so output is live.
func (s *Sink) Emit(r model.Report) error {
	if _, err := s.w.WriteString(r.Line() + "\n"); err != nil {
		return fmt.Errorf("failed to write report line: %w", err)
	}
	s.lines++
	return s.w.Flush()
}

func (s *Sink) Close() error {
	err := s.w.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	log.Printf("Text sink wrote %d lines.", s.lines)
	return err
}

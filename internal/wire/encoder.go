package wire

import (
	"fmt"
	"io"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Encoder writes a framed event stream. The header is written with the
// first frame; each frame is a single Write call.
type Encoder[R any] struct {
	w      io.Writer
	codec  RecordCodec[R]
	header bool
	body   []byte
	out    []byte
}

// NewEncoder creates an encoder writing to w.
func NewEncoder[R any](w io.Writer, codec RecordCodec[R]) *Encoder[R] {
	return &Encoder[R]{w: w, codec: codec}
}

// WriteMessages writes a batch of records at logical time t.
func (e *Encoder[R]) WriteMessages(t time.Duration, recs ...R) error {
	if t < 0 {
		return fmt.Errorf("negative frame time %s", t)
	}
	body := appendVarintField(e.body[:0], 1, uint64(MessagesFrame))
	body = appendVarintField(body, 2, uint64(t))
	var rec []byte
	for _, r := range recs {
		var err error
		rec, err = e.codec.AppendRecord(rec[:0], r)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		body = appendMessageField(body, 3, rec)
	}
	e.body = body
	return e.writeFrame(body)
}

// WriteProgress writes a frontier change.
func (e *Encoder[R]) WriteProgress(updates ...ProgressUpdate) error {
	body := appendVarintField(e.body[:0], 1, uint64(ProgressFrame))
	for _, pu := range updates {
		var err error
		body, err = appendProgress(body, pu)
		if err != nil {
			return fmt.Errorf("failed to encode progress: %w", err)
		}
	}
	e.body = body
	return e.writeFrame(body)
}

func (e *Encoder[R]) writeFrame(body []byte) error {
	out := e.out[:0]
	if !e.header {
		out = AppendHeader(out, e.codec.Stream())
	}
	out = protowire.AppendVarint(out, uint64(len(body)))
	out = append(out, body...)
	e.out = out

	if _, err := e.w.Write(out); err != nil {
		return err
	}
	e.header = true
	return nil
}

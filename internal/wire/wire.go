// Package wire implements the versioned framing instrumented workers use to
// ship their event logs.
//
// A stream starts with a fixed header (magic, version, stream kind) followed
// by length-prefixed frames. The length is a uvarint and the frame body is a
// protobuf wire-format message:
//
//	Frame    { 1: kind varint, 2: time varint ns, 3: record bytes (repeated), 4: progress bytes (repeated) }
//	Progress { 1: time varint ns, 2: delta zigzag }
//
// Record bodies depend on the stream kind; see compute.go and comm.go.
package wire

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Magic opens every stream.
const Magic = "CSEV"

// Version is the framing version this package reads and writes.
const Version byte = 1

// HeaderLen is the size of the stream header in bytes.
const HeaderLen = len(Magic) + 2

// StreamKind distinguishes the two kinds of event streams.
type StreamKind byte

const (
	ComputeStream StreamKind = 1
	CommStream    StreamKind = 2
)

func (k StreamKind) String() string {
	switch k {
	case ComputeStream:
		return "computation"
	case CommStream:
		return "communication"
	}
	return fmt.Sprintf("stream(%d)", byte(k))
}

// FrameKind distinguishes data frames from progress frames.
type FrameKind uint64

const (
	// MessagesFrame carries a batch of records at one logical time.
	MessagesFrame FrameKind = 1
	// ProgressFrame carries changes to the sender's frontier.
	ProgressFrame FrameKind = 2
)

// ProgressUpdate adds Delta to the multiplicity of Time in the sender's frontier.
type ProgressUpdate struct {
	Time  time.Duration
	Delta int64
}

// Frame is one decoded frame.
type Frame[R any] struct {
	Kind     FrameKind
	Time     time.Duration
	Records  []R
	Progress []ProgressUpdate
}

// RecordCodec encodes and decodes the records of one stream kind.
type RecordCodec[R any] interface {
	Stream() StreamKind
	AppendRecord(b []byte, rec R) ([]byte, error)
	ParseRecord(b []byte) (R, error)
}

// ErrTruncated is reported when a stream ends in the middle of a frame.
var ErrTruncated = errors.New("stream ended inside a frame")

// DecodeError reports malformed framing. It is never recoverable for the
// stream it came from: the decoder refuses any further input.
type DecodeError struct {
	Stream StreamKind
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s stream at offset %d: %v", e.Stream, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// AppendHeader appends the stream header for kind to b.
func AppendHeader(b []byte, kind StreamKind) []byte {
	b = append(b, Magic...)
	return append(b, Version, byte(kind))
}

func checkHeader(h []byte, want StreamKind) error {
	if string(h[:len(Magic)]) != Magic {
		return fmt.Errorf("bad magic %q", h[:len(Magic)])
	}
	if v := h[len(Magic)]; v != Version {
		return fmt.Errorf("unsupported framing version %d", v)
	}
	if k := StreamKind(h[len(Magic)+1]); k != want {
		return fmt.Errorf("got %s stream, want %s", k, want)
	}
	return nil
}

func parseFrame[R any](codec RecordCodec[R], b []byte) (Frame[R], error) {
	var fr Frame[R]
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			k, err := f.varint()
			fr.Kind = FrameKind(k)
			return err
		case 2:
			t, err := f.duration()
			fr.Time = t
			return err
		case 3:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			rec, err := codec.ParseRecord(raw)
			if err != nil {
				return fmt.Errorf("record %d: %w", len(fr.Records), err)
			}
			fr.Records = append(fr.Records, rec)
		case 4:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			pu, err := parseProgress(raw)
			if err != nil {
				return err
			}
			fr.Progress = append(fr.Progress, pu)
		}
		return nil
	})
	if err != nil {
		return fr, err
	}
	switch fr.Kind {
	case MessagesFrame:
		if len(fr.Progress) > 0 {
			return fr, errors.New("messages frame carries progress updates")
		}
	case ProgressFrame:
		if len(fr.Records) > 0 {
			return fr, errors.New("progress frame carries records")
		}
	default:
		return fr, fmt.Errorf("unknown frame kind %d", fr.Kind)
	}
	return fr, nil
}

func parseProgress(b []byte) (ProgressUpdate, error) {
	var pu ProgressUpdate
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			t, err := f.duration()
			pu.Time = t
			return err
		case 2:
			v, err := f.varint()
			pu.Delta = protowire.DecodeZigZag(v)
			return err
		}
		return nil
	})
	return pu, err
}

func appendProgress(b []byte, pu ProgressUpdate) ([]byte, error) {
	if pu.Time < 0 {
		return b, fmt.Errorf("negative progress time %s", pu.Time)
	}
	var inner []byte
	inner = appendVarintField(inner, 1, uint64(pu.Time))
	inner = appendVarintField(inner, 2, protowire.EncodeZigZag(pu.Delta))
	return appendMessageField(b, 4, inner), nil
}

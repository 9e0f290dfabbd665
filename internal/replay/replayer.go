// Package replay turns the raw byte streams of worker connections back into
// ordered event records.
package replay

import (
	"context"
	"fmt"
	"log"
	"math"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"CommSpectra/internal/metrics"
	"CommSpectra/internal/wire"
)

// Options configures a Replayer.
type Options struct {
	Stream           string // metrics and log label
	Worker           int
	PollInterval     time.Duration
	ReadTimeout      time.Duration
	ReadBufferSize   int
	MaxFrameSize     int
	MaxFramesPerPoll int
}

// source is one owned connection and its decoding state.
type source[R any] struct {
	id       int
	conn     *PollConn
	dec      *wire.Decoder[R]
	frontier map[time.Duration]int64
	done     bool
}

// Replayer polls a worker's connections round-robin and emits their records
// in per-connection order. It is driven by a single goroutine.
type Replayer[R any] struct {
	opts    Options
	sources []*source[R]

	// lowest time any live connection may still produce; -1 once none remain
	frontier atomic.Int64
}

// New creates a replayer owning conns. The replayer closes them when Run returns.
func New[R any](codec wire.RecordCodec[R], conns []net.Conn, opts Options) *Replayer[R] {
	r := &Replayer[R]{opts: opts}
	for i, c := range conns {
		r.sources = append(r.sources, &source[R]{
			id:   i,
			conn: NewPollConn(c, opts.ReadBufferSize, opts.ReadTimeout),
			dec:  wire.NewDecoder(codec, opts.MaxFrameSize),
			// A stream starts able to produce any time.
			frontier: map[time.Duration]int64{0: 1},
		})
	}
	r.updateFrontier()
	return r
}

// Frontier returns the lowest logical time the replayer's connections may
// still produce. ok is false once every connection has finished.
func (r *Replayer[R]) Frontier() (t time.Duration, ok bool) {
	v := r.frontier.Load()
	if v < 0 {
		return 0, false
	}
	return time.Duration(v), true
}

// Run replays until every connection has closed, a connection fails, or ctx
// is cancelled. emit is called for each record in order; an emit error stops
// the replay.
func (r *Replayer[R]) Run(ctx context.Context, emit func(R) error) error {
	defer func() {
		for _, s := range r.sources {
			s.conn.Close()
		}
	}()

	open := metrics.OpenConnections.WithLabelValues(r.opts.Stream)
	live := len(r.sources)
	open.Add(float64(live))
	defer func() { open.Sub(float64(live)) }()

	for live > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		progressed := false
		for _, s := range r.sources {
			if s.done {
				continue
			}

			state, data := s.conn.Poll()
			metrics.PollOutcomes.WithLabelValues(r.opts.Stream, state.String()).Inc()
			switch state {
			case DataAvailable:
				metrics.BytesRead.WithLabelValues(r.opts.Stream).Add(float64(len(data)))
				s.dec.Feed(data)
				progressed = true
			case Errored:
				return fmt.Errorf("failed to read %s connection %d from %s: %w", r.opts.Stream, s.id, s.conn.RemoteAddr(), s.conn.Err())
			}

			limit := r.opts.MaxFramesPerPoll
			if state == Closed {
				limit = -1
			}
			n, err := r.drain(s, limit, emit)
			if err != nil {
				return err
			}
			if n > 0 {
				progressed = true
			}

			if state == Closed {
				if err := s.dec.Finish(); err != nil {
					return fmt.Errorf("%s connection %d: %w", r.opts.Stream, s.id, err)
				}
				s.done = true
				s.frontier = nil
				live--
				open.Dec()
				r.updateFrontier()
				if t, ok := r.Frontier(); ok {
					log.Printf("Worker %d: %s connection %d closed, frontier at %s.", r.opts.Worker, r.opts.Stream, s.id, t)
				} else {
					log.Printf("Worker %d: %s connection %d closed, all connections finished.", r.opts.Worker, r.opts.Stream, s.id)
				}
			}
		}

		if !progressed {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.opts.PollInterval):
			}
		}
	}
	return nil
}

// drain decodes at most limit buffered frames (all of them if limit < 0).
func (r *Replayer[R]) drain(s *source[R], limit int, emit func(R) error) (int, error) {
	n := 0
	for limit < 0 || n < limit {
		fr, ok, err := s.dec.Next()
		if err != nil {
			return n, fmt.Errorf("%s connection %d: %w", r.opts.Stream, s.id, err)
		}
		if !ok {
			break
		}
		n++

		switch fr.Kind {
		case wire.MessagesFrame:
			metrics.FramesDecoded.WithLabelValues(r.opts.Stream, "messages").Inc()
			for _, rec := range fr.Records {
				if err := emit(rec); err != nil {
					return n, err
				}
			}
			metrics.RecordsReplayed.WithLabelValues(r.opts.Stream).Add(float64(len(fr.Records)))
		case wire.ProgressFrame:
			metrics.FramesDecoded.WithLabelValues(r.opts.Stream, "progress").Inc()
			for _, pu := range fr.Progress {
				s.frontier[pu.Time] += pu.Delta
				if s.frontier[pu.Time] == 0 {
					delete(s.frontier, pu.Time)
				}
			}
			r.updateFrontier()
		}
	}
	return n, nil
}

func (r *Replayer[R]) updateFrontier() {
	low := time.Duration(math.MaxInt64)
	found := false
	for _, s := range r.sources {
		for t, c := range s.frontier {
			if c > 0 && t < low {
				low, found = t, true
			}
		}
	}

	gauge := metrics.ReplayFrontier.WithLabelValues(r.opts.Stream, strconv.Itoa(r.opts.Worker))
	if !found {
		r.frontier.Store(-1)
		gauge.Set(-1)
		return
	}
	r.frontier.Store(int64(low))
	gauge.Set(low.Seconds())
}

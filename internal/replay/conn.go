package replay

import (
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// State is the outcome of one poll of a connection.
type State int

const (
	// Idle means no data arrived before the read deadline. Not an error.
	Idle State = iota
	// DataAvailable means Poll returned fresh bytes.
	DataAvailable
	// Closed means the peer closed the stream in an orderly way.
	Closed
	// Errored means the read failed; Err holds the cause.
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case DataAvailable:
		return "data"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	}
	return "unknown"
}

// PollConn turns a blocking net.Conn into one that can be polled: every read
// is bounded by a short deadline, and an expired deadline reads as Idle.
// Closed and Errored are terminal.
type PollConn struct {
	conn    net.Conn
	buf     []byte
	timeout time.Duration

	state State // terminal state, once reached
	err   error
}

// NewPollConn wraps conn. Reads use a buffer of bufSize bytes and wait at
// most timeout for data.
func NewPollConn(conn net.Conn, bufSize int, timeout time.Duration) *PollConn {
	return &PollConn{conn: conn, buf: make([]byte, bufSize), timeout: timeout, state: Idle}
}

// Poll performs a single bounded read. With DataAvailable the returned slice
// holds the bytes read; it is only valid until the next call.
func (c *PollConn) Poll() (State, []byte) {
	if c.state == Closed || c.state == Errored {
		return c.state, nil
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		c.state, c.err = Errored, err
		return c.state, nil
	}

	n, err := c.conn.Read(c.buf)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrDeadlineExceeded):
		case errors.Is(err, io.EOF):
			c.state = Closed
		default:
			c.state, c.err = Errored, err
		}
	}
	if n > 0 {
		// Any terminal state is reported on the next poll.
		return DataAvailable, c.buf[:n]
	}
	return c.state, nil
}

// Err returns the read error behind an Errored state.
func (c *PollConn) Err() error { return c.err }

// RemoteAddr identifies the peer in logs.
func (c *PollConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *PollConn) Close() error { return c.conn.Close() }

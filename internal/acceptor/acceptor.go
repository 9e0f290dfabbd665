// Package acceptor opens the listeners that worker processes dial into.
package acceptor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
)

// BindError is returned when the listen address cannot be bound.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// AcceptError is returned when accepting fails for a reason other than a
// transient timeout.
type AcceptError struct {
	Addr     string
	Accepted int
	Err      error
}

func (e *AcceptError) Error() string {
	return fmt.Sprintf("failed to accept connection %d on %s: %v", e.Accepted+1, e.Addr, e.Err)
}

func (e *AcceptError) Unwrap() error { return e.Err }

// AcceptAll listens on addr and blocks until exactly n connections have been
// accepted. The listener is closed before returning. Cancelling ctx aborts the
// wait and closes any connections accepted so far.
func AcceptAll(ctx context.Context, addr string, n int) ([]net.Conn, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	return acceptN(ctx, ln, n)
}

// acceptN is split out so tests can learn the bound port before dialing.
func acceptN(ctx context.Context, ln net.Listener, n int) ([]net.Conn, error) {
	addr := ln.Addr().String()
	log.Printf("Listening on %s for %d connections.", addr, n)

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer ln.Close()

	conns := make([]net.Conn, 0, n)
	for len(conns) < n {
		conn, err := ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			for _, c := range conns {
				c.Close()
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &AcceptError{Addr: addr, Accepted: len(conns), Err: err}
		}
		conns = append(conns, conn)
	}
	log.Printf("Accepted %d connections on %s.", n, addr)
	return conns, nil
}

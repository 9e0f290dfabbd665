package acceptor

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptNQuota(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	const n = 3
	dialed := make(chan net.Conn, n)
	for i := 0; i < n; i++ {
		go func() {
			c, err := net.Dial("tcp", ln.Addr().String())
			if err == nil {
				dialed <- c
			}
		}()
	}

	conns, err := acceptN(context.Background(), ln, n)
	require.NoError(t, err)
	assert.Len(t, conns, n)
	for i := 0; i < n; i++ {
		(<-dialed).Close()
	}
	for _, c := range conns {
		c.Close()
	}

	// The listener is closed once the quota is met.
	_, err = net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	assert.Error(t, err)
}

func TestAcceptAllZero(t *testing.T) {
	conns, err := AcceptAll(context.Background(), "127.0.0.1:0", 0)
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func TestAcceptAllBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, err = AcceptAll(context.Background(), ln.Addr().String(), 1)
	var be *BindError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, ln.Addr().String(), be.Addr)
}

func TestAcceptAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := AcceptAll(ctx, "127.0.0.1:0", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

package replay

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"CommSpectra/internal/model"
	"CommSpectra/internal/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tcpPair returns both ends of a loopback TCP connection.
func tcpPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()
	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	select {
	case server = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("accept timed out")
	}
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func testOptions() Options {
	return Options{
		Stream:           "communication",
		PollInterval:     time.Millisecond,
		ReadTimeout:      time.Millisecond,
		ReadBufferSize:   16,
		MaxFrameSize:     1 << 16,
		MaxFramesPerPoll: 2,
	}
}

func message(ts time.Duration, channel, length int) model.CommRecord {
	return model.CommRecord{
		Time:  ts,
		Setup: model.CommSetup{Sender: true},
		Event: model.MessageEvent{IsSend: true, Header: model.MessageHeader{Channel: channel, Length: length}},
	}
}

func TestPollConnStates(t *testing.T) {
	client, server := tcpPair(t)
	pc := NewPollConn(server, 64, 5*time.Millisecond)

	// 1. Nothing written yet.
	state, data := pc.Poll()
	assert.Equal(t, Idle, state)
	assert.Nil(t, data)

	// 2. Data arrives.
	_, err := client.Write([]byte("hello"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		state, data = pc.Poll()
		return state == DataAvailable
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, "hello", string(data))

	// 3. Orderly close is terminal.
	require.NoError(t, client.Close())
	require.Eventually(t, func() bool {
		state, _ = pc.Poll()
		return state == Closed
	}, 2*time.Second, time.Millisecond)
	state, _ = pc.Poll()
	assert.Equal(t, Closed, state)
	assert.NoError(t, pc.Err())
}

func TestReplayerOrderAcrossConnections(t *testing.T) {
	c1, s1 := tcpPair(t)
	c2, s2 := tcpPair(t)

	go func() {
		enc := wire.NewEncoder(c1, wire.Comm)
		for i := 0; i < 10; i++ {
			enc.WriteMessages(time.Duration(i), message(time.Duration(i)*time.Second, 1, i))
		}
		c1.Close()
	}()
	go func() {
		enc := wire.NewEncoder(c2, wire.Comm)
		for i := 0; i < 10; i++ {
			enc.WriteMessages(time.Duration(i), message(time.Duration(i)*time.Second, 2, i))
		}
		c2.Close()
	}()

	r := New(wire.Comm, []net.Conn{s1, s2}, testOptions())
	byChannel := map[int][]int{}
	err := r.Run(context.Background(), func(rec model.CommRecord) error {
		h := rec.Event.(model.MessageEvent).Header
		byChannel[h.Channel] = append(byChannel[h.Channel], h.Length)
		return nil
	})
	require.NoError(t, err)

	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.Equal(t, want, byChannel[1])
	assert.Equal(t, want, byChannel[2])

	_, ok := r.Frontier()
	assert.False(t, ok)
}

func TestReplayerNoConnections(t *testing.T) {
	r := New(wire.Comm, nil, testOptions())
	assert.NoError(t, r.Run(context.Background(), func(model.CommRecord) error { return nil }))
}

func TestReplayerFrontier(t *testing.T) {
	client, server := tcpPair(t)
	r := New(wire.Comm, []net.Conn{server}, testOptions())

	got, ok := r.Frontier()
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), got)

	enc := wire.NewEncoder(client, wire.Comm)
	require.NoError(t, enc.WriteProgress(
		wire.ProgressUpdate{Time: 0, Delta: -1},
		wire.ProgressUpdate{Time: 7 * time.Second, Delta: 1},
	))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, func(model.CommRecord) error { return nil })
	}()

	assert.Eventually(t, func() bool {
		got, ok := r.Frontier()
		return ok && got == 7*time.Second
	}, 2*time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestReplayerDecodeError(t *testing.T) {
	bad, badServer := tcpPair(t)
	good, goodServer := tcpPair(t)

	_, err := bad.Write([]byte("not a stream at all"))
	require.NoError(t, err)
	// The well-formed connection stays open; the failure must still end Run.
	enc := wire.NewEncoder(good, wire.Comm)
	require.NoError(t, enc.WriteMessages(0, message(time.Second, 1, 1)))

	r := New(wire.Comm, []net.Conn{goodServer, badServer}, testOptions())
	err = r.Run(context.Background(), func(model.CommRecord) error { return nil })
	var de *wire.DecodeError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Equal(t, wire.CommStream, de.Stream)
}

func TestReplayerTruncatedStream(t *testing.T) {
	client, server := tcpPair(t)
	_, err := client.Write(wire.AppendHeader(nil, wire.CommStream))
	require.NoError(t, err)
	_, err = client.Write([]byte{10, 1, 2})
	require.NoError(t, err)
	client.Close()

	r := New(wire.Comm, []net.Conn{server}, testOptions())
	err = r.Run(context.Background(), func(model.CommRecord) error { return nil })
	assert.ErrorIs(t, err, wire.ErrTruncated)
}

func TestReplayerEmitError(t *testing.T) {
	client, server := tcpPair(t)
	enc := wire.NewEncoder(client, wire.Comm)
	require.NoError(t, enc.WriteMessages(0, message(time.Second, 1, 1)))

	stop := errors.New("stop")
	r := New(wire.Comm, []net.Conn{server}, testOptions())
	err := r.Run(context.Background(), func(model.CommRecord) error { return stop })
	assert.ErrorIs(t, err, stop)
}

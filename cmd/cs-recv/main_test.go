package main

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"CommSpectra/internal/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envMainArgs makes the test binary run main with the given arguments.
const envMainArgs = "CS_RECV_MAIN_ARGS"

func TestMain(m *testing.M) {
	if args := os.Getenv(envMainArgs); args != "" {
		os.Args = append([]string{"cs-recv"}, strings.Fields(args)...)
		main()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().String()
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	var conn net.Conn
	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 10*time.Second, 20*time.Millisecond)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func startReceiver(t *testing.T, workAddr, commAddr string) *exec.Cmd {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf(`receiver:
  work_addr: %q
  comm_addr: %q
  num_workers: 1
  poll_interval: "1ms"
reporter:
  sinks:
    - type: "text"
      enabled: true
      text:
        path: %q
`, workAddr, commAddr, filepath.Join(dir, "reports.txt"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	cmd := exec.Command(os.Args[0])
	cmd.Env = append(os.Environ(), envMainArgs+"=-config "+cfgPath+" 1 1 5")
	require.NoError(t, cmd.Start())
	t.Cleanup(func() { cmd.Process.Kill() })
	return cmd
}

func waitExit(t *testing.T, cmd *exec.Cmd) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(20 * time.Second):
		t.Fatal("receiver did not exit")
		return nil
	}
}

func TestMalformedStreamExitsNonZero(t *testing.T) {
	workAddr, commAddr := freeAddr(t), freeAddr(t)
	cmd := startReceiver(t, workAddr, commAddr)

	dial(t, workAddr)
	comm := dial(t, commAddr)
	_, err := comm.Write([]byte("definitely not framed"))
	require.NoError(t, err)

	err = waitExit(t, cmd)
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.NotEqual(t, 0, exitErr.ExitCode())
}

func TestCleanStreamsExitZero(t *testing.T) {
	workAddr, commAddr := freeAddr(t), freeAddr(t)
	cmd := startReceiver(t, workAddr, commAddr)

	work := dial(t, workAddr)
	comm := dial(t, commAddr)
	require.NoError(t, wire.NewEncoder(comm, wire.Comm).WriteProgress())
	require.NoError(t, work.Close())
	require.NoError(t, comm.Close())

	assert.NoError(t, waitExit(t, cmd))
}

func TestMissingArgumentsExitNonZero(t *testing.T) {
	cmd := exec.Command(os.Args[0])
	cmd.Env = append(os.Environ(), envMainArgs+"=1 1")
	err := cmd.Run()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.NotEqual(t, 0, exitErr.ExitCode())
}

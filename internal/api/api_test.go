package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"CommSpectra/internal/config"
	"CommSpectra/internal/model"
	"CommSpectra/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func testBoard() *report.Board {
	b := report.NewBoard(4)
	b.Apply(model.Report{Category: model.CategoryLate, Key: model.Key{Channel: 7, Bucket: 10 * time.Second}, Value: 50})
	b.Apply(model.Report{Category: model.CategoryLate, Key: model.Key{Channel: 9, Bucket: 5 * time.Second}, Value: 3})
	b.Apply(model.Report{Category: model.CategoryChannel, Key: model.Key{Channel: 7, Bucket: 5 * time.Second}, Subject: "channel 7", Diff: 1})
	return b
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestCountsHandler(t *testing.T) {
	h := NewHTTPHandler(testBoard())

	rec := get(t, h, "/v1/counts/late")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.ReportDoc
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, 9, got[0].Channel)
	assert.Equal(t, 5.0, got[0].BucketSeconds)
	assert.Equal(t, int64(50), got[1].Value)

	rec = get(t, h, "/v1/counts/send")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/v1/counts/channel").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/v1/counts/bytes").Code)
}

func TestTopologyAndHealth(t *testing.T) {
	h := NewHTTPHandler(testBoard())

	rec := get(t, h, "/v1/topology")
	require.Equal(t, http.StatusOK, rec.Code)
	var topo TopologyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &topo))
	require.Len(t, topo.Channels, 1)
	assert.Equal(t, "channel 7", topo.Channels[0].Subject)
	assert.Equal(t, int64(1), topo.Channels[0].Value)
	assert.Empty(t, topo.CommChannels)

	assert.JSONEq(t, `{"status":"ok"}`, get(t, h, "/healthz").Body.String())
	assert.Equal(t, http.StatusOK, get(t, h, "/metrics").Code)
}

func freeAddr(t *testing.T) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().String()
}

func TestGRPCHealth(t *testing.T) {
	cfg := config.APIConfig{Enabled: true, HTTPListenAddr: freeAddr(t), GRPCListenAddr: freeAddr(t)}
	s := NewServer(cfg, report.NewBoard(1))
	require.NoError(t, s.Start())
	defer s.Stop()

	conn, err := grpc.NewClient(cfg.GRPCListenAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	s.SetServing(true)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

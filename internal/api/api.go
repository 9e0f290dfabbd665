// Package api serves the board over HTTP and exposes gRPC health.
package api

import (
	"CommSpectra/internal/config"
	"CommSpectra/internal/model"
	"CommSpectra/internal/report"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// TopologyResponse lists the topology declarations seen so far.
type TopologyResponse struct {
	Channels     []model.ReportDoc `json:"channels"`
	CommChannels []model.ReportDoc `json:"comm_channels"`
}

// NewHTTPHandler builds the query routes over board.
func NewHTTPHandler(board *report.Board) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	}).Methods("GET")

	r.HandleFunc("/v1/counts/{category}", func(w http.ResponseWriter, r *http.Request) {
		category, err := model.ParseCategory(mux.Vars(r)["category"])
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if !category.IsCount() {
			http.Error(w, fmt.Sprintf("%s is not a count category", category), http.StatusBadRequest)
			return
		}
		writeJSON(w, docs(board.Snapshot(category)))
	}).Methods("GET")

	r.HandleFunc("/v1/topology", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, TopologyResponse{
			Channels:     docs(board.Snapshot(model.CategoryChannel)),
			CommChannels: docs(board.Snapshot(model.CategoryCommChannel)),
		})
	}).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return r
}

func docs(reports []model.Report) []model.ReportDoc {
	out := make([]model.ReportDoc, 0, len(reports))
	for _, r := range reports {
		out = append(out, r.Doc())
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// Server runs the HTTP query API and the gRPC health service.
type Server struct {
	cfg        config.APIConfig
	health     *health.Server
	grpcServer *grpc.Server
	httpServer *http.Server
}

// NewServer creates the servers. Health starts as NOT_SERVING.
func NewServer(cfg config.APIConfig, board *report.Board) *Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	return &Server{
		cfg:        cfg,
		health:     hs,
		grpcServer: grpcServer,
		httpServer: &http.Server{
			Addr:              cfg.HTTPListenAddr,
			Handler:           NewHTTPHandler(board),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start binds both listeners and serves in the background.
func (s *Server) Start() error {
	grpcLis, err := net.Listen("tcp", s.cfg.GRPCListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.GRPCListenAddr, err)
	}
	httpLis, err := net.Listen("tcp", s.cfg.HTTPListenAddr)
	if err != nil {
		grpcLis.Close()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.HTTPListenAddr, err)
	}

	go func() {
		log.Printf("gRPC health server starting on %s", grpcLis.Addr())
		if err := s.grpcServer.Serve(grpcLis); err != nil {
			log.Printf("gRPC server stopped: %v", err)
		}
	}()
	go func() {
		log.Printf("HTTP API server starting on %s", httpLis.Addr())
		if err := s.httpServer.Serve(httpLis); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server stopped: %v", err)
		}
	}()
	return nil
}

// SetServing flips the gRPC health status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

// Stop shuts both servers down.
func (s *Server) Stop() {
	log.Println("API servers shutting down...")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}
}

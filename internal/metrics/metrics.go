// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BytesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commspectra_replay_bytes_read_total",
		Help: "Bytes read from worker connections",
	}, []string{"stream"})

	FramesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commspectra_replay_frames_decoded_total",
		Help: "Frames decoded, by stream and frame kind",
	}, []string{"stream", "kind"})

	RecordsReplayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commspectra_replay_records_total",
		Help: "Event records emitted by replayers",
	}, []string{"stream"})

	PollOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commspectra_replay_polls_total",
		Help: "Connection polls, by resulting state",
	}, []string{"stream", "state"})

	OpenConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "commspectra_replay_open_connections",
		Help: "Connections still being replayed",
	}, []string{"stream"})

	ReplayFrontier = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "commspectra_replay_frontier_seconds",
		Help: "Lowest logical time a worker's connections may still produce",
	}, []string{"stream", "worker"})

	ReportsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commspectra_reports_total",
		Help: "Reports published to sinks, by category",
	}, []string{"category"})

	ExchangeBacklog = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "commspectra_exchange_backlog",
		Help: "Deltas queued for each aggregation shard",
	}, []string{"shard"})
)

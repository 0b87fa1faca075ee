// Package telemetry exports relay counters and table gauges to Prometheus.
package telemetry

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loramesh/lorax/internal/util"
)

const namespace = "lorax"

// counterFrom exposes one of the util.Stats counters.
func counterFrom(name, help string, v *atomic.Int64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(
		prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	)
}

var (
	Registry = prometheus.NewRegistry()

	packetsSent  = counterFrom("packets_sent_total", "Packets acknowledged by the radio.", &util.Stats.PacketsSent)
	packetsRecv  = counterFrom("packets_received_total", "Valid packets received from the radio.", &util.Stats.PacketsRecv)
	packetsBad   = counterFrom("packets_invalid_total", "Radio frames that failed validation.", &util.Stats.PacketsBad)
	bytesSent    = counterFrom("radio_bytes_sent_total", "Bytes handed to the radio.", &util.Stats.BytesSent)
	bytesRecv    = counterFrom("radio_bytes_received_total", "Bytes received from the radio.", &util.Stats.BytesRecv)
	messagesIn   = counterFrom("messages_received_total", "Client messages accepted.", &util.Stats.MessagesIn)
	messagesOut  = counterFrom("messages_delivered_total", "Messages delivered to clients or the server.", &util.Stats.MessagesOut)
	retries      = counterFrom("retries_total", "Retransmissions issued by the retry sweep.", &util.Stats.Retries)
	unreachable  = counterFrom("unreachable_total", "Messages returned to clients as unreachable.", &util.Stats.Unreachable)
	broadcasts   = counterFrom("broadcasts_total", "Neighbor discovery broadcasts sent.", &util.Stats.Broadcasts)
	sendFailures = counterFrom("send_failures_total", "Radio or socket sends that failed.", &util.Stats.SendFailures)

	// Evictions counts neighbors dropped for silence.
	Evictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "neighbor_evictions_total",
		Help:      "Neighbors evicted after missing broadcasts.",
	})

	neighbors = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "neighbors",
		Help:      "Neighbors currently in the table, excluding this node.",
	})
	connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections",
		Help:      "Open connections across all neighbors.",
	})
	queued = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queued_messages",
		Help:      "Messages waiting for a reply packet.",
	})

	// ---- Process / build info ----
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version and node address).",
		},
		[]string{"version", "address"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		packetsSent, packetsRecv, packetsBad, bytesSent, bytesRecv,
		messagesIn, messagesOut, retries, unreachable, broadcasts, sendFailures,
		Evictions, neighbors, connections, queued, buildInfo, uptime,
	)
}

// MetricsHandler exposes /metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup.
func SetBuildInfo(version, address string) {
	buildInfo.WithLabelValues(version, address).Set(1)
}

// SetTable records the size of the neighbor table.
func SetTable(numNeighbors, numConns, numQueued int) {
	neighbors.Set(float64(numNeighbors))
	connections.Set(float64(numConns))
	queued.Set(float64(numQueued))
}

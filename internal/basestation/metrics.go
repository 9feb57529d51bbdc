package basestation

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gnssmon_source_connected",
		Help: "1 while the RTCM source connection is up.",
	})
	metricFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gnssmon_frames_total",
		Help: "Complete RTCM frames extracted from the stream, by message type.",
	}, []string{"type"})
	metricPositions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gnssmon_positions_total",
		Help: "Station position (1005) messages decoded into the snapshot.",
	})
	metricDecodeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gnssmon_decode_failures_total",
		Help: "Valid frames whose 1005 payload failed to decode.",
	})
	metricResyncBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gnssmon_resync_bytes_total",
		Help: "Bytes discarded while resynchronizing to the frame boundary.",
	})
	metricReadErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gnssmon_read_errors_total",
		Help: "Source read failures that tore the connection down.",
	})
	metricConnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gnssmon_connects_total",
		Help: "Successful source connections, the first one included.",
	})
)

func init() {
	prometheus.MustRegister(
		metricConnected,
		metricFrames,
		metricPositions,
		metricDecodeFailures,
		metricResyncBytes,
		metricReadErrors,
		metricConnects,
	)
}

func frameTypeLabel(t uint16) string {
	return strconv.Itoa(int(t))
}

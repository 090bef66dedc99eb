package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// RealtimeMetrics records websocket lifecycle and traffic.
type RealtimeMetrics struct {
	connects            prometheus.Counter
	disconnects         *prometheus.CounterVec
	reconnects          *prometheus.CounterVec
	reconnectsExhausted prometheus.Counter
	frames              *prometheus.CounterVec
	malformedFrames     prometheus.Counter
	droppedSends        prometheus.Counter
	handlerFailures     prometheus.Counter
}

// NewRealtimeMetrics registers the realtime metrics on the provided registerer.
func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	if reg == nil {
		return &RealtimeMetrics{}
	}
	m := &RealtimeMetrics{
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_connects_total",
			Help: "Websocket connections opened.",
		}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_disconnects_total",
			Help: "Websocket closures by cleanliness.",
		}, []string{"clean"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_reconnects_scheduled_total",
			Help: "Reconnect attempts scheduled by attempt number.",
		}, []string{"attempt"}),
		reconnectsExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_reconnects_exhausted_total",
			Help: "Times the reconnect budget ran out.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realtime_frames_received_total",
			Help: "Inbound frames by type and action.",
		}, []string{"type", "action"}),
		malformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_malformed_frames_total",
			Help: "Inbound frames that could not be decoded.",
		}),
		droppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_dropped_sends_total",
			Help: "Outbound messages dropped because no connection was open.",
		}),
		handlerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_handler_failures_total",
			Help: "Message handlers that returned an error or panicked.",
		}),
	}
	reg.MustRegister(
		m.connects,
		m.disconnects,
		m.reconnects,
		m.reconnectsExhausted,
		m.frames,
		m.malformedFrames,
		m.droppedSends,
		m.handlerFailures,
	)
	return m
}

func (m *RealtimeMetrics) IncConnect() {
	if m == nil || m.connects == nil {
		return
	}
	m.connects.Inc()
}

func (m *RealtimeMetrics) IncDisconnect(clean bool) {
	if m == nil || m.disconnects == nil {
		return
	}
	m.disconnects.WithLabelValues(strconv.FormatBool(clean)).Inc()
}

func (m *RealtimeMetrics) IncReconnectScheduled(attempt int) {
	if m == nil || m.reconnects == nil {
		return
	}
	m.reconnects.WithLabelValues(strconv.Itoa(attempt)).Inc()
}

func (m *RealtimeMetrics) IncReconnectsExhausted() {
	if m == nil || m.reconnectsExhausted == nil {
		return
	}
	m.reconnectsExhausted.Inc()
}

func (m *RealtimeMetrics) IncFrame(msgType, action string) {
	if m == nil || m.frames == nil {
		return
	}
	m.frames.WithLabelValues(normalizeLabel(msgType), normalizeLabel(action)).Inc()
}

func (m *RealtimeMetrics) IncMalformedFrame() {
	if m == nil || m.malformedFrames == nil {
		return
	}
	m.malformedFrames.Inc()
}

func (m *RealtimeMetrics) IncDroppedSend() {
	if m == nil || m.droppedSends == nil {
		return
	}
	m.droppedSends.Inc()
}

func (m *RealtimeMetrics) IncHandlerFailure() {
	if m == nil || m.handlerFailures == nil {
		return
	}
	m.handlerFailures.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

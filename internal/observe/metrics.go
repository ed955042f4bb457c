package observe

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	activeRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "beamdrop_active_rooms",
		Help: "Number of rooms currently stored",
	})

	activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "beamdrop_active_connections",
		Help: "Number of live websocket connections",
	})

	roomsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "beamdrop_rooms_created_total",
		Help: "Total rooms created",
	})

	roomsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "beamdrop_rooms_expired_total",
		Help: "Total rooms evicted by the expiry sweeper",
	})

	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beamdrop_messages_total",
			Help: "Total inbound signaling messages by type",
		},
		[]string{"type"},
	)

	droppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "beamdrop_dropped_messages_total",
		Help: "Total outbound messages dropped due to client backpressure",
	})
)

func init() {
	prometheus.MustRegister(
		activeRooms,
		activeConnections,
		roomsCreatedTotal,
		roomsExpiredTotal,
		messagesTotal,
		droppedTotal,
	)
}

func SetActiveRooms(n float64)       { activeRooms.Set(n) }
func SetActiveConnections(n float64) { activeConnections.Set(n) }
func IncRoomCreated()                { roomsCreatedTotal.Inc() }
func AddRoomsExpired(n float64)      { roomsExpiredTotal.Add(n) }
func IncMessage(kind string)         { messagesTotal.WithLabelValues(kind).Inc() }
func IncDropped()                    { droppedTotal.Inc() }

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

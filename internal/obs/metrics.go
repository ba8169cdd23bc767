package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DelaySeconds        = promauto.NewGauge(prometheus.GaugeOpts{Name: "delayline_delay_seconds", Help: "Current artificial delay applied to backend-to-client forwarding"})
	ForwardedBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "delayline_forwarded_bytes_total", Help: "Bytes forwarded by direction"}, []string{"direction"})
	DroppedBytesTotal   = promauto.NewCounter(prometheus.CounterOpts{Name: "delayline_dropped_bytes_total", Help: "Backend bytes discarded because no client was connected"})
	ClientAcceptsTotal  = promauto.NewCounter(prometheus.CounterOpts{Name: "delayline_client_accepts_total", Help: "Client connections accepted on the primary listener"})
	AdminConnections    = promauto.NewGauge(prometheus.GaugeOpts{Name: "delayline_admin_connections", Help: "Currently open admin connections"})
	AdminCommandsTotal  = promauto.NewCounterVec(prometheus.CounterOpts{Name: "delayline_admin_commands_total", Help: "Admin commands by result"}, []string{"result"})
	ErrorsTotal         = promauto.NewCounterVec(prometheus.CounterOpts{Name: "delayline_errors_total", Help: "Errors by type"}, []string{"type"})
	ForwardStallSeconds = promauto.NewHistogram(prometheus.HistogramOpts{Name: "delayline_forward_stall_seconds", Help: "Time the relay loop stalled per backend-to-client forward", Buckets: prometheus.ExponentialBuckets(0.001, 2, 16)})
)

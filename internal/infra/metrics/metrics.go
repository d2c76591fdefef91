// Package metrics registers the Prometheus instruments exposed on the
// dedicated metrics port.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var usageWarningsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "trafficwarden_usage_warnings_total",
		Help: "Total number of staged traffic warnings sent, per server and threshold.",
	},
	[]string{"server", "threshold"},
)

var serversDestroyedTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "trafficwarden_servers_destroyed_total",
		Help: "Total number of servers destroyed, per reason (over_limit, manual, sleep, rebuild).",
	},
	[]string{"reason"},
)

var serversCreatedTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
	prometheus.CounterOpts{
		Name: "trafficwarden_servers_created_total",
		Help: "Total number of servers created by rebuilds and sleep startups.",
	},
)

var probeFailuresTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "trafficwarden_probe_failures_total",
		Help: "Total number of failed traffic usage probes, per server.",
	},
	[]string{"server"},
)

var notifyFailuresTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
	prometheus.CounterOpts{
		Name: "trafficwarden_notify_failures_total",
		Help: "Total number of failed notification sends (best-effort, never retried).",
	},
)

var dnsUpdatesTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "trafficwarden_dns_updates_total",
		Help: "Total number of DNS record updates after rebuild, per outcome.",
	},
	[]string{"outcome"},
)

var serverUsagePercent = promauto.With(prometheus.DefaultRegisterer).NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "trafficwarden_server_usage_percent",
		Help: "Last observed traffic usage percentage per server.",
	},
	[]string{"server"},
)

// RecordUsageWarning counts one staged warning.
func RecordUsageWarning(server string, threshold int) {
	usageWarningsTotal.WithLabelValues(server, strconv.Itoa(threshold)).Inc()
}

// RecordServerDestroyed counts one destroyed server by reason.
func RecordServerDestroyed(reason string) {
	serversDestroyedTotal.WithLabelValues(reason).Inc()
}

// RecordServerCreated counts one created server.
func RecordServerCreated() {
	serversCreatedTotal.Inc()
}

// RecordProbeFailure counts one failed usage probe.
func RecordProbeFailure(server string) {
	probeFailuresTotal.WithLabelValues(server).Inc()
}

// RecordNotifyFailure counts one failed notification send.
func RecordNotifyFailure() {
	notifyFailuresTotal.Inc()
}

// RecordDNSUpdate counts one DNS update attempt.
func RecordDNSUpdate(ok bool) {
	outcome := "error"
	if ok {
		outcome = "success"
	}

	dnsUpdatesTotal.WithLabelValues(outcome).Inc()
}

// SetServerUsage records the latest observed usage gauge for a server.
func SetServerUsage(server string, percent float64) {
	serverUsagePercent.WithLabelValues(server).Set(percent)
}

// ForgetServer drops the usage gauge for a server that no longer exists.
func ForgetServer(server string) {
	serverUsagePercent.DeleteLabelValues(server)
}

package syncer

import "github.com/prometheus/client_golang/prometheus"

var (
	pollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sellsync_polls_total",
		Help: "Status polls issued, by scope.",
	}, []string{"scope"})

	pollFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sellsync_poll_failures_total",
		Help: "Status polls that failed; last known good state is retained.",
	}, []string{"scope"})

	staleDropsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sellsync_stale_poll_drops_total",
		Help: "Poll responses discarded because their loop was already stopped.",
	})
)

func init() {
	prometheus.MustRegister(pollsTotal, pollFailuresTotal, staleDropsTotal)
}

func scopeLabel(scope string) string {
	if scope == ScopeAll {
		return "all"
	}

	return scope
}

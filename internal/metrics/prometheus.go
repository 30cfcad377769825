package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	LoginSuccessTotal    prometheus.Counter
	LoginFailureTotal    prometheus.Counter
	TokensCreatedTotal   prometheus.Counter
	TokensRefreshedTotal prometheus.Counter
	ActiveAuthSessions   prometheus.Gauge

	OpenConnectionsGauge prometheus.Gauge
	BroadcastsTotal      prometheus.Counter
	SweepRemovalsTotal   prometheus.Counter

	ChatSessionsActive  prometheus.Gauge
	MessagesPostedTotal prometheus.Counter
	TurnAdvancesTotal   prometheus.Counter
)

// InitCustomMetrics initializes and registers custom Prometheus metrics.
// It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hearthlink_logins_success_total",
		Help: "Total number of successful logins.",
	})
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hearthlink_logins_failure_total",
		Help: "Total number of failed logins.",
	})
	TokensCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hearthlink_tokens_created_total",
		Help: "Total number of access/refresh credentials minted.",
	})
	TokensRefreshedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hearthlink_tokens_refreshed_total",
		Help: "Total number of access credentials refreshed.",
	})
	ActiveAuthSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hearthlink_auth_sessions_active",
		Help: "Current number of live auth sessions.",
	})
	OpenConnectionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hearthlink_realtime_connections_open",
		Help: "Current number of tracked realtime connections.",
	})
	BroadcastsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hearthlink_realtime_broadcasts_total",
		Help: "Total number of broadcast operations.",
	})
	SweepRemovalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hearthlink_realtime_sweep_removals_total",
		Help: "Connections removed by the liveness sweep.",
	})
	ChatSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hearthlink_chat_sessions_active",
		Help: "Current number of non-ended chat sessions.",
	})
	MessagesPostedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hearthlink_messages_posted_total",
		Help: "Total number of messages appended to session logs.",
	})
	TurnAdvancesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hearthlink_turn_advances_total",
		Help: "Total number of successful turn advances.",
	})

	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}

	for _, c := range []prometheus.Collector{
		LoginSuccessTotal, LoginFailureTotal,
		TokensCreatedTotal, TokensRefreshedTotal, ActiveAuthSessions,
		OpenConnectionsGauge, BroadcastsTotal, SweepRemovalsTotal,
		ChatSessionsActive, MessagesPostedTotal, TurnAdvancesTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}

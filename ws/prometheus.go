package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voffice_connections",
		Help: "The number of open WebSocket connections",
	})
	usersJoinedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voffice_user_joined_total",
		Help: "The total number of users that joined the office",
	})
	usersLeftTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voffice_user_left_total",
		Help: "The total number of users that left the office",
	})
	shareStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voffice_screenshare_started_total",
		Help: "The total number of started screen shares",
	})
	shareStoppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voffice_screenshare_stopped_total",
		Help: "The total number of stopped screen shares",
	})
	directMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voffice_direct_messages_total",
		Help: "The total number of stored direct messages",
	})
	relayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voffice_signal_relayed_total",
		Help: "The total number of relayed signaling messages",
	}, []string{"kind"})
	relayDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voffice_signal_relay_dropped_total",
		Help: "The total number of signaling messages dropped because the target was not connected",
	}, []string{"kind"})
)

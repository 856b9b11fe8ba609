// Package metrics exposes the relay's prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatUpdates counts inbound Telegram updates by kind
	// (callback, message, membership, ignored).
	ChatUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boardrelay",
		Name:      "chat_updates_total",
		Help:      "Inbound chat platform updates by kind.",
	}, []string{"kind"})

	// BoardEvents counts inbound Trello actions by outcome (notified, ignored, failed).
	BoardEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boardrelay",
		Name:      "board_events_total",
		Help:      "Inbound board platform events by outcome.",
	}, []string{"result"})

	// UpstreamErrors counts failed calls to external APIs
	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boardrelay",
		Name:      "upstream_errors_total",
		Help:      "Failed upstream API calls by service.",
	}, []string{"service"})

	Reports = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "boardrelay",
		Name:      "reports_total",
		Help:      "Generated task reports.",
	})
)

package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sessions_opened_total",
		Help: "Check-ins recorded.",
	})
	sessionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sessions_closed_total",
		Help: "Check-outs recorded.",
	})
	tokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_tokens_issued_total",
		Help: "Capability tokens issued.",
	})
	tokenRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_token_rejections_total",
		Help: "Bearer tokens rejected at verification.",
	})
	authzDenials = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_authz_denials_total",
		Help: "Requests denied by a capability guard.",
	})
)

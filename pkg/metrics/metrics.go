// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package metrics holds the Prometheus collectors of the marketing engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "marketing_automation"

var (
	AudienceCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audience_cache_lookups_total",
			Help:      "Audience cache lookups by result (hit or miss)",
		},
		[]string{"result"},
	)

	AudienceEvaluations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audience_evaluation_seconds",
			Help:      "Time spent evaluating a segment over its snapshots",
			Buckets:   prometheus.DefBuckets,
		},
	)

	Enrollments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journey_enrollments_total",
			Help:      "Journey enrollment attempts by result",
		},
		[]string{"result"},
	)

	StepsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journey_steps_total",
			Help:      "Journey steps executed by node type",
		},
		[]string{"node_type"},
	)

	ParticipantTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journey_participant_transitions_total",
			Help:      "Participants reaching a terminal status",
		},
		[]string{"status"},
	)

	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journey_deliveries_total",
			Help:      "Delivery requests handed off by channel and result",
		},
		[]string{"channel", "result"},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_tick_seconds",
			Help:      "Duration of a scheduler tick",
			Buckets:   prometheus.DefBuckets,
		},
	)

	Grants = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incentive_grants_total",
			Help:      "Incentive grant outcomes by incentive type and result",
		},
		[]string{"type", "result"},
	)

	EventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Application events processed by name and result",
		},
		[]string{"event", "result"},
	)
)

// Collectors returns every collector of this package for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		AudienceCacheLookups,
		AudienceEvaluations,
		Enrollments,
		StepsExecuted,
		ParticipantTransitions,
		Deliveries,
		TickDuration,
		Grants,
		EventsProcessed,
	}
}

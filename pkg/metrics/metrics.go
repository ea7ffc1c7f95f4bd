// Package metrics provides Prometheus metrics for the ownable service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OwnershipOperationsTotal tracks ledger operations by verb and outcome
	OwnershipOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ownable",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Total number of ownership ledger operations by verb and outcome",
		},
		[]string{"verb", "outcome"},
	)

	// OwnershipOperationDuration tracks ledger operation duration in seconds
	OwnershipOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ownable",
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Duration of ownership ledger operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"verb"},
	)

	// EnrichmentWalksTotal tracks enrichment walks by outcome
	EnrichmentWalksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ownable",
			Subsystem: "enrichment",
			Name:      "walks_total",
			Help:      "Total number of response enrichment walks by outcome",
		},
		[]string{"outcome"},
	)

	// EnrichmentWalkDuration tracks the time spent walking a response tree
	EnrichmentWalkDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ownable",
			Subsystem: "enrichment",
			Name:      "walk_duration_seconds",
			Help:      "Duration of response enrichment walks in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	// EnrichmentNodesAttached tracks how many nodes received ownership data
	EnrichmentNodesAttached = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ownable",
			Subsystem: "enrichment",
			Name:      "nodes_attached_total",
			Help:      "Total number of response nodes that received ownership data",
		},
	)

	// EventsPublishedTotal tracks ownership events published to Kafka
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ownable",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of ownership events published by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// RegistrySnapshotBuildsTotal tracks registry snapshot builds by source
	RegistrySnapshotBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ownable",
			Subsystem: "registry",
			Name:      "snapshot_builds_total",
			Help:      "Total number of registry snapshot builds by source (cache or database)",
		},
		[]string{"source"},
	)
)

// Package metrics exposes the engine's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AssignmentsCreated counts assignment rows successfully appended.
	AssignmentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatch",
		Subsystem: "assignments",
		Name:      "created_total",
		Help:      "Assignment rows created.",
	})

	// AssignmentsFailed counts per-rider creation failures inside batches.
	AssignmentsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatch",
		Subsystem: "assignments",
		Name:      "failed_total",
		Help:      "Per-rider assignment failures.",
	})

	// AssignmentsRemoved counts assignment rows deleted during replacement.
	AssignmentsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatch",
		Subsystem: "assignments",
		Name:      "removed_total",
		Help:      "Assignment rows removed by replace-all processing.",
	})

	// CacheHits counts cache lookups served from a live entry, by key.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Cache hits.",
	}, []string{"key"})

	// CacheMisses counts cache lookups that fell through, by key.
	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Cache misses (absent or expired).",
	}, []string{"key"})

	// RotationUpdates counts persisted rotation-order changes, by operation.
	RotationUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch",
		Subsystem: "rotation",
		Name:      "updates_total",
		Help:      "Rotation order updates.",
	}, []string{"op"})
)

// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/chimera/pkg/errors"
)

// DissectionMetrics tracks artifact, tensor, and probe outcomes for
// production monitoring. All methods are safe on a nil receiver so
// callers can run without telemetry wired.
type DissectionMetrics struct {
	// artifactCounter tracks dissected artifacts
	artifactCounter metric.Int64Counter

	// failureCounter tracks artifact failures by error code
	failureCounter metric.Int64Counter

	// tensorCounter tracks extracted tensors
	tensorCounter metric.Int64Counter

	// probeFailureCounter tracks failed behavioral probes by domain
	probeFailureCounter metric.Int64Counter

	// probeLatencyGauge tracks last observed probe latency in seconds
	probeLatencyGauge metric.Float64Gauge

	// activeWorkersGauge tracks concurrently running dissection workers
	activeWorkersGauge metric.Int64Gauge

	mu sync.RWMutex
}

// NewDissectionMetrics creates a new dissection metrics tracker with OTEL meters.
func NewDissectionMetrics(ctx context.Context) (*DissectionMetrics, error) {
	meter := otel.Meter("chimera/dissect")

	artifactCounter, err := meter.Int64Counter(
		"chimera.artifacts.dissected",
		metric.WithDescription("Artifacts dissected successfully"),
	)
	if err != nil {
		return nil, err
	}

	failureCounter, err := meter.Int64Counter(
		"chimera.artifacts.failed",
		metric.WithDescription("Artifacts that failed dissection, by error code"),
	)
	if err != nil {
		return nil, err
	}

	tensorCounter, err := meter.Int64Counter(
		"chimera.tensors.extracted",
		metric.WithDescription("Tensors extracted across all artifacts"),
	)
	if err != nil {
		return nil, err
	}

	probeFailureCounter, err := meter.Int64Counter(
		"chimera.probes.failed",
		metric.WithDescription("Behavioral probes that errored or timed out, by domain"),
	)
	if err != nil {
		return nil, err
	}

	probeLatencyGauge, err := meter.Float64Gauge(
		"chimera.probe.latency.seconds",
		metric.WithDescription("Last observed completion latency per domain"),
	)
	if err != nil {
		return nil, err
	}

	activeWorkersGauge, err := meter.Int64Gauge(
		"chimera.workers.active",
		metric.WithDescription("Dissection workers currently running"),
	)
	if err != nil {
		return nil, err
	}

	return &DissectionMetrics{
		artifactCounter:     artifactCounter,
		failureCounter:      failureCounter,
		tensorCounter:       tensorCounter,
		probeFailureCounter: probeFailureCounter,
		probeLatencyGauge:   probeLatencyGauge,
		activeWorkersGauge:  activeWorkersGauge,
	}, nil
}

// RecordArtifactDissected increments the dissected-artifact counter.
func (dm *DissectionMetrics) RecordArtifactDissected(ctx context.Context, artifact string) {
	if dm == nil {
		return
	}

	dm.mu.RLock()
	defer dm.mu.RUnlock()

	dm.artifactCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(AttrArtifactName, artifact),
		),
	)
}

// RecordArtifactFailure increments the failure counter with the error code
// of the failure. Non-typed errors count as UNKNOWN.
func (dm *DissectionMetrics) RecordArtifactFailure(ctx context.Context, err error, artifact string) {
	if dm == nil || err == nil {
		return
	}

	dm.mu.RLock()
	defer dm.mu.RUnlock()

	if ce, ok := err.(*errors.ChimeraError); ok {
		dm.failureCounter.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("error.code", string(ce.Code)),
				attribute.String(AttrArtifactName, artifact),
				attribute.String("recoverable", ce.RecoverableString()),
			),
		)
	} else {
		// Generic error
		dm.failureCounter.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("error.code", "UNKNOWN"),
				attribute.String(AttrArtifactName, artifact),
				attribute.String("recoverable", "unknown"),
			),
		)
	}
}

// RecordTensorsExtracted adds the number of tensors recovered from one artifact.
func (dm *DissectionMetrics) RecordTensorsExtracted(ctx context.Context, artifact string, count int64) {
	if dm == nil {
		return
	}

	dm.mu.RLock()
	defer dm.mu.RUnlock()

	dm.tensorCounter.Add(ctx, count,
		metric.WithAttributes(
			attribute.String(AttrArtifactName, artifact),
		),
	)
}

// RecordProbeFailure increments the probe failure counter for a domain.
func (dm *DissectionMetrics) RecordProbeFailure(ctx context.Context, artifact, domain string) {
	if dm == nil {
		return
	}

	dm.mu.RLock()
	defer dm.mu.RUnlock()

	dm.probeFailureCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(AttrArtifactName, artifact),
			attribute.String(AttrProbeDomain, domain),
		),
	)
}

// RecordProbeLatency records the wall-clock latency of one probe in seconds.
func (dm *DissectionMetrics) RecordProbeLatency(ctx context.Context, artifact, domain string, seconds float64) {
	if dm == nil {
		return
	}

	dm.mu.RLock()
	defer dm.mu.RUnlock()

	dm.probeLatencyGauge.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String(AttrArtifactName, artifact),
			attribute.String(AttrProbeDomain, domain),
		),
	)
}

// RecordActiveWorkers records the current number of dissection workers.
func (dm *DissectionMetrics) RecordActiveWorkers(ctx context.Context, n int64) {
	if dm == nil {
		return
	}

	dm.mu.RLock()
	defer dm.mu.RUnlock()

	dm.activeWorkersGauge.Record(ctx, n)
}

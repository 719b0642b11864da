//go:build ignore

// SPDX-License-Identifier: Apache-2.0
// Chimera Dissection Observability Dashboards
// This file documents dashboard templates for OpenTelemetry OTEL UI or Grafana.
//
// DASHBOARD: Run Throughput & Failures
//   Shows dissection outcomes over time with breakdown by error code.
//
//   Queries:
//   - chimera.artifacts.dissected{chimera.artifact.name} (rate 5m)
//     Metric: Artifacts dissected per minute
//     Display: Line chart, one series per run when filtering on a run window
//
//   - chimera.artifacts.failed{error.code} (rate 5m)
//     Metric: Failure rate by error code
//     Display: Stacked area chart with legend (FORMAT_ERROR, IO_ERROR, PROBE_ERROR, TIMEOUT, etc)
//     Alert Threshold: > 1 failure/min sustained
//
//   - chimera.workers.active
//     Metric: Dissection workers currently running
//     Display: Single stat with gauge, max = engine.parallelism
//     Insight: Pinned at the parallelism bound means the run is worker-limited
//
//   - chimera.tensors.extracted{chimera.artifact.name} (rate 5m)
//     Metric: Tensor extraction throughput
//     Display: Bar chart per artifact
//
// DASHBOARD: Probe Health
//   Shows how the behavioral batteries are performing against the backend.
//
//   Queries:
//   - chimera.probes.failed{chimera.probe.domain} (rate 5m)
//     Metric: Probe failures by domain
//     Display: Stacked bar chart, one color per domain
//     Insight: A single hot domain points at its prompt battery; all domains hot
//     points at the completion backend
//
//   - chimera.probe.latency.seconds{chimera.probe.domain}
//     Metric: Last observed completion latency per domain
//     Display: Heatmap domain x artifact
//     Threshold: Warning > 50% of engine.probe_timeout_seconds
//
// DASHBOARD: Failure Details
//   Deep dive into failure patterns across a run.
//
//   Queries:
//   - chimera.artifacts.failed by (error.code, chimera.artifact.name, recoverable)
//     Breakdown: Error code x artifact x recoverability
//     Display: Heatmap or table
//     Insight: Which artifacts fail non-recoverably? Those never enter the blueprint.
//
//   - chimera.artifacts.failed{error.code="TIMEOUT"} vs chimera.probe.latency.seconds
//     Correlation: Timeouts vs probe latency drift
//     Display: Dual axis line chart
//     Insight: Do artifact timeouts follow a latency ramp on the backend?
//
// ALERT RULES (Prometheus/AlertManager format):
//
// Alert 1: High Failure Rate
//   Name: ChimeraHighFailureRate
//   Condition: rate(chimera.artifacts.failed[5m]) > 1
//   Duration: 2m
//   Severity: critical
//   Message: "Chimera failure rate {{ $value }} artifacts/sec, threshold 1"
//   Action: Check run logs for the dominant error.code
//
// Alert 2: Probe Timeouts
//   Name: ChimeraProbeTimeouts
//   Condition: rate(chimera.artifacts.failed{error.code="TIMEOUT"}[5m]) > 0.1
//   Duration: 5m
//   Severity: warning
//   Message: "Probe timeouts at {{ $value }}/sec"
//   Action: Raise engine.probe_timeout_seconds or check backend load
//
// Alert 3: Probe Latency High
//   Name: ChimeraProbeLatencyHigh
//   Condition: chimera.probe.latency.seconds > 15
//   Duration: 5m
//   Severity: warning
//   Message: "Probe latency {{ $value }}s on {{ $labels.chimera_probe_domain }}"
//   Action: Check completion backend saturation before timeouts start
//
// Alert 4: Store Rejections
//   Name: ChimeraStoreErrors
//   Condition: rate(chimera.artifacts.failed{error.code="STORE_ERROR"}[5m]) > 0
//   Duration: 1m
//   Severity: warning
//   Message: "Run history store rejecting writes"
//   Action: Persistence is best-effort so runs still finish; check store.path disk
//
// Alert 5: Index Rejections
//   Name: ChimeraIndexErrors
//   Condition: rate(chimera.artifacts.failed{error.code="INDEX_ERROR"}[5m]) > 0
//   Duration: 1m
//   Severity: warning
//   Message: "Similarity index rejecting upserts"
//   Action: Check qdrant reachability at index.addr; 'chimera validate' probes it
//
// Alert 6: Workers Saturated
//   Name: ChimeraWorkersSaturated
//   Condition: chimera.workers.active >= <engine.parallelism>
//   Duration: 10m
//   Severity: info
//   Message: "Dissection workers pinned at {{ $value }}"
//   Action: Expected during large runs; raise engine.parallelism if I/O allows
//
// OTEL QUERY EXAMPLES for OTEL UI or Grafana:
//
// 1. Failure Rate by Code (5-minute)
//    PromQL: rate(chimera.artifacts.failed{error.code=~".+"}[5m]) group by (error.code)
//
// 2. Dissection Success Percentage
//    PromQL: (rate(chimera.artifacts.dissected[5m]) /
//             (rate(chimera.artifacts.dissected[5m]) + rate(chimera.artifacts.failed[5m]))) * 100
//    Display: Single stat
//
// 3. Top Artifacts by Failures
//    PromQL: topk(5, sum(rate(chimera.artifacts.failed[5m])) by (chimera.artifact.name))
//    Display: Bar chart
//
// 4. Slowest Probe Domains
//    PromQL: topk(3, max(chimera.probe.latency.seconds) by (chimera.probe.domain))
//    Display: Bar chart
//
// TRACE STRUCTURE:
//
//   Dissect.Run                      one span per run, run id/name/counts
//     Dissect.Artifact               one span per artifact, name/path/arch/size
//                                    plus container version and tensor counts
//       Probe.Battery                one span per behavioral battery
//         Probe.Domain               one span per capability domain with
//                                    domain, score and mean latency
//
//   Bucket merge counts and the blueprint path land on Dissect.Run as
//   events and attributes once synthesis completes.
//
// INTEGRATION PATTERNS:
//
// 1. Run Postmortem:
//    - Find the Dissect.Run span for the run id from the report
//    - Child Dissect.Artifact spans without blueprint attributes failed early
//    - Correlate with chimera.artifacts.failed{error.code} in the same window
//
// 2. Backend Capacity Tuning:
//    - Watch chimera.probe.latency.seconds while raising engine.parallelism
//    - Back off when Probe.Domain span durations approach probe_timeout_seconds
//
// 3. SLO Tracking:
//    - Dissection success SLO: dissected/(dissected+failed) > 95% per run
//    - Probe health SLO: probe failure rate < 1% of completions
//
package main

// This file is documentation only and is not compiled.
// See pkg/telemetry/metrics.go and pkg/telemetry/attributes.go for implementation.

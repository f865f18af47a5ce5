// Package metrics provides Prometheus metrics for wxscribe runs.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for phaseOutcomesTotal.
const (
	OutcomeSuccess  = "success"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

var (
	// phaseDuration records how long each pipeline phase took.
	// Labels:
	//   - phase: model-load, audio-load, inference, alignment, export, conversion
	// Buckets: 0.5s up to 2h, transcription of long recordings on CPU is slow.
	phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wxscribe_phase_duration_seconds",
			Help:    "Duration of pipeline phases in seconds",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 300, 900, 1800, 3600, 7200},
		},
		[]string{"phase"},
	)

	// phaseOutcomesTotal counts how phases ended.
	// Labels:
	//   - phase: pipeline phase name
	//   - outcome: success, degraded, failed
	phaseOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wxscribe_phase_outcomes_total",
			Help: "Total number of pipeline phase completions by outcome",
		},
		[]string{"phase", "outcome"},
	)

	// commandExecutionTotal records external tool executions.
	// Labels:
	//   - command: ffmpeg, ffprobe, python
	//   - status: success, failed (non-zero exit), error (could not run)
	commandExecutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wxscribe_command_executions_total",
			Help: "Total number of external command executions",
		},
		[]string{"command", "status"},
	)

	// runsTotal counts finished runs.
	// Labels:
	//   - status: completed, failed, interrupted, no_input
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wxscribe_runs_total",
			Help: "Total number of transcription runs by final status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(phaseDuration)
	prometheus.MustRegister(phaseOutcomesTotal)
	prometheus.MustRegister(commandExecutionTotal)
	prometheus.MustRegister(runsTotal)
}

// RecordPhase records the duration and outcome of one pipeline phase.
func RecordPhase(phase, outcome string, durationSeconds float64) {
	phaseDuration.WithLabelValues(phase).Observe(durationSeconds)
	phaseOutcomesTotal.WithLabelValues(phase, outcome).Inc()
}

// RecordCommandExecution records one external command execution.
func RecordCommandExecution(command, status string) {
	commandExecutionTotal.WithLabelValues(command, status).Inc()
}

// RecordRun records the final status of a run.
func RecordRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// WriteTextfile dumps every registered metric to path in the text exposition
// format, for the node_exporter textfile collector. A CLI run has no scrape window.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

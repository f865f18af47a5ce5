package degradation

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func degradedCount(t *testing.T, phase string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "wxscribe_phase_outcomes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labels(m)["phase"] == phase && labels(m)["outcome"] == "degraded" {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labels(m *dto.Metric) map[string]string {
	out := map[string]string{}
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

func TestOutcome(t *testing.T) {
	ok := Success([]int{1, 2})
	assert.False(t, ok.IsDegraded())
	assert.Equal(t, []int{1, 2}, ok.Value)

	bad := Degraded("raw", errors.New("no align model"))
	assert.True(t, bad.IsDegraded())
	assert.EqualError(t, bad.Reason, "no align model")

	assert.True(t, Degraded(0, nil).IsDegraded())
}

func TestAttempt_Success(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))

	out, err := Attempt(context.Background(), log, "attempt-ok", func() (string, error) { return "aligned", nil }, "raw")

	require.NoError(t, err)
	assert.False(t, out.IsDegraded())
	assert.Equal(t, "aligned", out.Value)
	assert.NotContains(t, logs.String(), "level=WARN")
}

func TestAttempt_FallsBack(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))
	before := degradedCount(t, "attempt-degrade")

	out, err := Attempt(context.Background(), log, "attempt-degrade", func() (string, error) {
		return "", errors.New("model download failed")
	}, "raw")

	require.NoError(t, err)
	assert.True(t, out.IsDegraded())
	assert.Equal(t, "raw", out.Value)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "model download failed")
	assert.Equal(t, before+1, degradedCount(t, "attempt-degrade"))
}

func TestAttempt_CancellationIsNotDegrade(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Attempt(ctx, slog.Default(), "attempt-cancel", func() (int, error) {
		return 0, ctx.Err()
	}, 7)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, degradedCount(t, "attempt-cancel"))
}

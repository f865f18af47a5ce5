package catalog

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ThroughputTable maps a model name to its real-time factor: seconds of
// processing per second of audio on the target CPU profile.
type ThroughputTable struct {
	rtf map[string]float64
}

// defaultRTF is measured for CPU float32 inference.
var defaultRTF = map[string]float64{
	"tiny":     0.6,
	"base":     1.0,
	"small":    1.6,
	"medium":   3.0,
	"large":    5.0,
	"large-v3": 5.0,
}

// NewThroughputTable validates that rtf covers every model in Models and that
// every factor is positive. Entries for unknown models are rejected too.
func NewThroughputTable(rtf map[string]float64) (*ThroughputTable, error) {
	var missing, invalid []string
	for _, m := range models {
		f, ok := rtf[m.Name]
		if !ok {
			missing = append(missing, m.Name)
			continue
		}
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			invalid = append(invalid, m.Name)
		}
	}
	for name := range rtf {
		if _, err := LookupModel(name); err != nil {
			invalid = append(invalid, name)
		}
	}
	sort.Strings(invalid)

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: no throughput entry for %s", ErrUnknownModel, strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid throughput entries: %s", strings.Join(invalid, ", "))
	}

	table := &ThroughputTable{rtf: make(map[string]float64, len(rtf))}
	for k, v := range rtf {
		table.rtf[k] = v
	}
	return table, nil
}

// MustThroughputTable is NewThroughputTable that panics on error.
func MustThroughputTable(rtf map[string]float64) *ThroughputTable {
	t, err := NewThroughputTable(rtf)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultThroughput is validated when the package loads.
var DefaultThroughput = MustThroughputTable(defaultRTF)

// Factor returns the real-time factor for model.
func (t *ThroughputTable) Factor(model string) (float64, error) {
	f, ok := t.rtf[model]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	return f, nil
}

// Estimate returns the expected wall-clock processing time for durationSec
// seconds of audio. ok is false when the duration is unknown (≤0, NaN, Inf)
// or the model is not in the table.
func (t *ThroughputTable) Estimate(durationSec float64, model string) (time.Duration, bool) {
	if durationSec <= 0 || math.IsNaN(durationSec) || math.IsInf(durationSec, 0) {
		return 0, false
	}
	f, err := t.Factor(model)
	if err != nil {
		return 0, false
	}
	return time.Duration(durationSec * f * float64(time.Second)), true
}

// UnknownPlaceholder is shown where a duration or estimate cannot be computed.
const UnknownPlaceholder = "unknown"

// FormatEstimate renders an estimate the way the console shows it.
func FormatEstimate(d time.Duration, ok bool) string {
	if !ok {
		return UnknownPlaceholder
	}
	sec := d.Seconds()
	switch {
	case sec < 60:
		return fmt.Sprintf("~%d seconds", int(sec))
	case sec < 3600:
		return fmt.Sprintf("~%d minutes", int(sec/60))
	default:
		return fmt.Sprintf("~%.1f hours", sec/3600)
	}
}

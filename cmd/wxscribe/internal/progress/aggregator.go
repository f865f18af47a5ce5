// Package progress maps the self-reported progress of each run phase onto a
// single 0–100% scale and renders it as a one-line ASCII bar.
package progress

import (
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// BarWidth is the number of columns between the brackets.
const BarWidth = 40

var percentPattern = regexp.MustCompile(`(\d+\.?\d*)%`)

// Aggregator rescales a phase's local percentage into its global sub-range.
// Report is the progress callback; Write accepts raw text from a component that
// prints its progress instead.
type Aggregator struct {
	label    string
	start    float64
	end      float64
	out      io.Writer
	last     float64
	rendered bool
}

// New returns an aggregator for [start,end] writing to out.
func New(out io.Writer, label string, start, end float64) (*Aggregator, error) {
	if start < 0 || end > 100 || start >= end {
		return nil, fmt.Errorf("invalid progress range [%.2f,%.2f]", start, end)
	}
	return &Aggregator{label: label, start: start, end: end, out: out, last: start}, nil
}

// ForPhase returns an aggregator for ph.
func ForPhase(out io.Writer, ph Phase) (*Aggregator, error) {
	return New(out, ph.Label, ph.Start, ph.End)
}

// Global converts a local percentage to the global scale. Local values outside
// [0,100] are clamped so the result always lies within [start,end].
func (a *Aggregator) Global(local float64) float64 {
	if math.IsNaN(local) || local < 0 {
		local = 0
	}
	if local > 100 {
		local = 100
	}
	return a.start + (local/100)*(a.end-a.start)
}

// Report renders the bar for a local percentage. The displayed value never
// moves backwards within one aggregator.
func (a *Aggregator) Report(local float64) {
	pct := a.Global(local)
	if a.rendered && pct < a.last {
		pct = a.last
	}
	a.render(pct)
}

// Write scans p for "<float>%" tokens and reports each one. Text without a
// token is ignored.
func (a *Aggregator) Write(p []byte) (int, error) {
	for _, m := range percentPattern.FindAllStringSubmatch(string(p), -1) {
		local, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		a.Report(local)
	}
	return len(p), nil
}

// Start renders the bar at the beginning of the range.
func (a *Aggregator) Start() {
	a.render(a.start)
}

// Finish renders the end of the range and terminates the line, whatever the
// last reported value was.
func (a *Aggregator) Finish() {
	a.render(a.end)
	fmt.Fprint(a.out, "\n")
}

// Last returns the last rendered global percentage.
func (a *Aggregator) Last() float64 {
	return a.last
}

func (a *Aggregator) render(pct float64) {
	a.last = pct
	a.rendered = true
	fmt.Fprint(a.out, RenderBar(a.label, pct))
}

// RenderBar formats one bar line: carriage return, label, 40-column bar with a
// '>' cursor at the filled boundary, percentage with two decimals.
func RenderBar(label string, pct float64) string {
	filled := int(BarWidth * pct / 100)
	if filled < 0 {
		filled = 0
	}
	var bar string
	if filled < BarWidth {
		bar = strings.Repeat("=", filled) + ">" + strings.Repeat(" ", BarWidth-filled-1)
	} else {
		bar = strings.Repeat("=", BarWidth)
	}
	return fmt.Sprintf("\r  %s: [%s] %6.2f%%", label, bar, pct)
}

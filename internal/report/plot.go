package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/born-ml/attnet/internal/history"
	"gonum.org/v1/gonum/floats"
)

// DefaultPlotWidth is the number of columns of a sparkline when none is given.
const DefaultPlotWidth = 60

var ticks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders values as one line of block characters, at most width
// runes long. Longer series are averaged into width buckets. Each series is
// scaled to its own range; NaN renders as a space.
func Sparkline(values []float64, width int) string {
	if width <= 0 {
		width = DefaultPlotWidth
	}
	values = resample(values, width)

	var finite []float64
	for _, v := range values {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	var lo, hi float64
	if len(finite) > 0 {
		lo, hi = floats.Min(finite), floats.Max(finite)
	}

	var sb strings.Builder
	for _, v := range values {
		switch {
		case math.IsNaN(v):
			sb.WriteRune(' ')
		case hi == lo:
			sb.WriteRune(ticks[0])
		default:
			i := int((v - lo) / (hi - lo) * float64(len(ticks)-1))
			sb.WriteRune(ticks[min(max(i, 0), len(ticks)-1)])
		}
	}
	return sb.String()
}

// resample averages values into width buckets, ignoring NaN. A bucket with
// only NaN stays NaN.
func resample(values []float64, width int) []float64 {
	n := len(values)
	if n <= width {
		return values
	}
	out := make([]float64, width)
	for b := range out {
		start, end := b*n/width, (b+1)*n/width
		var sum float64
		var count int
		for _, v := range values[start:end] {
			if !math.IsNaN(v) {
				sum += v
				count++
			}
		}
		out[b] = math.NaN()
		if count > 0 {
			out[b] = sum / float64(count)
		}
	}
	return out
}

// Plot draws one sparkline per metric with its first and last value.
type Plot struct {
	w     io.Writer
	width int
}

// NewPlot creates a Plot consumer writing to w. width <= 0 selects
// DefaultPlotWidth.
func NewPlot(w io.Writer, width int) *Plot {
	if width <= 0 {
		width = DefaultPlotWidth
	}
	return &Plot{w: w, width: width}
}

// Consume implements history.Consumer.
func (p *Plot) Consume(h *history.History) error {
	series := []struct {
		name   string
		values []float64
	}{
		{"train_loss", h.TrainLoss()},
		{"val_loss", h.ValLoss()},
		{"train_acc", h.TrainAccuracy()},
		{"val_acc", h.ValAccuracy()},
	}
	if _, err := fmt.Fprintf(p.w, "%d epochs\n", h.Len()); err != nil {
		return err
	}
	for _, s := range series {
		first, last := math.NaN(), math.NaN()
		if len(s.values) > 0 {
			first, last = s.values[0], s.values[len(s.values)-1]
		}
		if _, err := fmt.Fprintf(p.w, "%-10s %8.4f %s %8.4f\n",
			s.name, first, Sparkline(s.values, p.width), last); err != nil {
			return err
		}
	}
	return nil
}

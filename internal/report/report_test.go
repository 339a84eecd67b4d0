package report

import (
	"bytes"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/born-ml/attnet/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *history.History {
	h := history.New()
	h.Append(history.Entry{TrainLoss: 2.0, ValLoss: 2.1, TrainAccuracy: 0.2, ValAccuracy: 0.25})
	h.Append(history.Entry{TrainLoss: 1.5, ValLoss: 1.4, TrainAccuracy: 0.4, ValAccuracy: 0.5})
	h.Append(history.Entry{TrainLoss: 1.0, ValLoss: 1.6, TrainAccuracy: 0.6, ValAccuracy: 0.45})
	return h
}

func TestWriteCSV(t *testing.T) {
	h := sample()
	h.PadTo(4)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, h))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "epoch,train_loss,val_loss,train_accuracy,val_accuracy", lines[0])
	assert.Equal(t, "1,2,2.1,0.2,0.25", lines[1])
	assert.Equal(t, "4,NaN,NaN,NaN,NaN", lines[4])
}

func TestCSV_Consume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, NewCSV(path).Consume(sample()))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(content), "\n"))

	err = NewCSV(filepath.Join(t.TempDir(), "missing", "history.csv")).Consume(sample())
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	h := history.New()
	h.PadTo(1)
	for _, e := range sample().Entries() {
		h.Append(e)
	}

	st := Summarize(h)
	assert.Equal(t, 4, st.Epochs)
	assert.Equal(t, 1, st.Padded)
	assert.Equal(t, 3, st.BestEpoch)
	assert.InDelta(t, 0.5, st.BestValAccuracy, 1e-12)
	assert.InDelta(t, 1.0, st.FinalTrainLoss, 1e-12)
	assert.InDelta(t, 1.6, st.FinalValLoss, 1e-12)
	assert.InDelta(t, 1.4, st.MinValLoss, 1e-12)
}

func TestSummarize_Empty(t *testing.T) {
	st := Summarize(history.New())
	assert.Zero(t, st.Epochs)
	assert.Zero(t, st.BestEpoch)
	assert.True(t, math.IsNaN(st.BestValAccuracy))
}

func TestSummary_Consume(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	require.NoError(t, NewSummary(logger).Consume(sample()))
	assert.Contains(t, buf.String(), "training summary")
	assert.Contains(t, buf.String(), "best_epoch=2")
}

func TestSparkline(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		width  int
		want   string
	}{
		{"empty", nil, 10, ""},
		{"ascending", []float64{0, 1, 2, 3, 4, 5, 6, 7}, 10, "▁▂▃▄▅▆▇█"},
		{"descending", []float64{7, 0}, 10, "█▁"},
		{"constant", []float64{3, 3, 3}, 10, "▁▁▁"},
		{"nan gap", []float64{0, math.NaN(), 1}, 10, "▁ █"},
		{"bucketed", []float64{0, 0, 1, 1}, 2, "▁█"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sparkline(tt.values, tt.width))
		})
	}
}

func TestSparkline_Width(t *testing.T) {
	values := make([]float64, 500)
	for i := range values {
		values[i] = math.Sin(float64(i) / 20)
	}
	assert.Equal(t, 40, utf8.RuneCountInString(Sparkline(values, 40)))
	assert.Equal(t, DefaultPlotWidth, utf8.RuneCountInString(Sparkline(values, 0)))
}

func TestPlot_Consume(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPlot(&buf, 20).Consume(sample()))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "3 epochs\n"))
	for _, name := range []string{"train_loss", "val_loss", "train_acc", "val_acc"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "█")
}

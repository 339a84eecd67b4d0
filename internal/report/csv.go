package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/born-ml/attnet/internal/history"
	"github.com/born-ml/attnet/internal/serialization"
)

var csvHeader = []string{"epoch", "train_loss", "val_loss", "train_accuracy", "val_accuracy"}

// WriteCSV writes h as CSV: a header row, then one row per epoch. Padded
// entries are written as NaN.
func WriteCSV(w io.Writer, h *history.History) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i, e := range h.Entries() {
		row := []string{
			strconv.Itoa(i + 1),
			formatFloat(e.TrainLoss),
			formatFloat(e.ValLoss),
			formatFloat(e.TrainAccuracy),
			formatFloat(e.ValAccuracy),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// CSV writes the history to Path, replacing the file atomically.
type CSV struct {
	Path string
}

// NewCSV creates a CSV consumer writing to path.
func NewCSV(path string) *CSV {
	return &CSV{Path: path}
}

// Consume implements history.Consumer.
func (c *CSV) Consume(h *history.History) error {
	return serialization.AtomicWriteFile(c.Path, func(w io.Writer) error {
		return WriteCSV(w, h)
	})
}

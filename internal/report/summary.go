package report

import (
	"log/slog"
	"math"

	"github.com/born-ml/attnet/internal/history"
	"gonum.org/v1/gonum/floats"
)

// Stats condenses a history.
type Stats struct {
	Epochs          int     // Entries in the history
	Padded          int     // Entries without recorded metrics
	BestEpoch       int     // 1-based epoch of the best validation accuracy (0 if none)
	BestValAccuracy float64 // Validation accuracy at BestEpoch
	FinalTrainLoss  float64 // Training loss of the last recorded epoch
	FinalValLoss    float64 // Validation loss of the last recorded epoch
	MinValLoss      float64 // Lowest validation loss
}

// Summarize computes Stats for h. Padded (NaN) entries are skipped; with
// no recorded epoch every metric is NaN and BestEpoch is 0.
func Summarize(h *history.History) Stats {
	nan := math.NaN()
	st := Stats{
		Epochs:          h.Len(),
		BestValAccuracy: nan,
		FinalTrainLoss:  nan,
		FinalValLoss:    nan,
		MinValLoss:      nan,
	}

	var epochs []int
	var valAcc, valLoss []float64
	for i, e := range h.Entries() {
		if math.IsNaN(e.TrainLoss) && math.IsNaN(e.ValLoss) {
			st.Padded++
			continue
		}
		epochs = append(epochs, i+1)
		valAcc = append(valAcc, e.ValAccuracy)
		valLoss = append(valLoss, e.ValLoss)
		st.FinalTrainLoss = e.TrainLoss
		st.FinalValLoss = e.ValLoss
	}
	if len(epochs) == 0 {
		return st
	}
	best := floats.MaxIdx(valAcc)
	st.BestEpoch = epochs[best]
	st.BestValAccuracy = valAcc[best]
	st.MinValLoss = floats.Min(valLoss)
	return st
}

// Summary logs the Stats of the final history.
type Summary struct {
	logger *slog.Logger
}

// NewSummary creates a Summary consumer logging to logger.
func NewSummary(logger *slog.Logger) *Summary {
	return &Summary{logger: logger}
}

// Consume implements history.Consumer.
func (s *Summary) Consume(h *history.History) error {
	st := Summarize(h)
	s.logger.Info("training summary",
		"epochs", st.Epochs,
		"padded", st.Padded,
		"best_epoch", st.BestEpoch,
		"best_val_acc", st.BestValAccuracy,
		"final_train_loss", st.FinalTrainLoss,
		"final_val_loss", st.FinalValLoss,
		"min_val_loss", st.MinValLoss,
	)
	return nil
}

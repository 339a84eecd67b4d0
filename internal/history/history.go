// Package history records per-epoch training metrics and persists them
// across training sessions.
//
// Entry i of a History corresponds to epoch i+1. The four metric sequences
// are always the same length: they grow together through Append and are
// only ever shortened or padded together when a session reconciles the
// history with a checkpoint.
package history

import (
	"fmt"
	"math"
	"strings"
)

// Entry holds the metrics of one epoch.
type Entry struct {
	TrainLoss     float64
	ValLoss       float64
	TrainAccuracy float64
	ValAccuracy   float64
}

// History is an append-only record of per-epoch metrics.
type History struct {
	trainLoss []float64
	valLoss   []float64
	trainAcc  []float64
	valAcc    []float64
}

// New returns an empty history.
func New() *History {
	return &History{}
}

// Append records the metrics of the next epoch.
func (h *History) Append(e Entry) {
	h.trainLoss = append(h.trainLoss, e.TrainLoss)
	h.valLoss = append(h.valLoss, e.ValLoss)
	h.trainAcc = append(h.trainAcc, e.TrainAccuracy)
	h.valAcc = append(h.valAcc, e.ValAccuracy)
}

// Len returns the number of recorded epochs.
func (h *History) Len() int {
	return len(h.trainLoss)
}

// At returns the metrics of epoch i+1. Panics if i is out of range.
func (h *History) At(i int) Entry {
	return Entry{
		TrainLoss:     h.trainLoss[i],
		ValLoss:       h.valLoss[i],
		TrainAccuracy: h.trainAcc[i],
		ValAccuracy:   h.valAcc[i],
	}
}

// Entries returns a copy of all recorded entries in epoch order.
func (h *History) Entries() []Entry {
	out := make([]Entry, h.Len())
	for i := range out {
		out[i] = h.At(i)
	}
	return out
}

// TrainLoss returns a copy of the training loss sequence.
func (h *History) TrainLoss() []float64 { return clone(h.trainLoss) }

// ValLoss returns a copy of the validation loss sequence.
func (h *History) ValLoss() []float64 { return clone(h.valLoss) }

// TrainAccuracy returns a copy of the training accuracy sequence.
func (h *History) TrainAccuracy() []float64 { return clone(h.trainAcc) }

// ValAccuracy returns a copy of the validation accuracy sequence.
func (h *History) ValAccuracy() []float64 { return clone(h.valAcc) }

// Truncate drops every entry after the first n. It is a no-op when the
// history holds n entries or fewer.
func (h *History) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n >= h.Len() {
		return
	}
	h.trainLoss = h.trainLoss[:n]
	h.valLoss = h.valLoss[:n]
	h.trainAcc = h.trainAcc[:n]
	h.valAcc = h.valAcc[:n]
}

// PadTo appends NaN entries until the history holds n entries. NaN marks
// epochs whose metrics were lost.
func (h *History) PadTo(n int) {
	nan := math.NaN()
	for h.Len() < n {
		h.Append(Entry{TrainLoss: nan, ValLoss: nan, TrainAccuracy: nan, ValAccuracy: nan})
	}
}

// Clone returns an independent copy.
func (h *History) Clone() *History {
	return &History{
		trainLoss: clone(h.trainLoss),
		valLoss:   clone(h.valLoss),
		trainAcc:  clone(h.trainAcc),
		valAcc:    clone(h.valAcc),
	}
}

// String renders the history as a table, one epoch per line.
func (h *History) String() string {
	var sb strings.Builder
	sb.WriteString("epoch  train_loss  val_loss  train_acc  val_acc\n")
	for i := 0; i < h.Len(); i++ {
		e := h.At(i)
		fmt.Fprintf(&sb, "%5d  %10.4f  %8.4f  %9.4f  %7.4f\n",
			i+1, e.TrainLoss, e.ValLoss, e.TrainAccuracy, e.ValAccuracy)
	}
	return sb.String()
}

func clone(s []float64) []float64 {
	return append([]float64(nil), s...)
}

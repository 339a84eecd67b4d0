package history

// Consumer receives the completed history when a training session
// terminates. Plotting, CSV export and summaries implement it.
type Consumer interface {
	Consume(h *History) error
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(h *History) error

// Consume calls f(h).
func (f ConsumerFunc) Consume(h *History) error {
	return f(h)
}

// Package report turns a finished training history into artifacts: a CSV
// file, a log summary and a terminal plot. Each of them is a
// history.Consumer that a training session calls once it terminates.
package report

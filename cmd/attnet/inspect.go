package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"text/tabwriter"

	"github.com/born-ml/attnet/internal/history"
	"github.com/born-ml/attnet/internal/nn"
	"github.com/born-ml/attnet/internal/report"
	"github.com/born-ml/attnet/internal/train"
)

func runInspect(args []string, stdout, stderr io.Writer) error {
	def := train.DefaultConfig()
	flags := flag.NewFlagSet("inspect", flag.ContinueOnError)
	flags.SetOutput(stderr)
	checkpoint := flags.String("checkpoint", def.CheckpointPath, "Checkpoint file")
	historyPath := flags.String("history", def.HistoryPath, "History file")
	tensors := flags.Bool("tensors", false, "List every stored tensor")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if err := inspectCheckpoint(stdout, *checkpoint, *tensors); err != nil {
		return err
	}
	fmt.Fprintln(stdout)
	return inspectHistory(stdout, *historyPath)
}

func inspectCheckpoint(w io.Writer, path string, listTensors bool) error {
	ck, file, err := nn.ReadCheckpoint(path)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(w, "checkpoint: none at %s\n", path)
		return nil
	}
	if err != nil {
		return err
	}
	modelState, optState := nn.SplitCheckpointState(file.StateDict)
	params := 0
	for _, raw := range modelState {
		params += raw.NumElements()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "checkpoint:\t%s\n", path)
	fmt.Fprintf(tw, "run id:\t%s\n", ck.RunID)
	fmt.Fprintf(tw, "created:\t%s\n", ck.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(tw, "epochs completed:\t%d\n", ck.Epoch)
	fmt.Fprintf(tw, "optimizer steps:\t%d\n", ck.Step)
	fmt.Fprintf(tw, "last train loss:\t%.4f\n", ck.Loss)
	fmt.Fprintf(tw, "next lr:\t%g\n", ck.LR)
	fmt.Fprintf(tw, "optimizer:\t%s\n", file.Header.CheckpointMeta.OptimizerType)
	fmt.Fprintf(tw, "model values:\t%d in %d tensors\n", params, len(modelState))
	fmt.Fprintf(tw, "optimizer tensors:\t%d\n", len(optState))
	for _, key := range sortedKeys(ck.Metadata) {
		fmt.Fprintf(tw, "%s:\t%v\n", key, ck.Metadata[key])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if listTensors {
		for _, name := range sortedKeys(file.StateDict) {
			fmt.Fprintf(w, "  %-48s %v\n", name, file.StateDict[name].Shape())
		}
	}
	return nil
}

func inspectHistory(w io.Writer, path string) error {
	h, err := history.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(w, "history: none at %s\n", path)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "history: %s\n", path)
	fmt.Fprint(w, h.String())
	if h.Len() == 0 {
		return nil
	}
	fmt.Fprintln(w)
	return report.NewPlot(w, 0).Consume(h)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

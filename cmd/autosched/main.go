// Command autosched reads a pipeline description and a machine
// parameters file, runs the auto-scheduler, and prints the resulting
// schedule transcript.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/loopfuse/autosched/machine"
	"github.com/loopfuse/autosched/partition"
	"github.com/loopfuse/autosched/schedule"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)

	pipelinePath := flag.String("pipeline", "", "path to the pipeline JSON description (required)")
	machinePath := flag.String("machine", "", "path to a YAML machine parameters override file")
	outputPath := flag.String("out", "", "write the schedule as JSON to this path instead of stdout")
	flag.Parse()
	defer klog.Flush()

	if *pipelinePath == "" {
		fmt.Fprintln(os.Stderr, "usage: autosched -pipeline pipeline.json [-machine machine.yaml] [-out schedule.json]")
		os.Exit(2)
	}

	runID := uuid.New()
	klog.Infof("run %s: scheduling %s", runID, *pipelinePath)

	if err := run(*pipelinePath, *machinePath, *outputPath); err != nil {
		klog.Errorf("run %s failed: %+v", runID, err)
		os.Exit(1)
	}
}

func run(pipelinePath, machinePath, outputPath string) error {
	data, err := os.ReadFile(pipelinePath)
	if err != nil {
		return errors.Wrapf(err, "reading pipeline %q", pipelinePath)
	}

	env, outputs, err := decodePipeline(data)
	if err != nil {
		return errors.Wrap(err, "decoding pipeline")
	}

	m := machine.Default()
	if machinePath != "" {
		override, err := machine.Load(machinePath)
		if err != nil {
			return errors.Wrap(err, "loading machine parameters")
		}
		m = m.MergeFrom(override)
	}
	klog.V(1).Infof("machine params: parallelism=%d llc=%s balance=%d vector_bytes=%d",
		m.Parallelism, humanize.Bytes(uint64(m.LastLevelCacheSize)), m.Balance, m.VectorBytes)

	p := partition.NewPartitioner(env, outputs, m)
	transcript, records := p.Schedule()

	if outputPath == "" {
		fmt.Print(transcript)
		return nil
	}

	summary := summarizeRecords(records)
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling schedule")
	}
	if err := os.WriteFile(outputPath, out, 0644); err != nil {
		return errors.Wrapf(err, "writing schedule %q", outputPath)
	}
	klog.Infof("wrote schedule for %d stages to %s", len(records), outputPath)
	return nil
}

// stageSummary is the JSON-friendly projection of a schedule.Record.
// The -out file holds one entry per stage, sorted by function name
// and then stage index.
type stageSummary struct {
	Func      string   `json:"func"`
	Stage     int      `json:"stage"`
	Inline    bool     `json:"inline"`
	Root      bool     `json:"root"`
	AtFunc    string   `json:"at_func,omitempty"`
	AtVar     string   `json:"at_var,omitempty"`
	Order     []string `json:"order,omitempty"`
	Vectorize string   `json:"vectorize,omitempty"`
	VecWidth  int      `json:"vec_width,omitempty"`
	Parallel  []string `json:"parallel,omitempty"`
}

func summarizeRecords(records map[partition.FStage]*schedule.Record) []stageSummary {
	stages := make([]partition.FStage, 0, len(records))
	for s := range records {
		stages = append(stages, s)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i].Less(stages[j]) })

	out := make([]stageSummary, 0, len(stages))
	for _, s := range stages {
		rec := records[s]
		out = append(out, stageSummary{
			Func:      rec.FuncName,
			Stage:     rec.Stage,
			Inline:    rec.Compute.Inline,
			Root:      rec.Compute.Root,
			AtFunc:    rec.Compute.AtFunc,
			AtVar:     rec.Compute.AtVar,
			Order:     rec.Order,
			Vectorize: rec.Vectorize,
			VecWidth:  rec.VecWidth,
			Parallel:  rec.Parallel,
		})
	}
	return out
}

package partition

import (
	"sort"

	"github.com/loopfuse/autosched/graphx"
	"github.com/loopfuse/autosched/ir"
	"github.com/loopfuse/autosched/machine"
	"github.com/loopfuse/autosched/schedule"
	"k8s.io/klog/v2"
)

// Partitioner is the top-level §6 entry point: it wires the graph
// builder, region analyzer, cost model, grouping engine, spatial
// locality analyzer and schedule emitter together against one
// pipeline environment.
type Partitioner struct {
	Env     map[string]*ir.Function
	Outputs []string
	Machine machine.Params
}

func NewPartitioner(env map[string]*ir.Function, outputs []string, m machine.Params) *Partitioner {
	return &Partitioner{Env: env, Outputs: outputs, Machine: m}
}

// Schedule runs the full pipeline and returns the accumulated
// directive transcript plus the per-stage schedule records it mutated.
//
// If any pipeline output is missing an estimate on one of its pure
// dimensions, the whole precondition fails (§6): every stage in the
// environment is scheduled compute_root and no grouping or cost
// analysis runs at all.
func (p *Partitioner) Schedule() (string, map[FStage]*schedule.Record) {
	records := map[FStage]*schedule.Record{}
	for name, f := range p.Env {
		for i := range f.Stages {
			records[FStage{name, i}] = &schedule.Record{FuncName: name, Stage: i}
		}
	}
	tr := &schedule.Transcript{}

	for _, name := range p.Outputs {
		f, ok := p.Env[name]
		if !ok || !f.HasEstimatesOnAllDims() {
			klog.Warningf("partition: output %q is missing a pipeline estimate, falling back to compute_root everywhere", name)
			p.computeRootFallback(records, tr)
			return tr.String(), records
		}
	}

	outputSet := map[string]bool{}
	for _, name := range p.Outputs {
		outputSet[name] = true
	}

	order := graphx.RealizationOrder(p.Env)
	graph := BuildGraph(p.Env, order)

	bounds := p.pipelineBounds()
	cm := NewCostModel(p.Env, bounds, p.Machine)
	engine := NewEngine(p.Env, graph, cm, outputSet)
	engine.Run()

	groupNames := make([]string, 0, len(engine.Groups))
	for name := range engine.Groups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)

	for _, name := range groupNames {
		EmitGroup(engine.Groups[name], p.Env, p.Machine, bounds, records, tr)
	}

	return tr.String(), records
}

func (p *Partitioner) computeRootFallback(records map[FStage]*schedule.Record, tr *schedule.Transcript) {
	var names []string
	for name := range p.Env {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := p.Env[name]
		for i := range f.Stages {
			schedule.NewHandle(records[FStage{name, i}], tr).ComputeRoot()
		}
	}
}

// pipelineBounds derives an allocation box for every function in the
// environment from that function's own estimates. Bounds are not
// propagated from the pipeline outputs: a dimension of a function
// without its own estimate stays Unknown. The cost model sizes memory
// footprints from these boxes, and the schedule emitter starts its
// spatial-locality allocation bounds from them.
func (p *Partitioner) pipelineBounds() PipelineBounds {
	bounds := PipelineBounds{}
	for name, f := range p.Env {
		box := make(ir.Box, len(f.PureArgs))
		for i, arg := range f.PureArgs {
			if est, ok := f.EstimateFor(arg); ok {
				box[i] = ir.KnownInterval(est.Min, est.Min+est.Extent-1)
			} else {
				box[i] = ir.UnknownInterval()
			}
		}
		bounds[name] = box
	}
	return bounds
}

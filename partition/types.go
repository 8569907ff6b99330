// Package partition is the CORE of the auto-scheduler: a cost-directed
// greedy grouping search over a pipeline's function stages, with an
// embedded region analysis and a cache-balance-aware cost model. It
// consumes the ir, graphx, regioncost, schedule and machine packages
// as external collaborators and produces a schedule transcript.
package partition

import (
	"fmt"

	"github.com/loopfuse/autosched/ir"
)

// FStage identifies one definition of a pipeline function: stage 0 is
// the pure definition, stages 1..k are updates in declaration order.
type FStage struct {
	Func  string
	Stage int
}

func (s FStage) String() string {
	if s.Stage == 0 {
		return s.Func
	}
	return fmt.Sprintf("%s.update(%d)", s.Func, s.Stage-1)
}

// Less gives the deterministic total order over stages used to break
// every tie in candidate selection: lexicographic by function name,
// then by stage index.
func (s FStage) Less(o FStage) bool {
	if s.Func != o.Func {
		return s.Func < o.Func
	}
	return s.Stage < o.Stage
}

// Group is a set of stages scheduled together around output's loop
// nest, per invariants I2-I5.
type Group struct {
	Output    FStage
	Members   []FStage
	Inlined   map[string]bool
	TileSizes map[string]int
}

func NewGroup(out FStage) *Group {
	return &Group{
		Output:    out,
		Members:   []FStage{out},
		Inlined:   map[string]bool{},
		TileSizes: map[string]int{},
	}
}

func (g *Group) Clone() *Group {
	c := &Group{
		Output:    g.Output,
		Members:   append([]FStage{}, g.Members...),
		Inlined:   make(map[string]bool, len(g.Inlined)),
		TileSizes: make(map[string]int, len(g.TileSizes)),
	}
	for k, v := range g.Inlined {
		c.Inlined[k] = v
	}
	for k, v := range g.TileSizes {
		c.TileSizes[k] = v
	}
	return c
}

// HasFunc reports whether any member of the group belongs to
// funcName.
func (g *Group) HasFunc(funcName string) bool {
	for _, m := range g.Members {
		if m.Func == funcName {
			return true
		}
	}
	return false
}

// GroupingChoice is a candidate edge contraction: absorb every stage
// of producerName into consumer's group.
type GroupingChoice struct {
	ProducerName string
	Consumer     FStage
}

// GroupConfig is the memoized result of hypothetically applying a
// GroupingChoice: the tile sizes it would use and the resulting
// analysis.
type GroupConfig struct {
	TileSizes map[string]int
	Analysis  GroupAnalysis
	Inlined   bool
}

// Cost pairs arithmetic and memory cost, either of which may be
// unknown. Known(i64) | Unknown, never a sentinel integer.
type Cost struct {
	Arith, Memory int64
	Unknown       bool
}

func UnknownCost() Cost { return Cost{Unknown: true} }

func (c Cost) Sum() ir.Bound {
	if c.Unknown {
		return ir.Bound{}
	}
	return ir.Bound{Value: c.Arith + c.Memory, Known: true}
}

func (c Cost) Add(o Cost) Cost {
	if c.Unknown || o.Unknown {
		return UnknownCost()
	}
	return Cost{c.Arith + o.Arith, c.Memory + o.Memory, false}
}

func (c Cost) Sub(o Cost) Cost {
	if c.Unknown || o.Unknown {
		return UnknownCost()
	}
	return Cost{c.Arith - o.Arith, c.Memory - o.Memory, false}
}

// GroupAnalysis is a group's cost and estimated parallelism, per §3.
type GroupAnalysis struct {
	Cost        Cost
	Parallelism ir.Bound
}

func UnknownAnalysis() GroupAnalysis {
	return GroupAnalysis{Cost: UnknownCost()}
}

// PipelineBounds maps a function name to its integer bounding box,
// taken from that function's own estimates; a dimension without an
// estimate is Unknown (see Partitioner.pipelineBounds).
type PipelineBounds map[string]ir.Box

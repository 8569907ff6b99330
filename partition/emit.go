package partition

import (
	"sort"

	"github.com/loopfuse/autosched/ir"
	"github.com/loopfuse/autosched/machine"
	"github.com/loopfuse/autosched/schedule"
)

// EmitGroup is §4.G, the schedule emitter: it replays one finished
// group's grouping and tiling decision as stage-mutator directives,
// every one of them appended to tr.
//
//   - every inlined member gets compute_inline()
//   - the group's output stage gets compute_root(), reordered by
//     spatial locality, split per its tile sizes, vectorized on its
//     innermost dim when that dim is parallelizable, and parallelized
//     from the outside in
//   - every other member (a producer absorbed whole, not inlined) gets
//     compute_at(output, tileInnerVar), or compute_root() as a fallback
//     when the group carries no tiled dim to anchor it to
func EmitGroup(g *Group, env map[string]*ir.Function, m machine.Params, allocBounds PipelineBounds, records map[FStage]*schedule.Record, tr *schedule.Transcript) {
	inlinedNames := make([]string, 0, len(g.Inlined))
	for name := range g.Inlined {
		inlinedNames = append(inlinedNames, name)
	}
	sort.Strings(inlinedNames)
	for _, name := range inlinedNames {
		f, ok := env[name]
		if !ok {
			continue
		}
		for i := range f.Stages {
			rec, ok := records[FStage{name, i}]
			if !ok {
				continue
			}
			schedule.NewHandle(rec, tr).ComputeInline()
		}
	}

	outF, ok := env[g.Output.Func]
	if !ok {
		return
	}
	outRec, ok := records[g.Output]
	if !ok {
		return
	}
	outHandle := schedule.NewHandle(outRec, tr)
	outHandle.ComputeRoot()

	dims := outF.Stages[g.Output.Stage].Dims
	tile := tileBounds(outF, g.Output.Stage, g.TileSizes)
	groupBounds := groupStorageBounds(g, env, outF, tile, allocBounds)
	order := ReorderDims(outF, g.Output.Stage, env, g.Inlined, groupBounds)
	if len(order) == 0 {
		return // a stage with no loop dims has nothing to split, reorder or parallelize
	}
	fullBounds := stageFullBounds(outF, g.Output.Stage)

	outerNameOf := map[string]string{}
	var innerList, outerList []string
	for i, v := range order {
		if i == len(order)-1 {
			continue // outermost dim, placed last, never split here
		}
		t, hasTile := g.TileSizes[v]
		extent := fullBounds[v].Extent()
		if hasTile && t > 1 && extent.Known && extent.Value > int64(t) {
			outer := v + "_o"
			inner := v + "_i"
			outHandle.Split(v, outer, inner, t)
			innerList = append(innerList, inner)
			outerList = append(outerList, outer)
			outerNameOf[v] = outer
		} else {
			outerList = append(outerList, v)
			outerNameOf[v] = v
		}
	}
	outermost := order[len(order)-1]
	outerNameOf[outermost] = outermost

	finalOrder := append(append(append([]string{}, innerList...), outerList...), outermost)
	outHandle.Reorder(finalOrder)

	tileInnerVar := ""
	if len(innerList) > 0 {
		tileInnerVar = innerList[0]
	}

	if vecWidth := m.NaturalVectorSize(outF.ElementBytes); vecWidth > 1 {
		candidate := ""
		if len(innerList) > 0 {
			candidate = innerList[0]
		} else if len(outerList) > 0 {
			candidate = outerList[0]
		}
		if candidate != "" && dimParallelizable(dims, stripTileSuffix(candidate)) {
			vecOuter := candidate + "_vo"
			vecInner := candidate + "_vi"
			outHandle.Split(candidate, vecOuter, vecInner, vecWidth)
			outHandle.Vectorize(vecInner, vecWidth)
		}
	}

	achieved := int64(1)
	for i := len(order) - 1; i >= 0; i-- {
		if achieved >= m.Parallelism {
			break
		}
		v := order[i]
		if !dimParallelizable(dims, v) {
			break // sequential interior: a non-commutative reduction blocks further parallelism
		}
		outHandle.Parallel(outerNameOf[v])
		extent := fullBounds[v].Extent()
		if !extent.Known {
			break
		}
		achieved *= extent.Value
	}

	for _, stg := range g.Members {
		if stg.Func == g.Output.Func {
			continue
		}
		if g.Inlined[stg.Func] {
			continue
		}
		rec, ok := records[stg]
		if !ok {
			continue
		}
		h := schedule.NewHandle(rec, tr)
		if tileInnerVar != "" {
			h.ComputeAt(g.Output.Func, tileInnerVar)
		} else {
			h.ComputeRoot()
		}
	}
}

// groupStorageBounds is §4.G's preamble: the regions each member
// needs inside one tile of the group's output, not the pipeline-wide
// extents. It starts from the global pipeline bounds, overlays the
// per-tile regions reached by this group's own traversal (covering
// every callee still referenced after inlining), and always sizes the
// output's own entry from its tile box rather than its full extent.
func groupStorageBounds(g *Group, env map[string]*ir.Function, outF *ir.Function, tile ir.DimBounds, pipelineBounds PipelineBounds) PipelineBounds {
	memberProds := map[string]bool{}
	for _, m := range g.Members {
		memberProds[m.Func] = true
	}
	analysis := NewAnalysis(env, pipelineBounds)
	regions := analysis.RegionsRequired(g.Output, tile, memberProds, false)

	scoped := PipelineBounds{}
	for name, box := range pipelineBounds {
		scoped[name] = box
	}
	for name, box := range regions {
		scoped[name] = box
	}
	scoped[g.Output.Func] = ir.Box(dimBoundsToBox(outF, g.Output.Stage, tile))
	return scoped
}

func dimParallelizable(dims []ir.Dim, v string) bool {
	for _, d := range dims {
		if d.Var == v {
			return !d.IsReduction || d.CommutativeAssociative
		}
	}
	return false
}

// stripTileSuffix undoes the "_i"/"_o" suffix EmitGroup appends when
// splitting, so a split var can be looked up against the original Dim.
func stripTileSuffix(v string) string {
	for _, suf := range []string{"_i", "_o"} {
		if len(v) > len(suf) && v[len(v)-len(suf):] == suf {
			return v[:len(v)-len(suf)]
		}
	}
	return v
}

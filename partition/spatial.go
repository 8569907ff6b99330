package partition

import (
	"sort"

	"github.com/loopfuse/autosched/ir"
)

// access is one right-hand-side callee reference, or the left-hand-side
// store, encountered while scanning a stage's inlined expressions.
type access struct {
	Callee string
	Idx    []ir.Expr
}

// collectAccesses is §4.F.1-2: inline the stage through inlined, then
// collect every (callee, index-expressions) pair plus the stage's own
// store access.
func collectAccesses(f *ir.Function, stageIdx int, env map[string]*ir.Function, inlined map[string]bool) []access {
	def := f.Stages[stageIdx]
	var accesses []access
	for _, v := range def.Values {
		inlinedExpr := ir.Inline(v, env, inlined)
		ir.Walk(inlinedExpr, func(x ir.Expr) {
			if c, ok := x.(ir.Call); ok {
				accesses = append(accesses, access{Callee: c.Func, Idx: c.Args})
			}
		})
	}
	var storeIdx []ir.Expr
	for _, a := range def.Args {
		storeIdx = append(storeIdx, ir.Inline(a, env, inlined))
	}
	accesses = append(accesses, access{Callee: f.Name, Idx: storeIdx})
	return accesses
}

// maxAccessStride is §4.F.4: walking the callee's storage dims
// outermost-to-innermost (index expressions and allocation bounds are
// both indexed by the callee's own storage rank, which need not match
// the caller's loop rank), track a running byte stride and take the
// widest one touched by a dim depending on v.
func maxAccessStride(a access, bounds ir.Box, elementBytes int64, v string) int64 {
	rank := len(a.Idx)
	currStride := elementBytes
	stride := int64(0)
	for i := rank - 1; i >= 0; i-- {
		if ir.UsesVar(a.Idx[i], v) {
			if currStride > stride {
				stride = currStride
			}
		}
		extent := int64(1)
		if i < len(bounds) {
			if e := bounds[i].Extent(); e.Known {
				extent = e.Value
			}
		}
		currStride *= extent
	}
	return stride
}

// varStrides is §4.F.5: sum of max-access-strides across every access,
// per non-outermost loop dim.
func varStrides(f *ir.Function, stageIdx int, env map[string]*ir.Function, inlined map[string]bool, allocBounds PipelineBounds) map[string]int64 {
	dims := f.Stages[stageIdx].Dims
	accesses := collectAccesses(f, stageIdx, env, inlined)
	strides := map[string]int64{}
	for i, d := range dims {
		if i == len(dims)-1 {
			continue // outermost: never reordered
		}
		var total int64
		for _, a := range accesses {
			box := allocBounds[a.Callee]
			elementBytes := int64(4)
			if callee, ok := env[a.Callee]; ok && callee.ElementBytes > 0 {
				elementBytes = int64(callee.ElementBytes)
			}
			total += maxAccessStride(a, box, elementBytes, d.Var)
		}
		strides[d.Var] = total
	}
	return strides
}

// ReorderDims is §4.F's final step: innermost-first by ascending
// stride. Pure dims may freely intermingle; reduction dims keep their
// original relative order, merged in by stride comparison against the
// current pure candidate.
func ReorderDims(f *ir.Function, stageIdx int, env map[string]*ir.Function, inlined map[string]bool, allocBounds PipelineBounds) []string {
	dims := f.Stages[stageIdx].Dims
	if len(dims) == 0 {
		return nil
	}
	strides := varStrides(f, stageIdx, env, inlined, allocBounds)

	outermost := dims[len(dims)-1].Var
	var pures, reductions []string
	for i, d := range dims {
		if i == len(dims)-1 {
			continue
		}
		if d.IsReduction {
			reductions = append(reductions, d.Var)
		} else {
			pures = append(pures, d.Var)
		}
	}
	sort.SliceStable(pures, func(i, j int) bool { return strides[pures[i]] < strides[pures[j]] })

	var result []string
	pi, ri := 0, 0
	for pi < len(pures) && ri < len(reductions) {
		if strides[reductions[ri]] < strides[pures[pi]] {
			result = append(result, reductions[ri])
			ri++
		} else {
			result = append(result, pures[pi])
			pi++
		}
	}
	result = append(result, pures[pi:]...)
	result = append(result, reductions[ri:]...)
	result = append(result, outermost)
	return result
}

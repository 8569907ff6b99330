package partition

import (
	"github.com/loopfuse/autosched/ir"
	"github.com/loopfuse/autosched/machine"
	"github.com/loopfuse/autosched/regioncost"
)

// CostModel is §4.C: it turns a group's chosen tile sizes into an
// arithmetic + balance-weighted memory cost and a parallelism
// estimate, via the region analyzer and the region-cost oracle.
type CostModel struct {
	Analysis *Analysis
	Oracle   *regioncost.Oracle
	Env      map[string]*ir.Function
	Machine  machine.Params

	// ReuseModel toggles the extra initial-touch cost term. Default
	// off; the source wires it through but never enables it on the
	// main path.
	ReuseModel    bool
	InitialFactor float64
}

func NewCostModel(env map[string]*ir.Function, bounds PipelineBounds, m machine.Params) *CostModel {
	return &CostModel{
		Analysis: NewAnalysis(env, bounds),
		Oracle:   regioncost.NewOracle(env),
		Env:      env,
		Machine:  m,
	}
}

// stageFullBounds is the stage's declared estimate-derived bounds,
// with no tiling applied.
func stageFullBounds(f *ir.Function, stageIdx int) ir.DimBounds {
	db := ir.DimBounds{}
	for _, d := range f.Stages[stageIdx].Dims {
		if est, ok := f.EstimateFor(d.Var); ok {
			db[d.Var] = ir.KnownInterval(est.Min, est.Min+est.Extent-1)
		} else {
			db[d.Var] = ir.UnknownInterval()
		}
	}
	return db
}

// tileBounds is §4.C.1: the "minimum two tiles" condition. A
// dimension only uses its tile size when the full extent is at least
// twice the tile, otherwise the full extent is used untiled.
func tileBounds(f *ir.Function, stageIdx int, tileSizes map[string]int) ir.DimBounds {
	full := stageFullBounds(f, stageIdx)
	out := ir.DimBounds{}
	for _, d := range f.Stages[stageIdx].Dims {
		fullIv := full[d.Var]
		extent := fullIv.Extent()
		if t, ok := tileSizes[d.Var]; ok && extent.Known && extent.Value >= int64(2*t) {
			out[d.Var] = ir.KnownInterval(0, int64(t-1))
		} else {
			out[d.Var] = fullIv
		}
	}
	return out
}

// tileCountAndParallelism is §4.C.2: T is the product of ceil(extent
// / tile) over every dim; P is the same product restricted to
// parallelizable dims (pure, or a commutative-associative reduction).
func tileCountAndParallelism(f *ir.Function, stageIdx int, tileSizes map[string]int) (ir.Bound, ir.Bound) {
	full := stageFullBounds(f, stageIdx)
	T := ir.KnownBound(1)
	P := ir.KnownBound(1)
	for _, d := range f.Stages[stageIdx].Dims {
		extent := full[d.Var].Extent()
		tileD := extent
		if t, ok := tileSizes[d.Var]; ok && extent.Known && extent.Value >= int64(2*t) {
			tileD = ir.KnownBound(int64(t))
		}
		var ceilDiv ir.Bound
		if extent.Known && tileD.Known && tileD.Value > 0 {
			ceilDiv = ir.KnownBound((extent.Value + tileD.Value - 1) / tileD.Value)
		} else {
			ceilDiv = ir.UnknownBound()
		}
		T = T.Mul(ceilDiv)
		if !d.IsReduction || d.CommutativeAssociative {
			P = P.Mul(ceilDiv)
		}
	}
	return T, P
}

// costFactor is the piecewise-linear arithmetic-intensity penalty of
// §4.C.6: it grows with footprint and saturates at the machine's
// balance.
func costFactor(footprint int64, balance, llc int64) float64 {
	if llc <= 0 {
		return float64(balance)
	}
	f := 1.0 + float64(footprint)*(float64(balance)/float64(llc))
	if f > float64(balance) {
		return float64(balance)
	}
	return f
}

// AnalyzeGroup is §4.C's entry point.
func (cm *CostModel) AnalyzeGroup(g *Group) GroupAnalysis {
	f, ok := cm.Env[g.Output.Func]
	if !ok || g.Output.Stage >= len(f.Stages) {
		return UnknownAnalysis()
	}

	tile := tileBounds(f, g.Output.Stage, g.TileSizes)
	T, P := tileCountAndParallelism(f, g.Output.Stage, g.TileSizes)

	memberProds := map[string]bool{}
	for _, m := range g.Members {
		memberProds[m.Func] = true
	}

	allocated := cm.Analysis.RegionsRequired(g.Output, tile, memberProds, false)
	computed := cm.Analysis.RegionsRequired(g.Output, tile, memberProds, true)

	internals := map[string]ir.Box{}
	producerInputs := map[string]ir.Box{}
	opaqueInputs := map[string]ir.Box{}
	for name, box := range computed {
		switch {
		case g.HasFunc(name):
			internals[name] = box
		default:
			if _, inEnv := cm.Env[name]; inEnv {
				producerInputs[name] = box
			} else {
				opaqueInputs[name] = box
			}
		}
	}

	internalsCost := cm.Oracle.RegionCost(internals, g.Inlined)
	outputCost := cm.Oracle.StageRegionCost(g.Output.Func, g.Output.Stage, tile, g.Inlined)
	if internalsCost.Unknown || outputCost.Unknown {
		return UnknownAnalysis()
	}

	loads := cm.Oracle.DetailedLoadCosts(internals, g.Inlined)
	regioncost.CombineLoadCosts(loads, cm.Oracle.DetailedLoadCosts(producerInputs, g.Inlined))
	regioncost.CombineLoadCosts(loads, cm.Oracle.DetailedLoadCosts(opaqueInputs, g.Inlined))
	regioncost.CombineLoadCosts(loads, cm.Oracle.StageDetailedLoadCosts(g.Output.Func, g.Output.Stage, tile, g.Inlined))

	outBox := ir.Box(dimBoundsToBox(f, g.Output.Stage, tile))
	outSize := outBox.Size()
	if !outSize.Known {
		return UnknownAnalysis()
	}

	perTileMemory := 0.0
	for name, box := range allocated {
		if g.Inlined[name] {
			continue
		}
		ld, ok := loads[name]
		if !ok {
			continue
		}
		footprint := cm.footprintSize(name, box)
		if !footprint.Known {
			return UnknownAnalysis()
		}
		factor := costFactor(footprint.Value, cm.Machine.Balance, cm.Machine.LastLevelCacheSize)
		term := factor * float64(ld)
		if cm.ReuseModel {
			term += cm.InitialFactor * float64(footprint.Value)
		}
		perTileMemory += term
	}
	{
		footprint := cm.footprintSize(g.Output.Func, outBox)
		if !footprint.Known {
			return UnknownAnalysis()
		}
		factor := costFactor(footprint.Value, cm.Machine.Balance, cm.Machine.LastLevelCacheSize)
		perTileMemory += factor * float64(outSize.Value)
	}

	if !T.Known || !P.Known {
		return UnknownAnalysis()
	}

	perTileArith := internalsCost.Arith + outputCost.Arith

	return GroupAnalysis{
		Cost: Cost{
			Arith:  perTileArith * T.Value,
			Memory: int64(perTileMemory) * T.Value,
		},
		Parallelism: P,
	}
}

// footprintSize is §4.C.6's "full pipeline region for the first
// access": with the reuse model off (the default), a producer's
// cache-balance footprint is sized from its full pipeline extent, not
// the group's own per-tile box, since the group's first tile cannot
// assume any of a producer's region is already resident. Falls back
// to the per-tile box when the producer has no recorded pipeline
// bounds (e.g. an opaque input with no estimate).
func (cm *CostModel) footprintSize(name string, tileBox ir.Box) ir.Bound {
	if full, ok := cm.Analysis.Bounds[name]; ok {
		if sz := full.Size(); sz.Known {
			return sz
		}
	}
	return tileBox.Size()
}

func dimBoundsToBox(f *ir.Function, stageIdx int, bounds ir.DimBounds) ir.Box {
	dims := f.Stages[stageIdx].Dims
	box := make(ir.Box, len(dims))
	for i, d := range dims {
		box[i] = bounds[d.Var]
	}
	return box
}

// Package regioncost is the reference implementation of the §6
// "region-cost oracle" external collaborator: arithmetic and memory
// cost of a region of a function, and per-callee detailed load
// counts. The cost queries return Unknown whenever any input extent
// is unknown; the load-count queries have no Unknown result and leave
// out any callee whose region size is unknown.
package regioncost

import "github.com/loopfuse/autosched/ir"

// Cost is a pair of arithmetic and memory cost estimates. Unknown
// mirrors the tagged Known|Unknown convention used throughout: any
// operation that touches an unknown region produces an Unknown cost.
type Cost struct {
	Arith, Memory int64
	Unknown       bool
}

func UnknownCost() Cost { return Cost{Unknown: true} }

func (c Cost) Add(o Cost) Cost {
	if c.Unknown || o.Unknown {
		return UnknownCost()
	}
	return Cost{c.Arith + o.Arith, c.Memory + o.Memory, false}
}

// Oracle is the contract the cost model consults. env is the
// pipeline's function environment; inlined functions contribute no
// separate region of their own (their cost is folded into the
// consumer's arithmetic instead).
type Oracle struct {
	Env map[string]*ir.Function
}

func NewOracle(env map[string]*ir.Function) *Oracle {
	return &Oracle{Env: env}
}

// RegionCost sums the arithmetic and memory cost of materializing the
// given regions (one box per function), skipping any function named
// in inlined since its values are never stored.
func (o *Oracle) RegionCost(regions map[string]ir.Box, inlined map[string]bool) Cost {
	total := Cost{}
	for name, box := range regions {
		if inlined[name] {
			continue
		}
		f, ok := o.Env[name]
		if !ok {
			// Opaque pipeline input: memory-only cost of reading it.
			sz := box.Size()
			if !sz.Known {
				return UnknownCost()
			}
			total.Memory += sz.Value
			continue
		}
		c := o.functionRegionCost(f, box, inlined)
		if c.Unknown {
			return UnknownCost()
		}
		total = total.Add(c)
	}
	return total
}

func (o *Oracle) functionRegionCost(f *ir.Function, box ir.Box, inlined map[string]bool) Cost {
	sz := box.Size()
	if !sz.Known {
		return UnknownCost()
	}
	opsPerElement := 0
	for _, stg := range f.Stages {
		for _, v := range stg.Values {
			opsPerElement += ir.CountOps(ir.Inline(v, o.Env, inlined)) + 1
		}
	}
	if opsPerElement == 0 {
		opsPerElement = 1
	}
	return Cost{
		Arith:  sz.Value * int64(opsPerElement),
		Memory: sz.Value,
	}
}

// StageRegionCost is the cost of a single stage's tile, described by
// bounds rather than an already-resolved Box.
func (o *Oracle) StageRegionCost(funcName string, stage int, bounds ir.DimBounds, inlined map[string]bool) Cost {
	f, ok := o.Env[funcName]
	if !ok || stage >= len(f.Stages) {
		return UnknownCost()
	}
	extent := int64(1)
	for _, iv := range bounds {
		e := iv.Extent()
		if !e.Known {
			return UnknownCost()
		}
		extent *= e.Value
	}
	def := f.Stages[stage]
	opsPerElement := 0
	for _, v := range def.Values {
		opsPerElement += ir.CountOps(ir.Inline(v, o.Env, inlined)) + 1
	}
	if opsPerElement == 0 {
		opsPerElement = 1
	}
	return Cost{
		Arith:  extent * int64(opsPerElement),
		Memory: extent,
	}
}

// DetailedLoadCosts returns, per non-inlined callee referenced while
// materializing regions, the number of element loads attributed to
// it. Inlined functions never appear as keys (callers fold their
// loads into the consumer's own count instead).
func (o *Oracle) DetailedLoadCosts(regions map[string]ir.Box, inlined map[string]bool) map[string]int64 {
	loads := map[string]int64{}
	for name, box := range regions {
		if inlined[name] {
			continue
		}
		sz := box.Size()
		if sz.Known {
			loads[name] = sz.Value
		}
	}
	return loads
}

// StageDetailedLoadCosts computes, for the stage's tile, the load
// count attributed to every producer it reads from directly.
func (o *Oracle) StageDetailedLoadCosts(funcName string, stage int, bounds ir.DimBounds, inlined map[string]bool) map[string]int64 {
	f, ok := o.Env[funcName]
	if !ok || stage >= len(f.Stages) {
		return nil
	}
	def := f.Stages[stage]
	loads := map[string]int64{}
	for _, v := range def.Values {
		boxes := ir.BoxesRequired(ir.Inline(v, o.Env, inlined), bounds)
		for callee, box := range boxes {
			if inlined[callee] {
				continue
			}
			sz := box.Size()
			if !sz.Known {
				continue
			}
			loads[callee] += sz.Value
		}
	}
	return loads
}

// CombineLoadCosts merges src into dst in place, summing on key
// collision (mirrors the bounds engine's merge_boxes idiom but for
// scalar load counts).
func CombineLoadCosts(dst map[string]int64, src map[string]int64) {
	for k, v := range src {
		dst[k] += v
	}
}

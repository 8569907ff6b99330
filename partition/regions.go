package partition

import "github.com/loopfuse/autosched/ir"

// Dimension ordering convention used throughout this package: a
// stage's Dims list runs innermost-first; the last entry is the
// outermost loop. This mirrors the storage-order convention of the
// pipeline's declared pure arguments.

// Analysis is the region analyzer (§4.B), also called the dependence
// analysis. It is read-only over the environment and pipeline bounds.
type Analysis struct {
	Env    map[string]*ir.Function
	Bounds PipelineBounds
}

func NewAnalysis(env map[string]*ir.Function, bounds PipelineBounds) *Analysis {
	return &Analysis{Env: env, Bounds: bounds}
}

type workItem struct {
	stage  FStage
	bounds ir.DimBounds
}

// RegionsRequired runs the iterative BFS region traversal described in
// §4.B.1, seeded at (stage, bounds). prods restricts which producer
// names are eligible to be enqueued for further traversal; onlyComputed
// excludes the seed stage's own function from the result when true.
func (a *Analysis) RegionsRequired(stage FStage, bounds ir.DimBounds, prods map[string]bool, onlyComputed bool) map[string]ir.Box {
	result := map[string]ir.Box{}
	queue := []workItem{{stage, bounds}}
	visited := map[FStage]bool{}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if visited[item.stage] {
			continue
		}
		visited[item.stage] = true

		f, ok := a.Env[item.stage.Func]
		if !ok || item.stage.Stage >= len(f.Stages) {
			continue
		}
		def := f.Stages[item.stage.Stage]

		exprs := append(append([]ir.Expr{}, def.Values...), def.Args...)

		if f.Extern {
			for _, ea := range def.ExternArgs {
				switch ea.Kind {
				case ir.ExternArgFunc:
					box := unboundedBox(ea.Rank)
					mergeInto(result, ea.FuncName, box)
					if prods[ea.FuncName] && ea.FuncName != item.stage.Func {
						queue = append(queue, workItem{FStage{ea.FuncName, finalStageOf(a.Env, ea.FuncName)}, item.bounds})
					}
				case ir.ExternArgBuffer:
					box := unboundedBox(ea.Rank)
					mergeInto(result, ea.FuncName, box)
				case ir.ExternArgExpr:
					// handled like a normal expr in the extern-expression loop below
				}
			}
		}

		for _, e := range exprs {
			boxes := ir.BoxesRequired(e, item.bounds)
			for name, box := range boxes {
				mergeInto(result, name, box)
				if !prods[name] || name == item.stage.Func {
					continue
				}
				pf, ok := a.Env[name]
				if !ok {
					continue
				}
				childBounds := boxToDimBounds(pf, box)
				queue = append(queue, workItem{FStage{name, len(pf.Stages) - 1}, childBounds})
			}
		}
		if f.Extern {
			for _, ea := range def.ExternArgs {
				if ea.Kind == ir.ExternArgExpr {
					boxes := ir.BoxesRequired(ea.Expr, item.bounds)
					for name, box := range boxes {
						mergeInto(result, name, box)
						if prods[name] && name != item.stage.Func {
							pf, ok := a.Env[name]
							if !ok {
								continue
							}
							queue = append(queue, workItem{FStage{name, len(pf.Stages) - 1}, boxToDimBounds(pf, box)})
						}
					}
				}
			}
		}
	}

	if onlyComputed {
		delete(result, stage.Func)
	}

	for name, box := range result {
		box = ir.SimplifyBox(box)
		result[name] = lowerToConcrete(a.Env[name], box)
	}
	return result
}

// RegionsRequiredFunc is the function-level convenience of §4.B.2: it
// runs RegionsRequired for every stage of f using stage-specific
// bounds derived from pureBounds, merging the outputs.
func (a *Analysis) RegionsRequiredFunc(f *ir.Function, pureBounds ir.DimBounds, prods map[string]bool, onlyComputed bool) map[string]ir.Box {
	result := map[string]ir.Box{}
	for i := range f.Stages {
		bounds := deriveStageBounds(f, i, pureBounds)
		stageResult := a.RegionsRequired(FStage{f.Name, i}, bounds, prods, onlyComputed)
		for name, box := range stageResult {
			mergeInto(result, name, box)
		}
	}
	return result
}

// RedundantRegions is §4.B.3: the overlap, per producer, between the
// region required at bounds and the region required at bounds shifted
// by one tile along var. A producer missing from the shifted query is
// dropped silently.
func (a *Analysis) RedundantRegions(stage FStage, v string, bounds ir.DimBounds, prods map[string]bool, onlyComputed bool) map[string]ir.Box {
	base := a.RegionsRequired(stage, bounds, prods, onlyComputed)

	shifted := bounds.Clone()
	iv, ok := shifted[v]
	if !ok {
		return map[string]ir.Box{}
	}
	extent := iv.Extent()
	shifted[v] = iv.Shift(extent)

	shiftedResult := a.RegionsRequired(stage, shifted, prods, onlyComputed)

	overlap := map[string]ir.Box{}
	for name, box := range base {
		sbox, ok := shiftedResult[name]
		if !ok {
			continue
		}
		inter := make(ir.Box, len(box))
		for i := range box {
			if i >= len(sbox) {
				inter[i] = ir.UnknownInterval()
				continue
			}
			inter[i] = box[i].Intersect(sbox[i])
		}
		overlap[name] = inter
	}
	return overlap
}

// OverlapRegions is §4.B.4: RedundantRegions computed for every
// non-outermost loop dimension of stage, in dimension order (the last
// declared dim is the outermost and is skipped).
func (a *Analysis) OverlapRegions(stage FStage, bounds ir.DimBounds, prods map[string]bool, onlyComputed bool) []map[string]ir.Box {
	f, ok := a.Env[stage.Func]
	if !ok || stage.Stage >= len(f.Stages) {
		return nil
	}
	dims := f.Stages[stage.Stage].Dims
	var result []map[string]ir.Box
	for i, d := range dims {
		if i == len(dims)-1 {
			continue // outermost
		}
		result = append(result, a.RedundantRegions(stage, d.Var, bounds, prods, onlyComputed))
	}
	return result
}

func mergeInto(result map[string]ir.Box, name string, box ir.Box) {
	if existing, ok := result[name]; ok {
		ir.MergeBoxes(&existing, box)
		result[name] = existing
	} else {
		cp := append(ir.Box{}, box...)
		result[name] = cp
	}
}

func unboundedBox(rank int) ir.Box {
	box := make(ir.Box, rank)
	for i := range box {
		box[i] = ir.UnknownInterval()
	}
	return box
}

func finalStageOf(env map[string]*ir.Function, name string) int {
	f, ok := env[name]
	if !ok {
		return 0
	}
	return len(f.Stages) - 1
}

func boxToDimBounds(f *ir.Function, box ir.Box) ir.DimBounds {
	db := make(ir.DimBounds, len(f.PureArgs))
	for i, arg := range f.PureArgs {
		if i < len(box) {
			db[arg] = box[i]
		} else {
			db[arg] = ir.UnknownInterval()
		}
	}
	return db
}

// lowerToConcrete replaces any unknown endpoint of box with the
// matching pure-argument estimate of f, when available.
func lowerToConcrete(f *ir.Function, box ir.Box) ir.Box {
	if f == nil {
		return box
	}
	out := append(ir.Box{}, box...)
	for i, iv := range out {
		if i >= len(f.PureArgs) {
			continue
		}
		if !iv.IsUnknown() {
			continue
		}
		if est, ok := f.EstimateFor(f.PureArgs[i]); ok {
			out[i] = ir.KnownInterval(est.Min, est.Min+est.Extent-1)
		}
	}
	return out
}

func deriveStageBounds(f *ir.Function, stageIdx int, pureBounds ir.DimBounds) ir.DimBounds {
	db := ir.DimBounds{}
	for _, d := range f.Stages[stageIdx].Dims {
		if iv, ok := pureBounds[d.Var]; ok {
			db[d.Var] = iv
			continue
		}
		if est, ok := f.EstimateFor(d.Var); ok {
			db[d.Var] = ir.KnownInterval(est.Min, est.Min+est.Extent-1)
			continue
		}
		db[d.Var] = ir.UnknownInterval()
	}
	return db
}

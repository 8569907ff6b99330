package partition

import (
	"sort"

	"github.com/loopfuse/autosched/ir"
)

// Mode selects which of the two grouping passes is running.
type Mode int

const (
	ModeInline Mode = iota
	ModeFastMem
)

func (m Mode) String() string {
	if m == ModeInline {
		return "inline"
	}
	return "fast_mem"
}

type cacheKey struct {
	Producer string
	Consumer FStage
}

// Engine is the grouping engine of §4.E: a greedy fixed-point merge
// of producer groups into consumer groups, run in two ordered passes
// (INLINE then FAST_MEM) with a per-edge memoized benefit cache.
type Engine struct {
	Env       map[string]*ir.Function
	Graph     *Graph
	CostModel *CostModel
	Outputs   map[string]bool

	Groups map[string]*Group
	Costs  map[string]GroupAnalysis
	Owner  map[string]string

	// Cache memoizes evaluateChoice results across outer-loop
	// iterations of runPass, keyed by (producer, consumer group
	// output). A pair whose groups weren't touched by the last
	// applyMerge survives invalidateCache and is reused as-is instead
	// of calling AnalyzeGroup again; applyMerge also reads the winning
	// entry's tile sizes back out rather than re-running the tile
	// search, then recomputes the merged group's analysis.
	Cache map[cacheKey]GroupConfig
}

func NewEngine(env map[string]*ir.Function, graph *Graph, cm *CostModel, outputs map[string]bool) *Engine {
	e := &Engine{
		Env:       env,
		Graph:     graph,
		CostModel: cm,
		Outputs:   outputs,
		Groups:    map[string]*Group{},
		Costs:     map[string]GroupAnalysis{},
		Owner:     map[string]string{},
		Cache:     map[cacheKey]GroupConfig{},
	}
	e.initGroups()
	return e
}

// initGroups is §4.E's initialization: because invariant I1 requires
// every stage of a function to be co-located, the starting point is
// one group per function (not per stage), output pinned to the
// function's final stage. Each group's tile config is chosen up
// front and its cost stored; the cache starts empty.
func (e *Engine) initGroups() {
	for name, f := range e.Env {
		out := FStage{Func: name, Stage: len(f.Stages) - 1}
		g := NewGroup(out)
		g.Members = g.Members[:0]
		for i := range f.Stages {
			g.Members = append(g.Members, FStage{Func: name, Stage: i})
		}
		e.Groups[name] = g
		e.Owner[name] = name
	}
	for name, g := range e.Groups {
		cfg, analysis := FindBestTileConfig(e.CostModel, g)
		g.TileSizes = cfg
		e.Costs[name] = analysis
	}
}

// Run drives both passes to fixpoint in order, clearing the cache
// between them.
func (e *Engine) Run() {
	e.runPass(ModeInline)
	e.Cache = map[cacheKey]GroupConfig{}
	e.runPass(ModeFastMem)
}

func (e *Engine) runPass(mode Mode) {
	for {
		producers := e.candidateProducers(mode)
		if len(producers) == 0 {
			return
		}

		var (
			bestProducer string
			bestChildren []string
			bestBenefit  ir.Bound
			bestBaseline GroupAnalysis
			bestMerged   GroupAnalysis
			found        bool
		)

		for _, p := range producers {
			children := e.liveChildren(p)
			if len(children) == 0 {
				continue
			}
			if mode == ModeFastMem && len(children) != 1 {
				continue
			}

			merged := make([]GroupAnalysis, 0, len(children))
			baselineAnalyses := []GroupAnalysis{e.Costs[p]}
			for _, c := range children {
				key := cacheKey{p, e.Groups[c].Output}
				var analysis GroupAnalysis
				if cached, ok := e.Cache[key]; ok && cached.Inlined == (mode == ModeInline) {
					analysis = cached.Analysis
				} else {
					cfg, computed := e.evaluateChoice(mode, p, c)
					e.Cache[key] = GroupConfig{TileSizes: cfg, Analysis: computed, Inlined: mode == ModeInline}
					analysis = computed
				}
				merged = append(merged, analysis)
				baselineAnalyses = append(baselineAnalyses, e.Costs[c])
			}

			aggregated := aggregateAnalyses(merged)
			baseline := aggregateAnalyses(baselineAnalyses)
			benefit := EstimateBenefit(baseline, aggregated, false, true, e.CostModel.Machine.Parallelism)

			if benefit.Known && (!found || benefit.Value > bestBenefit.Value) {
				found = true
				bestProducer = p
				bestChildren = children
				bestBenefit = benefit
				bestBaseline = baseline
				bestMerged = aggregated
			}
		}

		if !found || bestBenefit.Value <= 0 {
			return
		}

		e.applyMerge(mode, bestProducer, bestChildren)

		if bestBaseline.Cost.Sum().Known && bestMerged.Cost.Sum().Known {
			if bestMerged.Cost.Sum().Value > bestBaseline.Cost.Sum().Value {
				panic("partition: merge increased total cost")
			}
		}
	}
}

// candidateProducers is §4.E.1.
func (e *Engine) candidateProducers(mode Mode) []string {
	var names []string
	for name, g := range e.Groups {
		if e.Outputs[name] {
			continue
		}
		if g.Output.Stage != len(e.Env[name].Stages)-1 {
			continue
		}
		children := e.liveChildren(name)
		if len(children) == 0 {
			continue
		}
		if mode == ModeFastMem && len(children) != 1 {
			continue
		}
		if mode == ModeInline && !e.Env[name].IsPure() {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// liveChildren resolves a producer function's raw call-graph children
// through the current Owner map, so a function absorbed into a group
// earlier in the same pass is seen as that group instead. Excludes
// the producer's own group (already-co-located intra-function edges).
func (e *Engine) liveChildren(producerFunc string) []string {
	f := e.Env[producerFunc]
	finalStage := FStage{Func: producerFunc, Stage: len(f.Stages) - 1}
	raw := ChildFuncs(e.Graph.Children[finalStage])

	ownKey := e.Owner[producerFunc]
	seen := map[string]bool{}
	var live []string
	for _, childFunc := range raw {
		key, ok := e.Owner[childFunc]
		if !ok || key == ownKey || seen[key] {
			continue
		}
		seen[key] = true
		live = append(live, key)
	}
	sort.Strings(live)
	return live
}

// evaluateChoice is §4.E.2: hypothetically merge producer p into
// child c's group and analyze the result, without mutating state.
func (e *Engine) evaluateChoice(mode Mode, p, c string) (map[string]int, GroupAnalysis) {
	consumerGroup := e.Groups[c]
	producerGroup := e.Groups[p]

	candidate := consumerGroup.Clone()
	candidate.Members = append(candidate.Members, producerGroup.Members...)
	for name := range producerGroup.Inlined {
		candidate.Inlined[name] = true
	}

	if mode == ModeInline {
		candidate.Inlined[p] = true
		f := e.Env[consumerGroup.Output.Func]
		dims := f.Stages[consumerGroup.Output.Stage].Dims
		for i, d := range dims {
			if i == len(dims)-1 {
				continue
			}
			candidate.TileSizes[d.Var] = 1
		}
		analysis := e.CostModel.AnalyzeGroup(candidate)
		return candidate.TileSizes, analysis
	}

	cfg, analysis := FindBestTileConfig(e.CostModel, candidate)
	return cfg, analysis
}

// applyMerge is §4.E.4.
func (e *Engine) applyMerge(mode Mode, p string, children []string) {
	producerGroup := e.Groups[p]

	for _, c := range children {
		cfg := e.Cache[cacheKey{p, e.Groups[c].Output}]
		consumer := e.Groups[c]
		consumer.Members = append(consumer.Members, producerGroup.Members...)
		for name := range producerGroup.Inlined {
			consumer.Inlined[name] = true
		}
		if mode == ModeInline {
			consumer.Inlined[p] = true
		}
		consumer.TileSizes = cfg.TileSizes
		e.Costs[c] = e.CostModel.AnalyzeGroup(consumer)
		e.invalidateCache(p, consumer.Output)
	}

	delete(e.Groups, p)
	delete(e.Costs, p)
	if len(children) > 0 {
		e.Owner[p] = children[0]
	}
}

// invalidateCache keeps the cache consistent after a merge: drop any
// entry whose producer or consumer was touched by this merge.
func (e *Engine) invalidateCache(mergedProducer string, mergedConsumer FStage) {
	for key := range e.Cache {
		if key.Producer == mergedProducer || key.Producer == mergedConsumer.Func || key.Consumer == mergedConsumer {
			delete(e.Cache, key)
		}
	}
}

func aggregateAnalyses(analyses []GroupAnalysis) GroupAnalysis {
	total := GroupAnalysis{Cost: Cost{}, Parallelism: ir.KnownBound(1 << 62)}
	for _, a := range analyses {
		if a.Cost.Unknown {
			return UnknownAnalysis()
		}
		total.Cost = total.Cost.Add(a.Cost)
		total.Parallelism = total.Parallelism.Min(a.Parallelism)
	}
	return total
}

// EstimateBenefit is the pairwise benefit function of §4.E.5.
func EstimateBenefit(old, candidate GroupAnalysis, noRedundantWork, ensureParallelism bool, machineParallelism int64) ir.Bound {
	if old.Cost.Unknown || candidate.Cost.Unknown {
		return ir.UnknownBound()
	}
	if ensureParallelism {
		if !candidate.Parallelism.Known || candidate.Parallelism.Value < machineParallelism {
			return ir.UnknownBound()
		}
	}
	arithBenefit := old.Cost.Arith - candidate.Cost.Arith
	if noRedundantWork && arithBenefit < 0 {
		return ir.UnknownBound()
	}
	memBenefit := old.Cost.Memory - candidate.Cost.Memory
	return ir.KnownBound(arithBenefit + memBenefit)
}

package partition

import (
	"strconv"

	"github.com/loopfuse/autosched/ir"
)

var tileSizeVariants = []int{1, 4, 8, 16, 32, 64, 128, 256}

// pureLoopVars returns the output stage's pure (non-reduction) loop
// vars in declared order. Reduction vars are never tiled (§4.D).
func pureLoopVars(f *ir.Function, stageIdx int) []string {
	var vars []string
	for _, d := range f.Stages[stageIdx].Dims {
		if !d.IsReduction {
			vars = append(vars, d.Var)
		}
	}
	return vars
}

// GenerateTileConfigs is §4.D: skewed, square-ish and reorder-only-mask
// candidates over the output's pure loop vars, deduplicated.
func GenerateTileConfigs(f *ir.Function, stageIdx int) []map[string]int {
	vars := pureLoopVars(f, stageIdx)
	n := len(vars)
	if n == 0 {
		return nil
	}

	seen := map[string]bool{}
	var configs []map[string]int
	add := func(cfg map[string]int) {
		key := configKey(vars, cfg)
		if seen[key] {
			return
		}
		seen[key] = true
		configs = append(configs, cfg)
	}

	// Skewed configurations.
	for i := range vars {
		for _, s := range tileSizeVariants {
			cfg := map[string]int{}
			for j, v := range vars {
				switch {
				case j == i:
					if i == 0 {
						cfg[v] = maxInt(s, 64)
					} else {
						cfg[v] = s
					}
				case j < i:
					cfg[v] = 256
				default:
					cfg[v] = 1
				}
			}
			add(cfg)
		}
	}

	// Square-ish configurations.
	for _, s := range tileSizeVariants {
		cfg := map[string]int{}
		for j, v := range vars {
			if j == 0 {
				cfg[v] = maxInt(s, 64)
			} else {
				cfg[v] = s
			}
		}
		add(cfg)
	}

	// Reorder-only masks: for each non-empty subset of axes, tile only
	// those axes (size 64 on axis 0 if present, else 1 per tiled axis).
	for mask := 1; mask < (1 << n); mask++ {
		cfg := map[string]int{}
		for j, v := range vars {
			if mask&(1<<uint(j)) == 0 {
				continue
			}
			if j == 0 {
				cfg[v] = 64
			} else {
				cfg[v] = 1
			}
		}
		if len(cfg) == 0 {
			continue
		}
		add(cfg)
	}

	return configs
}

func configKey(vars []string, cfg map[string]int) string {
	key := ""
	for _, v := range vars {
		if t, ok := cfg[v]; ok {
			key += v
			key += ":"
			key += strconv.Itoa(t)
			key += ","
		}
	}
	return key
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// FindBestTileConfig is §4.D's search: starts from the no-tile
// analysis and keeps the first candidate that strictly improves over
// the running best via EstimateBenefit (ties keep the earlier
// candidate).
func FindBestTileConfig(cm *CostModel, g *Group) (map[string]int, GroupAnalysis) {
	f, ok := cm.Env[g.Output.Func]
	if !ok {
		return nil, UnknownAnalysis()
	}

	baseline := g.Clone()
	baseline.TileSizes = map[string]int{}
	bestConfig := map[string]int{}
	bestAnalysis := cm.AnalyzeGroup(baseline)

	for _, cfg := range GenerateTileConfigs(f, g.Output.Stage) {
		candidate := g.Clone()
		candidate.TileSizes = cfg
		candidateAnalysis := cm.AnalyzeGroup(candidate)

		benefit := EstimateBenefit(bestAnalysis, candidateAnalysis, false, true, cm.Machine.Parallelism)
		if benefit.Known && benefit.Value > 0 {
			bestConfig = cfg
			bestAnalysis = candidateAnalysis
		}
	}

	return bestConfig, bestAnalysis
}

package partition

import (
	"testing"

	"github.com/loopfuse/autosched/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pointwiseEnv() map[string]*ir.Function {
	h := &ir.Function{
		Name: "h", PureArgs: []string{"x", "y"},
		Estimates: []ir.Estimate{{Var: "x", Min: 0, Extent: 256}, {Var: "y", Min: 0, Extent: 256}},
		Stages: []ir.StageDef{{
			Dims:   []ir.Dim{{Var: "x"}, {Var: "y"}},
			Values: []ir.Expr{ir.Mul(ir.Var{Name: "x"}, ir.Var{Name: "y"})},
			Args:   []ir.Expr{ir.Var{Name: "x"}, ir.Var{Name: "y"}},
		}},
	}
	g := &ir.Function{
		Name: "g", PureArgs: []string{"x", "y"},
		Estimates: []ir.Estimate{{Var: "x", Min: 0, Extent: 256}, {Var: "y", Min: 0, Extent: 256}},
		Stages: []ir.StageDef{{
			Dims: []ir.Dim{{Var: "x"}, {Var: "y"}},
			Values: []ir.Expr{ir.Add(
				ir.Call{Func: "h", Args: []ir.Expr{ir.Var{Name: "x"}, ir.Var{Name: "y"}}},
				ir.Call{Func: "h", Args: []ir.Expr{ir.Add(ir.Var{Name: "x"}, ir.Const{Value: 1}), ir.Var{Name: "y"}}},
			)},
			Args: []ir.Expr{ir.Var{Name: "x"}, ir.Var{Name: "y"}},
		}},
	}
	return map[string]*ir.Function{"h": h, "g": g}
}

func TestRegionsRequiredMergesRepeatedCalls(t *testing.T) {
	env := pointwiseEnv()
	a := NewAnalysis(env, nil)
	bounds := ir.DimBounds{"x": ir.KnownInterval(0, 15), "y": ir.KnownInterval(0, 15)}
	regions := a.RegionsRequired(FStage{"g", 0}, bounds, map[string]bool{"h": true}, false)
	require.Contains(t, regions, "h")
	assert.Equal(t, ir.KnownInterval(0, 16), regions["h"][0])
	assert.Equal(t, ir.KnownInterval(0, 15), regions["h"][1])
}

func TestRegionsRequiredRecordsRegionOutsideProds(t *testing.T) {
	env := pointwiseEnv()
	a := NewAnalysis(env, nil)
	bounds := ir.DimBounds{"x": ir.KnownInterval(0, 15), "y": ir.KnownInterval(0, 15)}
	regions := a.RegionsRequired(FStage{"g", 0}, bounds, map[string]bool{}, false)
	require.Contains(t, regions, "h")
}

func TestRegionMonotonicityUnderWidening(t *testing.T) {
	env := pointwiseEnv()
	a := NewAnalysis(env, nil)
	narrow := a.RegionsRequired(FStage{"g", 0}, ir.DimBounds{"x": ir.KnownInterval(0, 7), "y": ir.KnownInterval(0, 7)}, map[string]bool{"h": true}, false)
	wide := a.RegionsRequired(FStage{"g", 0}, ir.DimBounds{"x": ir.KnownInterval(0, 15), "y": ir.KnownInterval(0, 15)}, map[string]bool{"h": true}, false)

	for name, nbox := range narrow {
		wbox, ok := wide[name]
		require.True(t, ok)
		for i := range nbox {
			assert.True(t, wbox[i].Min.Value <= nbox[i].Min.Value)
			assert.True(t, wbox[i].Max.Value >= nbox[i].Max.Value)
		}
	}
}

func TestRedundantRegionsIntersectsShiftedQuery(t *testing.T) {
	env := pointwiseEnv()
	a := NewAnalysis(env, nil)
	bounds := ir.DimBounds{"x": ir.KnownInterval(0, 15), "y": ir.KnownInterval(0, 15)}
	overlap := a.RedundantRegions(FStage{"g", 0}, "x", bounds, map[string]bool{"h": true}, false)
	require.Contains(t, overlap, "h")
	assert.False(t, overlap["h"][0].IsUnknown())
}

func TestOverlapRegionsSkipsOutermostDim(t *testing.T) {
	env := pointwiseEnv()
	a := NewAnalysis(env, nil)
	bounds := ir.DimBounds{"x": ir.KnownInterval(0, 15), "y": ir.KnownInterval(0, 15)}
	overlaps := a.OverlapRegions(FStage{"g", 0}, bounds, map[string]bool{"h": true}, false)
	assert.Len(t, overlaps, 1)
}

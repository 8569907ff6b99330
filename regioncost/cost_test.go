package regioncost

import (
	"testing"

	"github.com/loopfuse/autosched/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionCostUnknownPropagates(t *testing.T) {
	env := map[string]*ir.Function{}
	o := NewOracle(env)
	regions := map[string]ir.Box{"in": {ir.UnknownInterval()}}
	c := o.RegionCost(regions, nil)
	assert.True(t, c.Unknown)
}

func TestRegionCostKnownInput(t *testing.T) {
	o := NewOracle(map[string]*ir.Function{})
	regions := map[string]ir.Box{"in": {ir.KnownInterval(0, 9), ir.KnownInterval(0, 9)}}
	c := o.RegionCost(regions, nil)
	require.False(t, c.Unknown)
	assert.Equal(t, int64(100), c.Memory)
}

func TestStageDetailedLoadCostsExcludesInlined(t *testing.T) {
	env := map[string]*ir.Function{
		"h": {Name: "h", PureArgs: []string{"x", "y"}, Stages: []ir.StageDef{{
			Values: []ir.Expr{ir.Mul(ir.Var{Name: "x"}, ir.Var{Name: "y"})},
		}}},
		"g": {Name: "g", PureArgs: []string{"x", "y"}, Stages: []ir.StageDef{{
			Values: []ir.Expr{ir.Call{Func: "h", Args: []ir.Expr{ir.Var{Name: "x"}, ir.Var{Name: "y"}}}},
		}}},
	}
	o := NewOracle(env)
	bounds := ir.DimBounds{"x": ir.KnownInterval(0, 3), "y": ir.KnownInterval(0, 3)}
	loads := o.StageDetailedLoadCosts("g", 0, bounds, map[string]bool{"h": true})
	assert.NotContains(t, loads, "h")
}

package graphx

import (
	"testing"

	"github.com/loopfuse/autosched/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractIgnoresPipelineInputs(t *testing.T) {
	h := &ir.Function{Name: "h", PureArgs: []string{"x", "y"},
		Stages: []ir.StageDef{{Values: []ir.Expr{ir.Mul(ir.Var{Name: "x"}, ir.Var{Name: "y"})}}}}
	g := &ir.Function{Name: "g", PureArgs: []string{"x", "y"},
		Stages: []ir.StageDef{{Values: []ir.Expr{
			ir.Add(
				ir.Call{Func: "h", Args: []ir.Expr{ir.Var{Name: "x"}, ir.Var{Name: "y"}}},
				ir.Call{Func: "input", Args: []ir.Expr{ir.Var{Name: "x"}, ir.Var{Name: "y"}}},
			),
		}}}}

	lookup := func(name string) (*ir.Function, bool) {
		if name == "h" {
			return h, true
		}
		return nil, false
	}

	env := Extract([]*ir.Function{g}, lookup)
	require.Contains(t, env, "g")
	require.Contains(t, env, "h")
	assert.NotContains(t, env, "input")
}

func TestRealizationOrderCalleesFirst(t *testing.T) {
	h := &ir.Function{Name: "h", Stages: []ir.StageDef{{Values: []ir.Expr{ir.Const{Value: 1}}}}}
	g := &ir.Function{Name: "g", Stages: []ir.StageDef{{Values: []ir.Expr{
		ir.Call{Func: "h", Args: []ir.Expr{ir.Const{Value: 0}}},
	}}}}
	env := map[string]*ir.Function{"g": g, "h": h}
	order := RealizationOrder(env)
	require.Len(t, order, 2)
	assert.Equal(t, "h", order[0])
	assert.Equal(t, "g", order[1])
}

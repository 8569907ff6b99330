package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundsOfExprAddition(t *testing.T) {
	scope := DimBounds{"x": KnownInterval(0, 9), "y": KnownInterval(0, 9)}
	iv := BoundsOfExpr(Add(Var{"x"}, Var{"y"}), scope)
	require.False(t, iv.IsUnknown())
	assert.Equal(t, int64(0), iv.Min.Value)
	assert.Equal(t, int64(18), iv.Max.Value)
}

func TestBoundsOfExprUnknownPropagates(t *testing.T) {
	scope := DimBounds{"x": KnownInterval(0, 9)}
	iv := BoundsOfExpr(Add(Var{"x"}, Var{"missing"}), scope)
	assert.True(t, iv.IsUnknown())
}

func TestBoxesRequiredMergesRepeatedCalls(t *testing.T) {
	scope := DimBounds{"x": KnownInterval(0, 9), "y": KnownInterval(0, 9)}
	e := Add(
		Call{"h", []Expr{Var{"x"}, Var{"y"}}},
		Call{"h", []Expr{Add(Var{"x"}, Const{1}), Var{"y"}}},
	)
	boxes := BoxesRequired(e, scope)
	require.Contains(t, boxes, "h")
	box := boxes["h"]
	require.Len(t, box, 2)
	assert.Equal(t, int64(0), box[0].Min.Value)
	assert.Equal(t, int64(10), box[0].Max.Value)
}

func TestMergeBoxesWidens(t *testing.T) {
	dst := Box{KnownInterval(2, 4)}
	MergeBoxes(&dst, Box{KnownInterval(0, 3)})
	assert.Equal(t, int64(0), dst[0].Min.Value)
	assert.Equal(t, int64(4), dst[0].Max.Value)
}

func TestInlineSubstitutesCalleeBody(t *testing.T) {
	env := map[string]*Function{
		"f": {
			Name:     "f",
			PureArgs: []string{"x", "y"},
			Stages: []StageDef{{
				Values: []Expr{Mul(Var{"x"}, Var{"y"})},
			}},
		},
	}
	e := Call{"f", []Expr{Var{"a"}, Var{"b"}}}
	got := Inline(e, env, map[string]bool{"f": true})
	want := Mul(Var{"a"}, Var{"b"})
	assert.Equal(t, want, got)
}

func TestHasEstimatesOnAllDims(t *testing.T) {
	f := &Function{PureArgs: []string{"x", "y"}, Estimates: []Estimate{{"x", 0, 1024}}}
	assert.False(t, f.HasEstimatesOnAllDims())
	f.Estimates = append(f.Estimates, Estimate{"y", 0, 1024})
	assert.True(t, f.HasEstimatesOnAllDims())
}

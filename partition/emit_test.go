package partition

import (
	"strings"
	"testing"

	"github.com/loopfuse/autosched/ir"
	"github.com/loopfuse/autosched/machine"
	"github.com/loopfuse/autosched/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecords(members []FStage) map[FStage]*schedule.Record {
	out := map[FStage]*schedule.Record{}
	for _, m := range members {
		out[m] = &schedule.Record{FuncName: m.Func, Stage: m.Stage}
	}
	return out
}

func TestEmitGroupSingleStageSplitsVectorizesAndParallelizes(t *testing.T) {
	f := pointwiseFunc()
	env := map[string]*ir.Function{"f": f}
	allocBounds := PipelineBounds{"f": ir.Box{ir.KnownInterval(0, 1023), ir.KnownInterval(0, 1023)}}

	g := NewGroup(FStage{"f", 0})
	g.TileSizes["x"] = 64

	records := newRecords(g.Members)
	tr := &schedule.Transcript{}

	EmitGroup(g, env, machine.Default(), allocBounds, records, tr)

	out := tr.String()
	assert.Contains(t, out, "f.compute_root();")
	assert.Contains(t, out, "f.split(x, x_o, x_i, 64);")
	assert.Contains(t, out, "f.vectorize(")
	assert.Contains(t, out, "f.parallel(")

	rec := records[FStage{"f", 0}]
	require.True(t, rec.Compute.Root)
	assert.NotEmpty(t, rec.Splits)
	assert.NotEmpty(t, rec.Parallel)
	assert.NotEmpty(t, rec.Vectorize)
}

func TestEmitGroupInlinedMemberNeverComputesAtOrRoot(t *testing.T) {
	h, g := transposeLikeFuncs()
	env := map[string]*ir.Function{"h": h, "g": g}
	allocBounds := PipelineBounds{
		"h": ir.Box{ir.KnownInterval(0, 255), ir.KnownInterval(0, 255)},
		"g": ir.Box{ir.KnownInterval(0, 255), ir.KnownInterval(0, 255)},
	}

	group := NewGroup(FStage{"g", 0})
	group.Members = append(group.Members, FStage{"h", 0})
	group.Inlined["h"] = true

	records := newRecords(group.Members)
	tr := &schedule.Transcript{}

	EmitGroup(group, env, machine.Default(), allocBounds, records, tr)

	out := tr.String()
	assert.Contains(t, out, "h.compute_inline();")
	assert.NotContains(t, out, "h.compute_at")
	assert.NotContains(t, out, "h.compute_root")
	assert.True(t, records[FStage{"h", 0}].Compute.Inline)
}

func TestEmitGroupAbsorbedNonInlinedMemberGetsComputeAt(t *testing.T) {
	h, g := transposeLikeFuncs()
	env := map[string]*ir.Function{"h": h, "g": g}
	allocBounds := PipelineBounds{
		"h": ir.Box{ir.KnownInterval(0, 255), ir.KnownInterval(0, 255)},
		"g": ir.Box{ir.KnownInterval(0, 255), ir.KnownInterval(0, 255)},
	}

	group := NewGroup(FStage{"g", 0})
	group.Members = append(group.Members, FStage{"h", 0})
	group.TileSizes["x"] = 64

	records := newRecords(group.Members)
	tr := &schedule.Transcript{}

	EmitGroup(group, env, machine.Default(), allocBounds, records, tr)

	out := tr.String()
	assert.True(t, strings.Contains(out, "h.compute_at(g,"))
	hRec := records[FStage{"h", 0}]
	assert.Equal(t, "g", hRec.Compute.AtFunc)
	assert.NotEmpty(t, hRec.Compute.AtVar)
}

// transposeLikeFuncs builds a small two-function pipeline (g calls h)
// for emit tests that need an absorbed member distinct from the group
// output.
func transposeLikeFuncs() (*ir.Function, *ir.Function) {
	h := &ir.Function{
		Name: "h", PureArgs: []string{"x", "y"}, ElementBytes: 4,
		Estimates: []ir.Estimate{{Var: "x", Min: 0, Extent: 256}, {Var: "y", Min: 0, Extent: 256}},
		Stages: []ir.StageDef{{
			Dims:   []ir.Dim{{Var: "x"}, {Var: "y"}},
			Values: []ir.Expr{ir.Add(ir.Var{Name: "x"}, ir.Var{Name: "y"})},
			Args:   []ir.Expr{ir.Var{Name: "x"}, ir.Var{Name: "y"}},
		}},
	}
	g := &ir.Function{
		Name: "g", PureArgs: []string{"x", "y"}, ElementBytes: 4,
		Estimates: []ir.Estimate{{Var: "x", Min: 0, Extent: 256}, {Var: "y", Min: 0, Extent: 256}},
		Stages: []ir.StageDef{{
			Dims:   []ir.Dim{{Var: "x"}, {Var: "y"}},
			Values: []ir.Expr{ir.Call{Func: "h", Args: []ir.Expr{ir.Var{Name: "x"}, ir.Var{Name: "y"}}}},
			Args:   []ir.Expr{ir.Var{Name: "x"}, ir.Var{Name: "y"}},
		}},
	}
	return h, g
}

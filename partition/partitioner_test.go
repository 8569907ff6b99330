package partition

import (
	"strings"
	"testing"

	"github.com/loopfuse/autosched/ir"
	"github.com/loopfuse/autosched/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleSingleStagePipelineComputesRoot(t *testing.T) {
	f := pointwiseFunc()
	env := map[string]*ir.Function{"f": f}

	p := NewPartitioner(env, []string{"f"}, machine.Default())
	out, records := p.Schedule()

	assert.Contains(t, out, "f.compute_root();")
	require.True(t, records[FStage{"f", 0}].Compute.Root)
}

func TestScheduleReuseProducerGetsAbsorbedIntoOutputGroup(t *testing.T) {
	env, _ := reuseEnv()

	p := NewPartitioner(env, []string{"g"}, machine.Default())
	out, records := p.Schedule()

	assert.Contains(t, out, "g.compute_root();")
	hRec := records[FStage{"h", 0}]
	absorbed := hRec.Compute.Inline || hRec.Compute.AtFunc == "g"
	assert.True(t, absorbed, "expected h to be inlined into g or compute_at g, got %+v\ntranscript:\n%s", hRec.Compute, out)
}

func TestScheduleMissingEstimateFallsBackToComputeRootEverywhere(t *testing.T) {
	h := &ir.Function{
		Name: "h", PureArgs: []string{"x"}, ElementBytes: 4,
		Stages: []ir.StageDef{{
			Dims:   []ir.Dim{{Var: "x"}},
			Values: []ir.Expr{ir.Var{Name: "x"}},
			Args:   []ir.Expr{ir.Var{Name: "x"}},
		}},
	}
	g := &ir.Function{
		Name: "g", PureArgs: []string{"x"}, ElementBytes: 4,
		// No Estimates: precondition fails.
		Stages: []ir.StageDef{{
			Dims:   []ir.Dim{{Var: "x"}},
			Values: []ir.Expr{ir.Call{Func: "h", Args: []ir.Expr{ir.Var{Name: "x"}}}},
			Args:   []ir.Expr{ir.Var{Name: "x"}},
		}},
	}
	env := map[string]*ir.Function{"h": h, "g": g}

	p := NewPartitioner(env, []string{"g"}, machine.Default())
	out, records := p.Schedule()

	assert.True(t, strings.Contains(out, "h.compute_root();"))
	assert.True(t, strings.Contains(out, "g.compute_root();"))
	assert.True(t, records[FStage{"h", 0}].Compute.Root)
	assert.True(t, records[FStage{"g", 0}].Compute.Root)
}

package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeRootWritesTranscript(t *testing.T) {
	rec := &Record{FuncName: "blur_y", Stage: 0}
	tr := &Transcript{}
	h := NewHandle(rec, tr)

	h.ComputeRoot()

	assert.True(t, rec.Compute.Root)
	assert.True(t, rec.Store.Root)
	assert.Equal(t, "blur_y.compute_root();\n", tr.String())
}

func TestComputeAtRecordsTargetAndVar(t *testing.T) {
	rec := &Record{FuncName: "blur_x", Stage: 0}
	h := NewHandle(rec, &Transcript{})

	h.ComputeAt("blur_y", "y")

	require.Equal(t, "blur_y", rec.Compute.AtFunc)
	assert.Equal(t, "y", rec.Compute.AtVar)
	assert.False(t, rec.Compute.Root)
}

func TestSplitReorderVectorizeParallelAccumulate(t *testing.T) {
	rec := &Record{FuncName: "f", Stage: 0}
	tr := &Transcript{}
	h := NewHandle(rec, tr)

	h.Split("x", "x_outer", "x_inner", 8)
	h.Reorder([]string{"x_inner", "y", "x_outer"})
	h.Vectorize("x_inner", 8)
	h.Parallel("y")

	require.Len(t, rec.Splits, 1)
	assert.Equal(t, Split{Var: "x", Outer: "x_outer", Inner: "x_inner", Factor: 8}, rec.Splits[0])
	assert.Equal(t, []string{"x_inner", "y", "x_outer"}, rec.Order)
	assert.Equal(t, "x_inner", rec.Vectorize)
	assert.Equal(t, 8, rec.VecWidth)
	assert.Equal(t, []string{"y"}, rec.Parallel)

	lines := tr.String()
	assert.Contains(t, lines, "f.split(x, x_outer, x_inner, 8);")
	assert.Contains(t, lines, "f.reorder(x_inner, y, x_outer);")
	assert.Contains(t, lines, "f.vectorize(x_inner, 8);")
	assert.Contains(t, lines, "f.parallel(y);")
}

func TestUpdateStageLabelUsesUpdateIndex(t *testing.T) {
	rec := &Record{FuncName: "hist", Stage: 1}
	tr := &Transcript{}
	h := NewHandle(rec, tr)

	h.ComputeRoot()

	assert.Contains(t, tr.String(), "hist.update(0).compute_root();")
}

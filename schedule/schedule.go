// Package schedule is the reference implementation of the §6 "stage
// mutator" and "schedule applier" external collaborators: it mutates
// a per-function-stage schedule record in place and appends a
// human-readable line to a shared transcript for every operation, the
// same way the schedule emitter's directives are meant to be replayed
// against a real pipeline compiler.
package schedule

import (
	"fmt"
	"strings"
)

// ComputeLevel describes where a stage's values are produced.
type ComputeLevel struct {
	Root    bool
	Inline  bool
	AtFunc  string
	AtVar   string
}

// Split records one split(outer, inner, factor) applied to a loop var.
type Split struct {
	Var     string
	Outer   string
	Inner   string
	Factor  int
}

// Record is the mutable schedule state of a single function stage.
type Record struct {
	FuncName string
	Stage    int

	Compute ComputeLevel
	Store   ComputeLevel

	Splits    []Split
	Order     []string
	Vectorize string
	VecWidth  int
	Parallel  []string
}

// Transcript accumulates the printable directive log the core must
// return to the caller.
type Transcript struct {
	b strings.Builder
}

func (t *Transcript) String() string { return t.b.String() }

func (t *Transcript) append(line string) {
	t.b.WriteString(line)
	t.b.WriteString("\n")
}

// Handle is the stage mutator: every method mutates Record in place
// and appends the equivalent directive to Transcript.
type Handle struct {
	Record     *Record
	Transcript *Transcript
}

func NewHandle(rec *Record, tr *Transcript) *Handle {
	return &Handle{Record: rec, Transcript: tr}
}

func (h *Handle) label() string {
	if h.Record.Stage == 0 {
		return h.Record.FuncName
	}
	return fmt.Sprintf("%s.update(%d)", h.Record.FuncName, h.Record.Stage-1)
}

func (h *Handle) ComputeInline() {
	h.Record.Compute = ComputeLevel{Inline: true}
	h.Transcript.append(fmt.Sprintf("%s.compute_inline();", h.Record.FuncName))
}

func (h *Handle) ComputeRoot() {
	h.Record.Compute = ComputeLevel{Root: true}
	h.Record.Store = ComputeLevel{Root: true}
	h.Transcript.append(fmt.Sprintf("%s.compute_root();", h.label()))
}

func (h *Handle) ComputeAt(targetFunc, v string) {
	h.Record.Compute = ComputeLevel{AtFunc: targetFunc, AtVar: v}
	h.Record.Store = ComputeLevel{AtFunc: targetFunc, AtVar: v}
	h.Transcript.append(fmt.Sprintf("%s.compute_at(%s, %s);", h.label(), targetFunc, v))
}

func (h *Handle) Split(v, outer, inner string, factor int) {
	h.Record.Splits = append(h.Record.Splits, Split{Var: v, Outer: outer, Inner: inner, Factor: factor})
	h.Transcript.append(fmt.Sprintf("%s.split(%s, %s, %s, %d);", h.label(), v, outer, inner, factor))
}

func (h *Handle) Reorder(vars []string) {
	h.Record.Order = append([]string{}, vars...)
	h.Transcript.append(fmt.Sprintf("%s.reorder(%s);", h.label(), strings.Join(vars, ", ")))
}

func (h *Handle) Vectorize(v string, width int) {
	h.Record.Vectorize = v
	h.Record.VecWidth = width
	h.Transcript.append(fmt.Sprintf("%s.vectorize(%s, %d);", h.label(), v, width))
}

func (h *Handle) Parallel(v string) {
	h.Record.Parallel = append(h.Record.Parallel, v)
	h.Transcript.append(fmt.Sprintf("%s.parallel(%s);", h.label(), v))
}

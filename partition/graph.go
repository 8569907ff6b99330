package partition

import (
	"sort"

	"github.com/loopfuse/autosched/ir"
)

// Graph is the pipeline graph builder's output (§4.A): an initial
// group map, one group per stage, plus the child/consumer relation.
type Graph struct {
	Env      map[string]*ir.Function
	Groups   map[FStage]*Group
	Children map[FStage]map[FStage]bool
	Order    []FStage
}

// BuildGraph constructs the initial per-stage group map and child
// relation from the stage environment. Edges run from a parent
// function's final stage to every stage that calls it, plus an
// intra-function edge from stage s-1 to s for every s > 0. Calls to
// names absent from env (pipeline inputs) are ignored.
func BuildGraph(env map[string]*ir.Function, realizationOrder []string) *Graph {
	g := &Graph{
		Env:      env,
		Groups:   map[FStage]*Group{},
		Children: map[FStage]map[FStage]bool{},
	}

	for _, name := range realizationOrder {
		f, ok := env[name]
		if !ok {
			continue
		}
		for i := range f.Stages {
			s := FStage{Func: name, Stage: i}
			g.Groups[s] = NewGroup(s)
			g.Order = append(g.Order, s)
			g.Children[s] = map[FStage]bool{}
			if i > 0 {
				prev := FStage{Func: name, Stage: i - 1}
				g.addEdge(prev, s)
			}
		}
	}

	for _, name := range realizationOrder {
		f, ok := env[name]
		if !ok {
			continue
		}
		for i, stg := range f.Stages {
			consumer := FStage{Func: name, Stage: i}
			for _, parent := range calleesIn(stg) {
				pf, ok := env[parent]
				if !ok {
					continue
				}
				finalStage := FStage{Func: parent, Stage: len(pf.Stages) - 1}
				g.addEdge(finalStage, consumer)
			}
		}
	}

	return g
}

func (g *Graph) addEdge(parent, child FStage) {
	if parent == child {
		return
	}
	if g.Children[parent] == nil {
		g.Children[parent] = map[FStage]bool{}
	}
	g.Children[parent][child] = true
}

func calleesIn(stg ir.StageDef) []string {
	seen := map[string]bool{}
	var names []string
	add := func(e ir.Expr) {
		ir.Walk(e, func(x ir.Expr) {
			if c, ok := x.(ir.Call); ok && !seen[c.Func] {
				seen[c.Func] = true
				names = append(names, c.Func)
			}
		})
	}
	for _, v := range stg.Values {
		add(v)
	}
	for _, a := range stg.Args {
		add(a)
	}
	for _, ea := range stg.ExternArgs {
		if ea.Kind == ir.ExternArgExpr {
			add(ea.Expr)
		}
	}
	return names
}

// ChildFuncs returns the distinct function names among a stage's
// children, sorted for determinism.
func ChildFuncs(children map[FStage]bool) []string {
	seen := map[string]bool{}
	var names []string
	for c := range children {
		if !seen[c.Func] {
			seen[c.Func] = true
			names = append(names, c.Func)
		}
	}
	sort.Strings(names)
	return names
}

// Package graphx is the reference implementation of the §6 "graph
// extractor" external collaborator: given a set of pipeline outputs
// and a lookup of all candidate function definitions, it returns the
// transitive call environment and a topological realization order.
package graphx

import (
	"sort"

	"github.com/loopfuse/autosched/ir"
)

// Extract returns the transitive-call environment reachable from
// outputs (inclusive) by walking every stage's value and index
// expressions for Call nodes. Calls to names absent from lookup are
// pipeline inputs and are not added to the environment.
func Extract(outputs []*ir.Function, lookup func(name string) (*ir.Function, bool)) map[string]*ir.Function {
	env := make(map[string]*ir.Function, len(outputs))
	queue := make([]*ir.Function, 0, len(outputs))
	for _, f := range outputs {
		if _, seen := env[f.Name]; !seen {
			env[f.Name] = f
			queue = append(queue, f)
		}
	}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		for _, callee := range calleesOf(f) {
			if _, already := env[callee]; already {
				continue
			}
			cf, ok := lookup(callee)
			if !ok {
				continue
			}
			env[callee] = cf
			queue = append(queue, cf)
		}
	}
	return env
}

func calleesOf(f *ir.Function) []string {
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
	for _, stg := range f.Stages {
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
	}
	return names
}

// RealizationOrder returns a topological order of function names in
// env such that every callee precedes its callers. Ties are broken
// lexicographically for determinism.
func RealizationOrder(env map[string]*ir.Function) []string {
	deps := make(map[string]map[string]bool, len(env))
	for name, f := range env {
		d := map[string]bool{}
		for _, callee := range calleesOf(f) {
			if _, ok := env[callee]; ok && callee != name {
				d[callee] = true
			}
		}
		deps[name] = d
	}

	var order []string
	done := map[string]bool{}
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	var visit func(string)
	visiting := map[string]bool{}
	visit = func(name string) {
		if done[name] || visiting[name] {
			return
		}
		visiting[name] = true
		callees := make([]string, 0, len(deps[name]))
		for c := range deps[name] {
			callees = append(callees, c)
		}
		sort.Strings(callees)
		for _, c := range callees {
			visit(c)
		}
		visiting[name] = false
		done[name] = true
		order = append(order, name)
	}
	for _, name := range names {
		visit(name)
	}
	return order
}

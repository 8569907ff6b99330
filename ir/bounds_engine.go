package ir

// This file is the reference implementation of the §6 "bounds engine"
// contract: substitute_var_estimates, simplify, boxes_required and
// bounds_of_expr. The partitioner's bounds and region queries go
// through these entry points, so a future swap to a real symbolic
// simplifier only touches this file.

// SubstituteVarEstimates inlines known pure-argument estimates into e,
// replacing Var nodes whose scope interval is a known single point
// (min == max) with a Const. All other Vars are left untouched.
func SubstituteVarEstimates(e Expr, scope DimBounds) Expr {
	switch n := e.(type) {
	case Var:
		if iv, ok := scope[n.Name]; ok && !iv.IsUnknown() && iv.Min.Value == iv.Max.Value {
			return Const{iv.Min.Value}
		}
		return n
	case BinOp:
		return BinOp{n.Op, SubstituteVarEstimates(n.X, scope), SubstituteVarEstimates(n.Y, scope)}
	case Call:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = SubstituteVarEstimates(a, scope)
		}
		return Call{n.Func, args}
	case Let:
		return Let{n.Name, SubstituteVarEstimates(n.Value, scope), SubstituteVarEstimates(n.Body, scope)}
	default:
		return e
	}
}

// Simplify performs constant folding on e. It is intentionally
// shallow: the partitioner only relies on it to collapse literal
// arithmetic introduced by SubstituteVarEstimates, not to prove
// general algebraic identities.
func Simplify(e Expr) Expr {
	switch n := e.(type) {
	case BinOp:
		x := Simplify(n.X)
		y := Simplify(n.Y)
		cx, xok := x.(Const)
		cy, yok := y.(Const)
		if xok && yok {
			switch n.Op {
			case "+":
				return Const{cx.Value + cy.Value}
			case "-":
				return Const{cx.Value - cy.Value}
			case "*":
				return Const{cx.Value * cy.Value}
			case "/":
				if cy.Value != 0 {
					return Const{cx.Value / cy.Value}
				}
			case "min":
				if cx.Value < cy.Value {
					return cx
				}
				return cy
			case "max":
				if cx.Value > cy.Value {
					return cx
				}
				return cy
			}
		}
		return BinOp{n.Op, x, y}
	case Let:
		return Let{n.Name, Simplify(n.Value), Simplify(n.Body)}
	default:
		return e
	}
}

// SimplifyBox simplifies every interval endpoint of a box. Our Bound
// representation is already either a resolved constant or Unknown, so
// this is a no-op placeholder kept for parity with the external
// contract (a real simplifier would tighten symbolic endpoints here).
func SimplifyBox(b Box) Box { return b }

// BoundsOfExpr evaluates e to an Interval under scope: Var looks up
// its bound, Const is a point interval, and operators combine
// operand intervals conservatively (min/max of all four cross
// products for multiply, since operand signs are not tracked).
func BoundsOfExpr(e Expr, scope DimBounds) Interval {
	switch n := e.(type) {
	case Const:
		return KnownInterval(n.Value, n.Value)
	case Var:
		if iv, ok := scope[n.Name]; ok {
			return iv
		}
		return UnknownInterval()
	case BinOp:
		x := BoundsOfExpr(n.X, scope)
		y := BoundsOfExpr(n.Y, scope)
		switch n.Op {
		case "+":
			return Interval{x.Min.Add(y.Min), x.Max.Add(y.Max)}
		case "-":
			return Interval{x.Min.Sub(y.Max), x.Max.Sub(y.Min)}
		case "*":
			return boundsOfMul(x, y)
		case "min":
			return Interval{x.Min.Min(y.Min), x.Max.Min(y.Max)}
		case "max":
			return Interval{x.Min.Max(y.Min), x.Max.Max(y.Max)}
		default:
			return UnknownInterval()
		}
	case Let:
		innerScope := scope.Clone()
		innerScope[n.Name] = BoundsOfExpr(n.Value, scope)
		return BoundsOfExpr(n.Body, innerScope)
	case Call:
		// A bare Call used as a value (not as an index expression) has
		// bounds only the region-cost oracle can resolve; the bounds
		// engine itself is agnostic to callee ranges.
		return UnknownInterval()
	default:
		return UnknownInterval()
	}
}

func boundsOfMul(x, y Interval) Interval {
	if x.IsUnknown() || y.IsUnknown() {
		return UnknownInterval()
	}
	corners := []int64{
		x.Min.Value * y.Min.Value,
		x.Min.Value * y.Max.Value,
		x.Max.Value * y.Min.Value,
		x.Max.Value * y.Max.Value,
	}
	lo, hi := corners[0], corners[0]
	for _, c := range corners[1:] {
		if c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
	}
	return KnownInterval(lo, hi)
}

// BoxesRequired walks e and, for every Call node, derives the box of
// values required from the callee by evaluating BoundsOfExpr on each
// of its argument expressions under scope. Boxes for repeated calls to
// the same callee are merged (coordinate-wise widened).
func BoxesRequired(e Expr, scope DimBounds) map[string]Box {
	result := map[string]Box{}
	Walk(e, func(x Expr) {
		call, ok := x.(Call)
		if !ok {
			return
		}
		box := make(Box, len(call.Args))
		for i, a := range call.Args {
			box[i] = BoundsOfExpr(a, scope)
		}
		if existing, ok := result[call.Func]; ok {
			MergeBoxes(&existing, box)
			result[call.Func] = existing
		} else {
			result[call.Func] = box
		}
	})
	return result
}

// Inline substitutes every Call to a name in inlined with that
// function's stage-0 value expression (position 0 of a tuple),
// itself recursively inlined and with its own Args substituted for
// its pure-argument names. env provides the callee definitions.
func Inline(e Expr, env map[string]*Function, inlined map[string]bool) Expr {
	switch n := e.(type) {
	case BinOp:
		return BinOp{n.Op, Inline(n.X, env, inlined), Inline(n.Y, env, inlined)}
	case Let:
		return Let{n.Name, Inline(n.Value, env, inlined), Inline(n.Body, env, inlined)}
	case Call:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = Inline(a, env, inlined)
		}
		if !inlined[n.Func] {
			return Call{n.Func, args}
		}
		callee, ok := env[n.Func]
		if !ok || len(callee.Stages) == 0 {
			return Call{n.Func, args}
		}
		pure := callee.Stages[0]
		if len(pure.Values) == 0 {
			return Call{n.Func, args}
		}
		renamed := pure.Values[0]
		for i, argName := range callee.PureArgs {
			if i < len(args) {
				renamed = substituteVarWithExpr(renamed, argName, args[i])
			}
		}
		return Inline(renamed, env, inlined)
	default:
		return e
	}
}

func substituteVarWithExpr(e Expr, name string, repl Expr) Expr {
	switch n := e.(type) {
	case Var:
		if n.Name == name {
			return repl
		}
		return n
	case BinOp:
		return BinOp{n.Op, substituteVarWithExpr(n.X, name, repl), substituteVarWithExpr(n.Y, name, repl)}
	case Call:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = substituteVarWithExpr(a, name, repl)
		}
		return Call{n.Func, args}
	case Let:
		return Let{n.Name, substituteVarWithExpr(n.Value, name, repl), substituteVarWithExpr(n.Body, name, repl)}
	default:
		return e
	}
}

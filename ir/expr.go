// Package ir models the pure/reduction expression trees, function
// definitions and symbolic interval arithmetic that the partitioner
// treats as coming from an external bounds engine and expression
// representation. It is a reference implementation of that contract:
// substitution, simplification and box-of-expression bounds inference.
package ir

// Expr is a node in a value or index expression tree.
type Expr interface {
	isExpr()
}

// Const is an integer literal.
type Const struct {
	Value int64
}

// Var is a reference to a loop dimension or a let-bound name.
type Var struct {
	Name string
}

// BinOp is a binary arithmetic or min/max node. Op is one of
// "+", "-", "*", "/", "min", "max".
type BinOp struct {
	Op   string
	X, Y Expr
}

// Call references another function's value at the given index
// expressions, one per storage dimension of the callee.
type Call struct {
	Func string
	Args []Expr
}

// Let introduces a lexically scoped binding used by later nodes in
// the same expression tree (and, notably, by the spatial-locality
// dependency scan).
type Let struct {
	Name  string
	Value Expr
	Body  Expr
}

func (Const) isExpr() {}
func (Var) isExpr()   {}
func (BinOp) isExpr() {}
func (Call) isExpr()  {}
func (Let) isExpr()   {}

func Add(x, y Expr) Expr { return BinOp{"+", x, y} }
func Sub(x, y Expr) Expr { return BinOp{"-", x, y} }
func Mul(x, y Expr) Expr { return BinOp{"*", x, y} }
func Div(x, y Expr) Expr { return BinOp{"/", x, y} }
func Min(x, y Expr) Expr { return BinOp{"min", x, y} }
func Max(x, y Expr) Expr { return BinOp{"max", x, y} }

// Walk visits every node of e, including e itself, calling visit for
// each. It does not descend into Call arguments' callee bodies (those
// belong to a different function's expression tree).
func Walk(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case BinOp:
		Walk(n.X, visit)
		Walk(n.Y, visit)
	case Call:
		for _, a := range n.Args {
			Walk(a, visit)
		}
	case Let:
		Walk(n.Value, visit)
		Walk(n.Body, visit)
	}
}

// UsesVar reports whether e references name, either directly or
// through a chain of Let bindings (mirroring the transitive
// dependency scan the spatial-locality analyzer needs).
func UsesVar(e Expr, name string) bool {
	found := false
	deps := map[string]bool{name: true}
	// Two-pass: first collect let-bound names that transitively depend
	// on name, then check whether e references name or any such alias.
	var collect func(Expr)
	collect = func(e Expr) {
		switch n := e.(type) {
		case Let:
			usesDep := false
			Walk(n.Value, func(x Expr) {
				if v, ok := x.(Var); ok && deps[v.Name] {
					usesDep = true
				}
			})
			if usesDep {
				deps[n.Name] = true
			}
			collect(n.Value)
			collect(n.Body)
		case BinOp:
			collect(n.X)
			collect(n.Y)
		case Call:
			for _, a := range n.Args {
				collect(a)
			}
		}
	}
	collect(e)
	Walk(e, func(x Expr) {
		if v, ok := x.(Var); ok && deps[v.Name] {
			found = true
		}
	})
	return found
}

// CountOps returns the number of arithmetic operator nodes in e,
// treating a Call to an inlined function's own value expression as
// transparent (the caller is expected to have already substituted it
// in via Inline before counting).
func CountOps(e Expr) int {
	n := 0
	Walk(e, func(x Expr) {
		if _, ok := x.(BinOp); ok {
			n++
		}
	})
	return n
}

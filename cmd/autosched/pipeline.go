package main

import (
	"encoding/json"

	"github.com/loopfuse/autosched/ir"
	"github.com/pkg/errors"
)

// exprJSON is the on-disk discriminated-union encoding of an ir.Expr:
// {"kind":"const","value":3}, {"kind":"var","name":"x"},
// {"kind":"binop","op":"+","x":...,"y":...}, {"kind":"call","func":"h","args":[...]},
// {"kind":"let","name":"t","x":...,"body":...} (a let's bound
// expression goes in "x", since "value" holds a const's integer).
type exprJSON struct {
	Kind  string      `json:"kind"`
	Value int64       `json:"value,omitempty"`
	Name  string      `json:"name,omitempty"`
	Op    string      `json:"op,omitempty"`
	X     *exprJSON   `json:"x,omitempty"`
	Y     *exprJSON   `json:"y,omitempty"`
	Func  string      `json:"func,omitempty"`
	Args  []*exprJSON `json:"args,omitempty"`
	Body  *exprJSON   `json:"body,omitempty"`
}

func (e *exprJSON) toExpr() (ir.Expr, error) {
	if e == nil {
		return nil, errors.New("nil expression")
	}
	switch e.Kind {
	case "const":
		return ir.Const{Value: e.Value}, nil
	case "var":
		return ir.Var{Name: e.Name}, nil
	case "binop":
		x, err := e.X.toExpr()
		if err != nil {
			return nil, errors.Wrap(err, "binop.x")
		}
		y, err := e.Y.toExpr()
		if err != nil {
			return nil, errors.Wrap(err, "binop.y")
		}
		return ir.BinOp{Op: e.Op, X: x, Y: y}, nil
	case "call":
		args := make([]ir.Expr, len(e.Args))
		for i, a := range e.Args {
			ae, err := a.toExpr()
			if err != nil {
				return nil, errors.Wrapf(err, "call %s arg %d", e.Func, i)
			}
			args[i] = ae
		}
		return ir.Call{Func: e.Func, Args: args}, nil
	case "let":
		val, err := e.X.toExpr()
		if err != nil {
			return nil, errors.Wrap(err, "let.value")
		}
		body, err := e.Body.toExpr()
		if err != nil {
			return nil, errors.Wrap(err, "let.body")
		}
		return ir.Let{Name: e.Name, Value: val, Body: body}, nil
	default:
		return nil, errors.Errorf("unknown expression kind %q", e.Kind)
	}
}

type dimJSON struct {
	Var                    string `json:"var"`
	IsReduction            bool   `json:"is_reduction,omitempty"`
	CommutativeAssociative bool   `json:"commutative_associative,omitempty"`
}

type externArgJSON struct {
	Kind     string    `json:"kind"` // "expr" | "func" | "buffer"
	Expr     *exprJSON `json:"expr,omitempty"`
	FuncName string    `json:"func_name,omitempty"`
	Rank     int       `json:"rank,omitempty"`
}

type stageJSON struct {
	Dims       []dimJSON       `json:"dims"`
	Values     []*exprJSON     `json:"values"`
	Args       []*exprJSON     `json:"args"`
	ExternArgs []externArgJSON `json:"extern_args,omitempty"`
}

type estimateJSON struct {
	Var    string `json:"var"`
	Min    int64  `json:"min"`
	Extent int64  `json:"extent"`
}

type functionJSON struct {
	Name         string         `json:"name"`
	PureArgs     []string       `json:"pure_args"`
	ElementBytes int            `json:"element_bytes"`
	Extern       bool           `json:"extern,omitempty"`
	Estimates    []estimateJSON `json:"estimates,omitempty"`
	Stages       []stageJSON    `json:"stages"`
}

// pipelineJSON is the whole on-disk pipeline description: every
// function definition reachable from the named outputs.
type pipelineJSON struct {
	Outputs   []string       `json:"outputs"`
	Functions []functionJSON `json:"functions"`
}

func decodePipeline(data []byte) (map[string]*ir.Function, []string, error) {
	var pj pipelineJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, nil, errors.Wrap(err, "parsing pipeline JSON")
	}

	env := make(map[string]*ir.Function, len(pj.Functions))
	for _, fj := range pj.Functions {
		f, err := fj.toFunction()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "function %q", fj.Name)
		}
		env[f.Name] = f
	}
	if len(pj.Outputs) == 0 {
		return nil, nil, errors.New("pipeline declares no outputs")
	}
	for _, name := range pj.Outputs {
		if _, ok := env[name]; !ok {
			return nil, nil, errors.Errorf("output %q is not among the declared functions", name)
		}
	}
	return env, pj.Outputs, nil
}

func (fj functionJSON) toFunction() (*ir.Function, error) {
	f := &ir.Function{
		Name:         fj.Name,
		PureArgs:     fj.PureArgs,
		ElementBytes: fj.ElementBytes,
		Extern:       fj.Extern,
	}
	for _, e := range fj.Estimates {
		f.Estimates = append(f.Estimates, ir.Estimate{Var: e.Var, Min: e.Min, Extent: e.Extent})
	}
	for si, sj := range fj.Stages {
		stage := ir.StageDef{}
		for _, d := range sj.Dims {
			stage.Dims = append(stage.Dims, ir.Dim{
				Var:                    d.Var,
				IsReduction:            d.IsReduction,
				CommutativeAssociative: d.CommutativeAssociative,
			})
		}
		for _, v := range sj.Values {
			ve, err := v.toExpr()
			if err != nil {
				return nil, errors.Wrapf(err, "stage %d value", si)
			}
			stage.Values = append(stage.Values, ve)
		}
		for _, a := range sj.Args {
			ae, err := a.toExpr()
			if err != nil {
				return nil, errors.Wrapf(err, "stage %d arg", si)
			}
			stage.Args = append(stage.Args, ae)
		}
		for _, ea := range sj.ExternArgs {
			switch ea.Kind {
			case "func":
				stage.ExternArgs = append(stage.ExternArgs, ir.ExternArg{Kind: ir.ExternArgFunc, FuncName: ea.FuncName, Rank: ea.Rank})
			case "buffer":
				stage.ExternArgs = append(stage.ExternArgs, ir.ExternArg{Kind: ir.ExternArgBuffer, FuncName: ea.FuncName, Rank: ea.Rank})
			case "expr":
				ee, err := ea.Expr.toExpr()
				if err != nil {
					return nil, errors.Wrapf(err, "stage %d extern arg", si)
				}
				stage.ExternArgs = append(stage.ExternArgs, ir.ExternArg{Kind: ir.ExternArgExpr, Expr: ee})
			default:
				return nil, errors.Errorf("stage %d: unknown extern arg kind %q", si, ea.Kind)
			}
		}
		f.Stages = append(f.Stages, stage)
	}
	return f, nil
}

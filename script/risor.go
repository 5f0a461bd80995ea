package script

import (
	"context"
	"fmt"
	"sort"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/parser"
)

// RisorCompiler compiles condition expressions with the Risor engine.
// Globals declared at construction are available to every expression in
// addition to the per-evaluation workflow variables.
type RisorCompiler struct {
	globals map[string]any
}

// DefaultGlobals declares the names available to condition expressions.
// Workflow variables are exposed under "vars", e.g. `vars["findings"] != ""`.
func DefaultGlobals() map[string]any {
	return map[string]any{"vars": map[string]any{}}
}

// NewRisorCompiler creates a compiler with the given base globals. Global
// names must be declared at compile time; nil selects DefaultGlobals.
func NewRisorCompiler(globals map[string]any) *RisorCompiler {
	if globals == nil {
		globals = DefaultGlobals()
	}
	return &RisorCompiler{globals: globals}
}

func (c *RisorCompiler) Compile(ctx context.Context, code string) (Script, error) {
	ast, err := parser.Parse(ctx, code)
	if err != nil {
		return nil, err
	}
	var names []string
	for name := range c.globals {
		names = append(names, name)
	}
	sort.Strings(names)

	compiled, err := compiler.Compile(ast, compiler.WithGlobalNames(names))
	if err != nil {
		return nil, err
	}
	return &risorScript{compiler: c, code: compiled}, nil
}

type risorScript struct {
	compiler *RisorCompiler
	code     *compiler.Code
}

func (s *risorScript) Evaluate(ctx context.Context, globals map[string]any) (Value, error) {
	combined := make(map[string]any, len(s.compiler.globals)+len(globals))
	for name, value := range s.compiler.globals {
		combined[name] = value
	}
	for name, value := range globals {
		combined[name] = value
	}
	result, err := risor.EvalCode(ctx, s.code, risor.WithGlobals(combined))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate condition: %w", err)
	}
	return &risorValue{obj: result}, nil
}

type risorValue struct {
	obj object.Object
}

func (v *risorValue) Value() any {
	return toGoValue(v.obj)
}

func (v *risorValue) String() string {
	if s, ok := v.obj.(*object.String); ok {
		return s.Value()
	}
	return v.obj.Inspect()
}

func (v *risorValue) IsTruthy() bool {
	return v.obj.IsTruthy()
}

func toGoValue(obj object.Object) any {
	switch o := obj.(type) {
	case *object.String:
		return o.Value()
	case *object.Int:
		return o.Value()
	case *object.Float:
		return o.Value()
	case *object.Bool:
		return o.Value()
	case *object.Time:
		return o.Value()
	case *object.NilType:
		return nil
	case *object.List:
		var items []any
		for _, item := range o.Value() {
			items = append(items, toGoValue(item))
		}
		return items
	case *object.Map:
		out := make(map[string]any)
		for key, value := range o.Value() {
			out[key] = toGoValue(value)
		}
		return out
	default:
		return obj.Inspect()
	}
}

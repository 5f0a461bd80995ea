// Package script compiles and evaluates the small expressions used as
// workflow step conditions. Expressions are evaluated against the current
// workflow variables and reduced to a truthiness decision.
package script

import "context"

// Value is the result of evaluating a script.
type Value interface {
	// Value returns the result as a plain Go value.
	Value() any

	// String returns the string representation of the result.
	String() string

	// IsTruthy reports whether the result counts as true in a condition.
	IsTruthy() bool
}

// Script is a compiled expression ready for repeated evaluation.
type Script interface {
	Evaluate(ctx context.Context, globals map[string]any) (Value, error)
}

// Compiler turns source code into a Script.
type Compiler interface {
	Compile(ctx context.Context, code string) (Script, error)
}

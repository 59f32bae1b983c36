package engine

import "microjs/pkg/value"

// These forward straight to the Context's own constructors; they exist
// so an embedder that only imports pkg/engine never needs to reach into
// pkg/context directly for the common cases.

// NewString allocates a heap string.
func (e *Engine) NewString(s string) (value.Value, error) { return e.ctx.NewString(s) }

// NewNumber allocates (or inlines) a numeric value.
func (e *Engine) NewNumber(n float64) (value.Value, error) { return e.ctx.NewNumber(n) }

// NewObject allocates a plain object linked to Object.prototype.
func (e *Engine) NewObject() (value.Value, error) { return e.ctx.NewObject() }

// NewArray allocates an empty array.
func (e *Engine) NewArray() (value.Value, error) { return e.ctx.NewArray() }

// Bool returns the shared true/false Value for b, matching pkg/value's
// own constants rather than allocating anything.
func Bool(b bool) value.Value {
	if b {
		return value.True
	}
	return value.False
}

// Null and Undefined are re-exported so callers constructing argument
// lists for Call don't need a separate pkg/value import just for these
// two constants.
var (
	Null      = value.Null
	Undefined = value.Undefined
)

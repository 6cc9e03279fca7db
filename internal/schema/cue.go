package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/zendsl/internal/value"
)

// cueCtx is the shared CUE runtime for all CUE-backed schemas. Compiled
// values must come from one context to unify.
var cueCtx = cuecontext.New()

// CompileCUE compiles a CUE source fragment into a validator. The decoded
// value is serialized, unified with the compiled constraint, and must be
// concrete after unification. The canonical form is the input itself; CUE
// schemas constrain structure, they do not transcode.
//
// Example:
//
//	s, err := schema.CompileCUE(`{recipient: string, amount: int & >0}`)
func CompileCUE(src string) (Schema, error) {
	constraint := cueCtx.CompileString(src)
	if err := constraint.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	return func(v value.Value) (value.Value, error) {
		data, err := value.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("serialize for CUE validation: %w", err)
		}
		doc := cueCtx.CompileBytes(data)
		if err := doc.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		unified := constraint.Unify(doc)
		if err := unified.Validate(cue.Concrete(true)); err != nil {
			return nil, formatCUEError(err)
		}
		return value.Clone(v), nil
	}, nil
}

// RegisterCUE compiles src and registers the resulting validator.
func (r *Registry) RegisterCUE(name, src string) error {
	s, err := CompileCUE(src)
	if err != nil {
		return fmt.Errorf("schema %q: %w", name, err)
	}
	r.Register(name, s)
	return nil
}

// formatCUEError flattens a CUE error list to its first positioned error.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return fmt.Errorf("%s (at %s)", firstErr.Error(), positions[0])
	}
	return firstErr
}

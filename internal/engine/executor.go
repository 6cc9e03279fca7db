package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/zendsl/internal/value"
)

// Result is the outcome of a successful run.
type Result struct {
	// RunID is the identifier stamped on this execution.
	RunID string

	// Out is the final output compartment.
	Out value.Object

	// OutJSON is the canonical encoding of Out, nil when Out is empty.
	OutJSON []byte

	// Traceback holds the trace accumulated during the run.
	Traceback []TraceEntry
}

// Exec runs a parsed script against the DATA and KEYS documents.
//
// Steps execute in AST id order. Before every step IN is reset and
// re-decoded from DATA, and IN.KEYS from KEYS, so mutations by one step
// never leak into the next: a step's inputs are the immutable script
// inputs plus the accumulated ACK.
//
// When a step fails the traceback is rendered to the engine's error
// writer, followed by dumps of the four compartments and the schema
// registry, and the error is returned with the failing step attached. A
// cancelled context stops the run before the next step and returns the
// context error without rendering diagnostics. There is no in-script
// recovery.
func (e *Engine) Exec(ctx context.Context, script *Script, data, keys []byte) (*Result, error) {
	trace := NewTraceback()
	rc := newRunContext(e.reg, e.schemas, e.newRunID(), trace)

	// Stable ascending by id; id order equals source order.
	steps := make([]Step, len(script.Steps))
	copy(steps, script.Steps)
	sort.SliceStable(steps, func(a, b int) bool { return steps[a].ID < steps[b].ID })

	for i := range steps {
		step := &steps[i]

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled: %w", err)
		}

		if err := e.resetInputs(rc, data, keys); err != nil {
			return nil, e.abort(rc, step, err)
		}

		trace.Infof("+%d %s", step.Line, step.Source)
		slog.Debug("executing step", "id", step.ID, "phase", step.Phase, "source", step.Source)

		rc.ok = true
		rc.softErr = nil
		err := invokeGuarded(step, rc)
		if err == nil && !rc.ok {
			err = rc.softErr
			if err == nil {
				err = NewTypeError("step failed")
			}
		}
		if err != nil {
			return nil, e.abort(rc, step, err)
		}
	}

	res := &Result{
		RunID:     rc.RunID,
		Out:       rc.Out,
		Traceback: trace.Entries(),
	}
	if len(rc.Out) > 0 {
		outJSON, err := value.Marshal(rc.Out)
		if err != nil {
			return nil, e.abort(rc, nil, NewCodecError("encode OUT", err))
		}
		res.OutJSON = outJSON
	}
	slog.Debug("run complete", "run_id", rc.RunID, "out_keys", len(rc.Out))
	return res, nil
}

// resetInputs rebuilds IN and IN.KEYS from the host-provided documents.
// DATA must decode to a mapping or an array of mappings; an array is
// flattened one level with later keys winning on collision. KEYS must
// decode to a mapping. An absent document yields an empty compartment.
func (e *Engine) resetInputs(rc *RunContext, data, keys []byte) error {
	rc.In = value.Object{}
	rc.Keys = value.Object{}

	if len(strings.TrimSpace(string(data))) > 0 {
		v, err := value.Decode(data)
		if err != nil {
			return NewCodecError("decode DATA", err)
		}
		switch val := v.(type) {
		case value.Object:
			rc.In = value.Clone(val).(value.Object)
		case value.Array:
			for i, member := range val {
				obj, ok := member.(value.Object)
				if !ok {
					return NewCodecError("decode DATA",
						fmt.Errorf("array member %d is not a mapping", i))
				}
				for _, k := range obj.SortedKeys() {
					rc.In[k] = value.Clone(obj[k])
				}
			}
		default:
			return NewCodecError("decode DATA",
				fmt.Errorf("must be a mapping or an array of mappings, got %T", v))
		}
	}

	if len(strings.TrimSpace(string(keys))) > 0 {
		v, err := value.Decode(keys)
		if err != nil {
			return NewCodecError("decode KEYS", err)
		}
		obj, ok := v.(value.Object)
		if !ok {
			return NewCodecError("decode KEYS", fmt.Errorf("must be a mapping, got %T", v))
		}
		rc.Keys = value.Clone(obj).(value.Object)
	}

	return nil
}

// invokeGuarded calls the bound handler, converting unchecked faults into
// run errors so a handler panic still aborts at the step boundary with a
// rendered traceback.
func invokeGuarded(step *Step, rc *RunContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewTypeError("handler fault: %v", r)
		}
	}()
	return step.invoke(rc)
}

// abort records the failure, renders diagnostics, and returns the
// annotated error. The machine-readable dump goes to the debug log for
// hosts that scrape structured output.
func (e *Engine) abort(rc *RunContext, step *Step, err error) error {
	if step != nil {
		err = annotate(err, step.ID, step.Source)
	}
	rc.trace.Errorf("%v", err)
	if d, dumpErr := debugDump(rc); dumpErr == nil {
		if data, jsonErr := json.Marshal(d); jsonErr == nil {
			slog.Debug("run aborted", "dump", string(data))
		}
	}
	dumpDiagnostics(e.errw, rc)
	return err
}

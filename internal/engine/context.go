package engine

import (
	"fmt"

	"github.com/roach88/zendsl/internal/schema"
	"github.com/roach88/zendsl/internal/value"
)

// Compartment key for the run identity inside ACK. Once set it is
// immutable for the rest of the run.
const WhoamiKey = "whoami"

// TMP field keys. TMP is a staging area between pick and ack: pick binds
// data/schema/root, validate fills valid, ack consumes valid.
const (
	TmpData   = "data"
	TmpSchema = "schema"
	TmpRoot   = "root"
	TmpValid  = "valid"
)

// RunContext carries the four memory compartments plus the registries a
// run consults. Handlers never see it whole: the executor hands each
// handler the scope of its phase, so a When handler cannot reach IN and a
// Given handler cannot reach OUT.
type RunContext struct {
	// RunID tags the run in the traceback, debug dump, and audit store.
	RunID string

	// In is reset and re-decoded from DATA before every step.
	In value.Object

	// Keys is reset and re-decoded from KEYS before every step.
	Keys value.Object

	// Tmp is the pick/validate/ack staging area.
	Tmp value.Object

	// Ack accumulates validated values and persists across steps.
	Ack value.Object

	// Out is the final output mapping, emitted once after the last step.
	Out value.Object

	schemas *schema.Registry
	reg     *Registry
	trace   *Traceback

	// ok is the soft-failure flag: cleared to true before each handler,
	// checked after. Assert flips it without unwinding.
	ok      bool
	softErr error
}

func newRunContext(reg *Registry, schemas *schema.Registry, runID string, trace *Traceback) *RunContext {
	return &RunContext{
		RunID:   runID,
		In:      value.Object{},
		Keys:    value.Object{},
		Tmp:     value.Object{},
		Ack:     value.Object{},
		Out:     value.Object{},
		schemas: schemas,
		reg:     reg,
		trace:   trace,
		ok:      true,
	}
}

// Whoami returns the identity set by Iam, if any.
func (rc *RunContext) Whoami() (string, bool) {
	v, ok := rc.Ack[WhoamiKey]
	if !ok {
		return "", false
	}
	s, isStr := v.(value.String)
	if !isStr {
		return "", false
	}
	return string(s), true
}

func (rc *RunContext) setWhoami(name string) error {
	if who, ok := rc.Whoami(); ok {
		if who == name {
			return nil
		}
		return NewIdentityError(fmt.Sprintf("identity already set to %q, cannot become %q", who, name))
	}
	rc.Ack[WhoamiKey] = value.String(name)
	return nil
}

// Assert records a soft failure: the flag is checked at the step boundary
// and aborts the run without unwinding the handler.
func (rc *RunContext) Assert(cond bool, format string, args ...any) bool {
	if cond {
		return true
	}
	rc.ok = false
	rc.softErr = NewTypeError(format, args...)
	rc.trace.Errorf(format, args...)
	return false
}

// GivenScope is the capability a Given handler receives: read IN and
// IN.KEYS, stage through TMP, acknowledge into ACK.
type GivenScope struct {
	rc *RunContext
}

// In returns the input compartment, re-decoded from DATA for this step.
func (g *GivenScope) In() value.Object { return g.rc.In }

// Keys returns the key-material compartment.
func (g *GivenScope) Keys() value.Object { return g.rc.Keys }

// Schemas returns the validator registry.
func (g *GivenScope) Schemas() *schema.Registry { return g.rc.schemas }

// Ack returns the acknowledged compartment for writing.
func (g *GivenScope) Ack() value.Object { return g.rc.Ack }

// Tmp returns the staging compartment.
func (g *GivenScope) Tmp() value.Object { return g.rc.Tmp }

// Whoami returns the run identity, if set.
func (g *GivenScope) Whoami() (string, bool) { return g.rc.Whoami() }

// SetWhoami sets the run identity; it fails once a different identity is
// already set.
func (g *GivenScope) SetWhoami(name string) error { return g.rc.setWhoami(name) }

// Tracef appends a formatted line to the traceback.
func (g *GivenScope) Tracef(format string, args ...any) { g.rc.trace.Infof(format, args...) }

// WhenScope is the capability a When handler receives: ACK read/write.
type WhenScope struct {
	rc *RunContext
}

// Ack returns the acknowledged compartment.
func (w *WhenScope) Ack() value.Object { return w.rc.Ack }

// Whoami returns the run identity, if set.
func (w *WhenScope) Whoami() (string, bool) { return w.rc.Whoami() }

// Converter returns the named converter, if registered.
func (w *WhenScope) Converter(format string) (Converter, bool) { return w.rc.reg.converter(format) }

// Tracef appends a formatted line to the traceback.
func (w *WhenScope) Tracef(format string, args ...any) { w.rc.trace.Infof(format, args...) }

// ThenScope is the capability a Then handler receives: ACK read, OUT
// write.
type ThenScope struct {
	rc *RunContext
}

// AckGet reads one acknowledged value.
func (t *ThenScope) AckGet(name string) (value.Value, bool) {
	v, ok := t.rc.Ack[name]
	return v, ok
}

// AckMyGet reads one acknowledged value under the run identity.
func (t *ThenScope) AckMyGet(name string) (value.Value, bool) {
	who, ok := t.rc.Whoami()
	if !ok {
		return nil, false
	}
	mine, ok := t.rc.Ack[who].(value.Object)
	if !ok {
		return nil, false
	}
	v, ok := mine[name]
	return v, ok
}

// AckAll returns the whole acknowledged compartment, read-only by
// convention (print-all copies before moving).
func (t *ThenScope) AckAll() value.Object { return t.rc.Ack }

// SetOut moves a value into the output compartment.
func (t *ThenScope) SetOut(name string, v value.Value) {
	t.rc.Out[name] = value.Clone(v)
}

// SetOutMy moves a value into the output compartment under the run
// identity.
func (t *ThenScope) SetOutMy(name string, v value.Value) error {
	who, ok := t.rc.Whoami()
	if !ok {
		return NewIdentityError("no identity set, cannot print my data")
	}
	mine, ok := t.rc.Out[who].(value.Object)
	if !ok {
		mine = value.Object{}
		t.rc.Out[who] = mine
	}
	mine[name] = value.Clone(v)
	return nil
}

// Whoami returns the run identity, if set.
func (t *ThenScope) Whoami() (string, bool) { return t.rc.Whoami() }

// Converter returns the named converter, if registered.
func (t *ThenScope) Converter(format string) (Converter, bool) { return t.rc.reg.converter(format) }

// Tracef appends a formatted line to the traceback.
func (t *ThenScope) Tracef(format string, args ...any) { t.rc.trace.Infof(format, args...) }

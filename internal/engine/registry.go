package engine

import (
	"slices"

	"github.com/roach88/zendsl/internal/lang"
	"github.com/roach88/zendsl/internal/value"
)

// GivenStep acquires input: it may read IN and IN.KEYS, stage values in
// TMP, and acknowledge them into ACK.
type GivenStep func(g *GivenScope, args ...string) error

// WhenStep transforms acknowledged values: it reads and writes ACK only.
type WhenStep func(w *WhenScope, args ...string) error

// ThenStep produces output: it reads ACK and writes OUT.
type ThenStep func(t *ThenScope, args ...string) error

// Converter rewrites a value into another rendering, dispatched by name
// from the convert built-in.
type Converter func(value.Value) (value.Value, error)

// Registry holds the three phase-keyed pattern dictionaries plus the
// named converters. Patterns are canonicalized once at registration
// (case-folded, quoted literals already replaced by '' by the author);
// lookup is exact equality against the normalized statement. Duplicate
// registration replaces silently.
type Registry struct {
	given      map[string]GivenStep
	when       map[string]WhenStep
	then       map[string]ThenStep
	converters map[string]Converter
}

// NewRegistry returns an empty registry. Use RegisterBuiltins to add the
// memory-movement verbs every scenario depends on.
func NewRegistry() *Registry {
	return &Registry{
		given:      make(map[string]GivenStep),
		when:       make(map[string]WhenStep),
		then:       make(map[string]ThenStep),
		converters: make(map[string]Converter),
	}
}

// Given registers a pattern in the given-phase dictionary.
func (r *Registry) Given(pattern string, h GivenStep) {
	r.given[lang.CanonicalPattern(pattern)] = h
}

// When registers a pattern in the when-phase dictionary.
func (r *Registry) When(pattern string, h WhenStep) {
	r.when[lang.CanonicalPattern(pattern)] = h
}

// Then registers a pattern in the then-phase dictionary.
func (r *Registry) Then(pattern string, h ThenStep) {
	r.then[lang.CanonicalPattern(pattern)] = h
}

// Convert registers a named converter.
func (r *Registry) Convert(format string, c Converter) {
	r.converters[format] = c
}

// converter returns the converter registered under format.
func (r *Registry) converter(format string) (Converter, bool) {
	c, ok := r.converters[format]
	return c, ok
}

// bind resolves a normalized statement pattern in the dictionary of the
// given phase and returns an invoker closed over the extracted arguments.
// ok is false when no pattern matches.
func (r *Registry) bind(phase lang.Phase, pattern string, args []string) (func(rc *RunContext) error, bool) {
	switch phase {
	case lang.PhaseGiven:
		h, ok := r.given[pattern]
		if !ok {
			return nil, false
		}
		return func(rc *RunContext) error { return h(&GivenScope{rc: rc}, args...) }, true
	case lang.PhaseWhen:
		h, ok := r.when[pattern]
		if !ok {
			return nil, false
		}
		return func(rc *RunContext) error { return h(&WhenScope{rc: rc}, args...) }, true
	case lang.PhaseThen:
		h, ok := r.then[pattern]
		if !ok {
			return nil, false
		}
		return func(rc *RunContext) error { return h(&ThenScope{rc: rc}, args...) }, true
	}
	return nil, false
}

// Patterns returns the registered patterns of one phase in sorted order.
// The scenarios CLI command and tests use this to inspect registry state.
func (r *Registry) Patterns(phase lang.Phase) []string {
	var m map[string]struct{}
	switch phase {
	case lang.PhaseGiven:
		m = keySet(r.given)
	case lang.PhaseWhen:
		m = keySet(r.when)
	case lang.PhaseThen:
		m = keySet(r.then)
	default:
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func keySet[V any](m map[string]V) map[string]struct{} {
	s := make(map[string]struct{}, len(m))
	for k := range m {
		s[k] = struct{}{}
	}
	return s
}

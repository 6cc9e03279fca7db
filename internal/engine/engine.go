// Package engine implements the ZenDSL parse/run pipeline: the pattern
// registries, the bound AST, the four memory compartments with their
// phase-scoped access rules, the built-in memory verbs, and the executor
// with its traceback.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/roach88/zendsl/internal/schema"
)

// ScenarioLoader resolves a scenario name to a plugin and loads it,
// populating the registries. Loading is idempotent: the second load of a
// name is a no-op.
type ScenarioLoader interface {
	Load(name string) error
}

// Engine owns the process-wide state of the pipeline: the handler
// registries, the schema registry, and the scenario loader. One engine
// parses and runs any number of scripts; registries accumulate across
// them.
type Engine struct {
	reg     *Registry
	schemas *schema.Registry
	loader  ScenarioLoader
	errw    io.Writer

	// newRunID stamps each execution; tests override it for
	// deterministic output.
	newRunID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithErrWriter redirects diagnostics (traceback dumps) away from stderr.
func WithErrWriter(w io.Writer) Option {
	return func(e *Engine) { e.errw = w }
}

// WithRunIDs overrides the run-id generator.
func WithRunIDs(gen func() string) Option {
	return func(e *Engine) { e.newRunID = gen }
}

// New creates an engine with the built-in verbs and default schemas
// registered. Wire a scenario loader with SetLoader before parsing
// scripts that declare scenarios.
func New(opts ...Option) *Engine {
	e := &Engine{
		reg:      NewRegistry(),
		schemas:  schema.NewRegistry(),
		errw:     os.Stderr,
		newRunID: uuid.NewString,
	}
	RegisterBuiltins(e.reg)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the handler registry.
func (e *Engine) Registry() *Registry { return e.reg }

// Schemas returns the schema registry.
func (e *Engine) Schemas() *schema.Registry { return e.schemas }

// SetLoader wires the scenario loader consulted by Scenario lines.
func (e *Engine) SetLoader(l ScenarioLoader) { e.loader = l }

func (e *Engine) loadScenario(name string) error {
	if e.loader == nil {
		return fmt.Errorf("no scenario loader configured")
	}
	return e.loader.Load(name)
}

// Run is the two-stage lifecycle under one call: parse, then execute,
// then emit the final OUT document on stdout when non-empty. Parse and
// run failures render to the error writer and return the error.
func (e *Engine) Run(ctx context.Context, src string, data, keys []byte, stdout io.Writer) (*Result, error) {
	script, err := e.Parse(src)
	if err != nil {
		fmt.Fprintf(e.errw, "[!] %v\n", err)
		return nil, err
	}

	res, err := e.Exec(ctx, script, data, keys)
	if err != nil {
		return nil, err
	}

	if res.OutJSON != nil {
		fmt.Fprintf(stdout, "%s\n", res.OutJSON)
	}
	return res, nil
}

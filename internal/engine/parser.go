package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/roach88/zendsl/internal/lang"
)

// Step is one bound AST node: a source statement matched to a handler
// with its extracted arguments. Steps execute in ID order, which equals
// source order.
type Step struct {
	// ID is the monotonically increasing node id; it breaks ties among
	// structurally equal entries.
	ID int

	// Line is the 1-based source line number.
	Line int

	// Source is the original statement line, trimmed.
	Source string

	// Phase is the phase the statement executes in.
	Phase lang.Phase

	// Pattern is the normalized pattern the statement bound to.
	Pattern string

	// Args are the quoted literals in source order, spaces rewritten to
	// underscores.
	Args []string

	invoke func(rc *RunContext) error
}

// Script is the fully bound AST of one source text. It is immutable once
// parsed: no handler runs until every non-comment line is bound.
type Script struct {
	// Steps is the ordered sequence of bound statements.
	Steps []Step

	// Scenarios lists the scenario names the script loaded, in source
	// order.
	Scenarios []string

	// Source is the raw script text.
	Source string
}

// Hash returns the hex SHA-256 of the source text, used as the script key
// in the audit store.
func (s *Script) Hash() string {
	sum := sha256.Sum256([]byte(s.Source))
	return hex.EncodeToString(sum[:])
}

// Parse tokenizes and binds a script without executing anything.
//
// Each non-comment line drives the phase machine, may load a scenario,
// and must bind to a registered pattern of its phase. The first failure
// aborts the parse; the returned error carries the source position.
func (e *Engine) Parse(src string) (*Script, error) {
	if len(src) < lang.MinScriptLen {
		return nil, lang.NewScriptTooShort(len(src))
	}

	script := &Script{Source: src}
	machine := lang.NewMachine()
	counter := 0

	for i, raw := range strings.Split(src, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))

		if lang.Classify(line) != lang.LineStatement {
			continue
		}

		kw, _, ok := lang.SplitPrefix(line)
		if !ok {
			return nil, lang.NewInvalidStatement(lineNo, line)
		}

		phase, err := machine.Enter(kw)
		if err != nil {
			pe := err.(*lang.ParseError)
			return nil, pe.WithLine(lineNo, line)
		}

		switch phase {
		case lang.PhaseRule:
			// Rule lines are headers; nothing binds.
			continue

		case lang.PhaseScenario:
			name, ok := lang.FirstQuoted(line)
			if !ok {
				return nil, lang.NewInvalidStatement(lineNo, line)
			}
			if err := e.loadScenario(name); err != nil {
				return nil, lang.NewScenarioLoadFailure(lineNo, name, err)
			}
			script.Scenarios = append(script.Scenarios, name)
			slog.Debug("scenario loaded", "name", name)
			continue
		}

		pattern := lang.CandidatePattern(line)
		args := lang.Args(line)
		invoke, ok := e.reg.bind(phase, pattern, args)
		if !ok {
			return nil, lang.NewUnknownStep(lineNo, phase, line)
		}

		counter++
		script.Steps = append(script.Steps, Step{
			ID:      counter,
			Line:    lineNo,
			Source:  line,
			Phase:   phase,
			Pattern: pattern,
			Args:    args,
			invoke:  invoke,
		})
	}

	slog.Debug("script parsed", "steps", len(script.Steps), "scenarios", script.Scenarios)
	return script, nil
}

package engine

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/zendsl/internal/value"
)

// TraceKind distinguishes ordinary trace lines from recorded failures.
type TraceKind string

const (
	TraceInfo  TraceKind = "trace"
	TraceError TraceKind = "error"
)

// TraceEntry is one line of the traceback.
type TraceEntry struct {
	Kind TraceKind `json:"kind"`
	Text string    `json:"text"`
}

// Traceback accumulates one entry per traced line and renders on failure.
// It is an append-only event log, not string concatenation: rendering
// happens once, when a run aborts or a debug dump is requested.
type Traceback struct {
	entries []TraceEntry
}

// NewTraceback returns an empty traceback.
func NewTraceback() *Traceback {
	return &Traceback{}
}

// Infof appends an ordinary trace line.
func (t *Traceback) Infof(format string, args ...any) {
	t.entries = append(t.entries, TraceEntry{Kind: TraceInfo, Text: fmt.Sprintf(format, args...)})
}

// Errorf appends a failure line.
func (t *Traceback) Errorf(format string, args ...any) {
	t.entries = append(t.entries, TraceEntry{Kind: TraceError, Text: fmt.Sprintf(format, args...)})
}

// Entries returns a copy of the accumulated entries.
func (t *Traceback) Entries() []TraceEntry {
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of accumulated entries.
func (t *Traceback) Len() int { return len(t.entries) }

// Reset clears the buffer. The executor resets after dumping so one
// process can run many scripts.
func (t *Traceback) Reset() {
	t.entries = t.entries[:0]
}

// Render writes the trace lines to w, one per entry.
func (t *Traceback) Render(w io.Writer) {
	for _, e := range t.entries {
		switch e.Kind {
		case TraceError:
			fmt.Fprintf(w, "[!] %s\n", e.Text)
		default:
			fmt.Fprintf(w, " .  %s\n", e.Text)
		}
	}
}

// dumpDiagnostics renders the traceback followed by ordered dumps of the
// four compartments and the schema registry. Called once when a run
// aborts; the traceback is cleared afterwards.
func dumpDiagnostics(w io.Writer, rc *RunContext) {
	rc.trace.Render(w)
	dumpCompartment(w, "IN", rc.In)
	dumpCompartment(w, "TMP", rc.Tmp)
	dumpCompartment(w, "ACK", rc.Ack)
	dumpCompartment(w, "OUT", rc.Out)
	fmt.Fprintf(w, "[SCHEMAS] %v\n", rc.schemas.Names())
	rc.trace.Reset()
}

func dumpCompartment(w io.Writer, name string, obj value.Object) {
	data, err := value.Marshal(obj)
	if err != nil {
		fmt.Fprintf(w, "[%s] <unserializable: %v>\n", name, err)
		return
	}
	fmt.Fprintf(w, "[%s] %s\n", name, data)
}

// DebugDump is the machine-readable failure report.
type DebugDump struct {
	RunID     string          `json:"run_id"`
	Traceback []TraceEntry    `json:"traceback"`
	In        json.RawMessage `json:"in"`
	Tmp       json.RawMessage `json:"tmp"`
	Ack       json.RawMessage `json:"ack"`
	Out       json.RawMessage `json:"out"`
	Schemas   []string        `json:"schemas"`
}

// debugDump captures the full run state as JSON for machine consumers.
func debugDump(rc *RunContext) (*DebugDump, error) {
	d := &DebugDump{
		RunID:     rc.RunID,
		Traceback: rc.trace.Entries(),
		Schemas:   rc.schemas.Names(),
	}
	for _, part := range []struct {
		dst *json.RawMessage
		src value.Object
	}{
		{&d.In, rc.In},
		{&d.Tmp, rc.Tmp},
		{&d.Ack, rc.Ack},
		{&d.Out, rc.Out},
	} {
		data, err := value.Marshal(part.src)
		if err != nil {
			return nil, err
		}
		*part.dst = data
	}
	return d, nil
}

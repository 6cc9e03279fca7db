// Package schema holds the named validators a run consults when a script
// acquires input. A schema maps a decoded value to its canonical form
// (usually octets with a fixed encoding) or fails.
package schema

import (
	"fmt"
	"slices"

	"github.com/roach88/zendsl/internal/value"
)

// Schema validates a decoded value and returns its canonical form.
// Schemas are pure: they never mutate their input and never touch the
// memory compartments.
type Schema func(value.Value) (value.Value, error)

// Registry maps schema names to validators. Scenarios populate it at load
// time; it lives for the whole process.
type Registry struct {
	schemas map[string]Schema
}

// NewRegistry returns a registry preloaded with the schemas every script
// may rely on regardless of scenario.
func NewRegistry() *Registry {
	r := &Registry{schemas: make(map[string]Schema)}
	r.Register("identity", Identity())
	r.Register("string", StringSchema())
	return r
}

// Register adds or replaces a named validator.
func (r *Registry) Register(name string, s Schema) {
	r.schemas[name] = s
}

// Lookup returns the validator registered under name.
func (r *Registry) Lookup(name string) (Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns all registered schema names in sorted order, for the
// diagnostics dump.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.schemas))
	for n := range r.schemas {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Identity returns the pass-through schema: any value validates to a deep
// copy of itself.
func Identity() Schema {
	return func(v value.Value) (value.Value, error) {
		return value.Clone(v), nil
	}
}

// StringSchema validates that the value is a string and canonicalizes it
// to a string-encoded octet.
func StringSchema() Schema {
	return func(v value.Value) (value.Value, error) {
		s, ok := v.(value.String)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return value.NewOctetWithEncoding([]byte(s), value.EncodingString), nil
	}
}

// Octet returns a schema that decodes a string through enc into an octet.
// When sizes are given, the decoded length must be one of them.
func Octet(enc value.Encoding, sizes ...int) Schema {
	return func(v value.Value) (value.Value, error) {
		s, ok := v.(value.String)
		if !ok {
			// Octets produced by an earlier validation pass through
			// unchanged apart from the rendering hint.
			if o, isOctet := v.(*value.Octet); isOctet {
				if err := checkSize(o.Len(), sizes); err != nil {
					return nil, err
				}
				return o.WithEncoding(enc), nil
			}
			return nil, fmt.Errorf("expected %s-encoded string, got %T", enc, v)
		}
		o, err := value.OctetFromEncoded(string(s), enc)
		if err != nil {
			return nil, err
		}
		if err := checkSize(o.Len(), sizes); err != nil {
			o.Wipe()
			return nil, err
		}
		return o, nil
	}
}

// Map returns a schema over a mapping: every present key listed in fields
// validates through its schema; keys not listed are rejected. Missing keys
// are allowed so partial structures (a keyring with one algorithm) pass.
func Map(fields map[string]Schema) Schema {
	return func(v value.Value) (value.Value, error) {
		obj, ok := v.(value.Object)
		if !ok {
			return nil, fmt.Errorf("expected mapping, got %T", v)
		}
		out := make(value.Object, len(obj))
		for _, k := range obj.SortedKeys() {
			fs, known := fields[k]
			if !known {
				return nil, fmt.Errorf("unexpected key %q", k)
			}
			canon, err := fs(obj[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = canon
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("empty mapping")
		}
		return out, nil
	}
}

func checkSize(n int, sizes []int) error {
	if len(sizes) == 0 {
		return nil
	}
	if slices.Contains(sizes, n) {
		return nil
	}
	return fmt.Errorf("wrong octet length %d, want one of %v", n, sizes)
}

// Package testutil provides JSON fixture helpers shared by the cli and
// scenario tests.
package testutil

import (
	"testing"

	"github.com/roach88/zendsl/internal/value"
)

// MustValue decodes a JSON literal or fails the test.
func MustValue(t *testing.T, src string) value.Value {
	t.Helper()
	v, err := value.Decode([]byte(src))
	if err != nil {
		t.Fatalf("decode %q: %v", src, err)
	}
	return v
}

// MustObject decodes a JSON object literal or fails the test.
func MustObject(t *testing.T, src string) value.Object {
	t.Helper()
	obj, ok := MustValue(t, src).(value.Object)
	if !ok {
		t.Fatalf("decode %q: not an object", src)
	}
	return obj
}

// MustMarshal encodes a value to canonical JSON or fails the test.
func MustMarshal(t *testing.T, v value.Value) string {
	t.Helper()
	data, err := value.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

// Package scenario resolves scenario names to compile-time registered
// plugins. A Scenario line in a script loads the plugin, which populates
// the handler and schema registries with its patterns and validators.
package scenario

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/zendsl/internal/engine"
	"github.com/roach88/zendsl/internal/schema"
	"github.com/roach88/zendsl/internal/value"
)

// Factory populates the registries when its scenario loads.
type Factory func(reg *engine.Registry, schemas *schema.Registry) error

// factories maps module identifiers (zencode_<name>) to their factory.
// Population happens at package init; there is no dynamic module loading.
var factories = map[string]Factory{}

// register wires a factory under its module identifier. Called from init
// in each plugin file.
func register(module string, f Factory) {
	factories[module] = f
}

// Names returns the loadable scenario names (without the module prefix)
// in sorted order.
func Names() []string {
	names := make([]string, 0, len(factories))
	for module := range factories {
		names = append(names, strings.TrimPrefix(module, "zencode_"))
	}
	slices.Sort(names)
	return names
}

// Loader resolves a scenario name to its module (zencode_<name>) and
// loads it exactly once per engine. A second load of the same name is a
// no-op, so two scripts in one process declaring the same scenario leave
// the registries in the same state as one.
type Loader struct {
	reg     *engine.Registry
	schemas *schema.Registry
	loaded  map[string]bool
}

// NewLoader creates a loader bound to an engine's registries.
func NewLoader(reg *engine.Registry, schemas *schema.Registry) *Loader {
	return &Loader{reg: reg, schemas: schemas, loaded: make(map[string]bool)}
}

// Load implements engine.ScenarioLoader.
func (l *Loader) Load(name string) error {
	module := "zencode_" + strings.ToLower(strings.TrimSpace(name))
	if l.loaded[module] {
		return nil
	}
	f, ok := factories[module]
	if !ok {
		return fmt.Errorf("no module %q", module)
	}
	if err := f(l.reg, l.schemas); err != nil {
		return fmt.Errorf("load %q: %w", module, err)
	}
	l.loaded[module] = true
	return nil
}

// NewEngine creates an engine wired to the plugin loader. This is the
// entry point hosts use.
func NewEngine(opts ...engine.Option) *engine.Engine {
	e := engine.New(opts...)
	e.SetLoader(NewLoader(e.Registry(), e.Schemas()))
	return e
}

// keyringSchema validates the keyring mapping shared by the cryptographic
// scenarios: algorithm name to base58 secret key octet.
func keyringSchema() schema.Schema {
	return schema.Map(map[string]schema.Schema{
		"eddsa": schema.Octet(value.EncodingBase58, 32),
		"p256":  schema.Octet(value.EncodingBase58, 32),
	})
}

// wipe zeroes a temporary secret buffer. Deferred by the handlers that
// allocate key material so release happens on every return path.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// messageBytes extracts raw bytes from an acknowledged value for signing
// and verification.
func messageBytes(v value.Value) ([]byte, error) {
	switch val := v.(type) {
	case *value.Octet:
		return val.Bytes(), nil
	case value.String:
		return []byte(val), nil
	default:
		return nil, fmt.Errorf("cannot sign %T, octet or string required", v)
	}
}

// myKeyring returns the keyring acknowledged under the run identity.
func myKeyring(ack value.Object, who string) (value.Object, error) {
	mine, ok := ack[who].(value.Object)
	if !ok {
		return nil, fmt.Errorf("no keyring acknowledged for %q", who)
	}
	kr, ok := mine["keyring"].(value.Object)
	if !ok {
		return nil, fmt.Errorf("no keyring acknowledged for %q", who)
	}
	return kr, nil
}

// secretKey pulls one algorithm's secret out of the identity's keyring.
func secretKey(w *engine.WhenScope, alg string) ([]byte, error) {
	who, ok := w.Whoami()
	if !ok {
		return nil, fmt.Errorf("no identity set")
	}
	kr, err := myKeyring(w.Ack(), who)
	if err != nil {
		return nil, err
	}
	o, ok := kr[alg].(*value.Octet)
	if !ok {
		return nil, fmt.Errorf("no %s key in keyring", alg)
	}
	return o.Bytes(), nil
}

// storeKeypair places a fresh secret into ACK[whoami].keyring[alg],
// refusing to overwrite an existing key.
func storeKeypair(w *engine.WhenScope, alg string, secret []byte) error {
	who, ok := w.Whoami()
	if !ok {
		return fmt.Errorf("no identity set, cannot create a keypair")
	}
	mine, ok := w.Ack()[who].(value.Object)
	if !ok {
		if _, present := w.Ack()[who]; present {
			return fmt.Errorf("%q already holds a non-mapping value", who)
		}
		mine = value.Object{}
		w.Ack()[who] = mine
	}
	kr, ok := mine["keyring"].(value.Object)
	if !ok {
		if _, present := mine["keyring"]; present {
			return fmt.Errorf("keyring already holds a non-mapping value")
		}
		kr = value.Object{}
		mine["keyring"] = kr
	}
	if _, present := kr[alg]; present {
		return fmt.Errorf("%s key already present in keyring", alg)
	}
	kr[alg] = value.NewOctetWithEncoding(secret, value.EncodingBase58)
	return nil
}

// mineObject returns the acknowledged mapping under the run identity,
// creating it when absent.
func mineObject(w *engine.WhenScope) (value.Object, error) {
	who, ok := w.Whoami()
	if !ok {
		return nil, fmt.Errorf("no identity set")
	}
	mine, ok := w.Ack()[who].(value.Object)
	if !ok {
		if _, present := w.Ack()[who]; present {
			return nil, fmt.Errorf("%q already holds a non-mapping value", who)
		}
		mine = value.Object{}
		w.Ack()[who] = mine
	}
	return mine, nil
}

// peerPublicKey reads another identity's acknowledged public key. A key
// acquired with a plain "I have" lands at the top level of ACK instead of
// under the signer, so both spots are searched.
func peerPublicKey(ack value.Object, signer, name string) (*value.Octet, error) {
	if section, ok := ack[signer].(value.Object); ok {
		if o, ok := section[name].(*value.Octet); ok {
			return o, nil
		}
	}
	if o, ok := ack[name].(*value.Octet); ok {
		return o, nil
	}
	return nil, fmt.Errorf("no %s for %q", name, signer)
}

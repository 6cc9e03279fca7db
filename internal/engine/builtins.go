package engine

import (
	"github.com/roach88/zendsl/internal/schema"
	"github.com/roach88/zendsl/internal/value"
)

// RegisterBuiltins populates a registry with the memory-movement verbs
// every scenario depends on, plus the default converters.
func RegisterBuiltins(r *Registry) {
	r.Given("i am ''", builtinIam)
	r.Given("i am known as ''", builtinIam)
	r.Given("i am myself", builtinIam)
	r.Given("i have ''", builtinHave)
	r.Given("i have a valid ''", builtinHaveValid)
	r.Given("i have my ''", builtinHaveMy)
	r.Given("i have my valid ''", builtinHaveMyValid)
	r.Given("i have inside '' a ''", builtinHaveInside)

	r.When("i draft the string ''", builtinDraft)
	r.When("i write the string '' in ''", builtinWriteString)
	r.When("i convert '' to ''", builtinConvert)

	r.Then("print ''", builtinPrint)
	r.Then("print my ''", builtinPrintMy)
	r.Then("print '' as ''", builtinPrintAs)
	r.Then("print all data", builtinPrintAll)

	r.Convert("string", convertToString)
	r.Convert("hex", convertToEncoding(value.EncodingHex))
	r.Convert("base58", convertToEncoding(value.EncodingBase58))
	r.Convert("base64", convertToEncoding(value.EncodingBase64))
}

// builtinIam sets the run identity. A second Iam with a different name
// fails; repeating the same name is a no-op. The no-argument form only
// asserts that an identity has been set.
func builtinIam(g *GivenScope, args ...string) error {
	if len(args) == 0 {
		if _, ok := g.Whoami(); !ok {
			return NewIdentityError("no identity set")
		}
		return nil
	}
	return g.SetWhoami(args[0])
}

// oneDeepLookup resolves key against a container: container[key] if
// present, otherwise the first child[key] found scanning one level of
// nested mappings. The scan visits children in canonical key order so
// resolution is deterministic.
func oneDeepLookup(container value.Object, key string) (value.Value, bool) {
	if v, ok := container[key]; ok {
		return v, true
	}
	for _, k := range container.SortedKeys() {
		child, isObj := container[k].(value.Object)
		if !isObj {
			continue
		}
		if v, ok := child[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// pick stages a value from IN.KEYS or IN into TMP. KEYS wins over DATA
// when both hold the name.
func pick(g *GivenScope, what string) error {
	v, ok := oneDeepLookup(g.Keys(), what)
	if !ok {
		v, ok = oneDeepLookup(g.In(), what)
	}
	if !ok {
		return NewNotFound(what)
	}
	stage(g, v, what, "")
	return nil
}

// pickin resolves a section by one-deep lookup, then the name inside it.
func pickin(g *GivenScope, section, what string) error {
	sec, ok := oneDeepLookup(g.Keys(), section)
	if !ok {
		sec, ok = oneDeepLookup(g.In(), section)
	}
	if !ok {
		return NewNotFound(section)
	}
	secObj, isObj := sec.(value.Object)
	if !isObj {
		return NewTypeError("section %q is not a mapping", section)
	}
	v, ok := oneDeepLookup(secObj, what)
	if !ok {
		return NewNotFound(what)
	}
	stage(g, v, what, section)
	return nil
}

// stage overwrites TMP with a fresh binding. Each pick replaces whatever
// the previous pick staged.
func stage(g *GivenScope, data value.Value, schemaHint, root string) {
	tmp := g.Tmp()
	clear(tmp)
	tmp[TmpData] = value.Clone(data)
	tmp[TmpSchema] = value.String(schemaHint)
	if root != "" {
		tmp[TmpRoot] = value.String(root)
	}
}

// validate applies the named schema to TMP.data and stores the canonical
// result in TMP.valid. The schema name falls back to TMP.schema, then to
// name itself. When required is false and no such schema exists, the
// identity schema applies.
func validate(g *GivenScope, name, override string, required bool) error {
	tmp := g.Tmp()
	data, ok := tmp[TmpData]
	if !ok {
		return NewTypeError("nothing staged to validate %q", name)
	}

	schemaName := override
	if schemaName == "" {
		if hint, ok := tmp[TmpSchema].(value.String); ok && hint != "" {
			schemaName = string(hint)
		}
	}
	if schemaName == "" {
		schemaName = name
	}

	s, found := g.Schemas().Lookup(schemaName)
	if !found {
		if required {
			return NewSchemaNotFound(schemaName)
		}
		s = schema.Identity()
	}

	valid, err := s(data)
	if err != nil {
		return NewSchemaFailed(schemaName, err)
	}
	tmp[TmpValid] = valid
	return nil
}

// ack consumes TMP.valid into ACK[name]. Absent entries are assigned;
// scalars promote to a singleton array and append; arrays append; an
// existing non-array mapping rejects the ack.
func ack(g *GivenScope, name string) error {
	tmp := g.Tmp()
	valid, ok := tmp[TmpValid]
	if !ok {
		return NewTypeError("nothing validated to acknowledge as %q", name)
	}
	if err := ackAppend(g.Ack(), name, valid); err != nil {
		return err
	}
	clear(tmp)
	return nil
}

// ackAppend implements the assign-or-append policy shared by ack and
// ackmy.
func ackAppend(ack value.Object, name string, v value.Value) error {
	existing, present := ack[name]
	if !present {
		ack[name] = v
		return nil
	}
	switch old := existing.(type) {
	case value.Array:
		ack[name] = append(old, v)
	case value.Object:
		return NewTypeError("%q already holds a mapping, cannot acknowledge again", name)
	default:
		ack[name] = value.Array{old, v}
	}
	return nil
}

// ackMy writes into ACK[whoami][name]. With a nil object it consumes
// TMP.valid and clears the TMP entries it used.
func ackMy(g *GivenScope, name string, obj value.Value) error {
	who, ok := g.Whoami()
	if !ok {
		return NewIdentityError("no identity set, cannot acknowledge my data")
	}

	fromTmp := obj == nil
	if fromTmp {
		v, has := g.Tmp()[TmpValid]
		if !has {
			return NewTypeError("nothing validated to acknowledge as my %q", name)
		}
		obj = v
	}

	mine, isObj := g.Ack()[who].(value.Object)
	if !isObj {
		if _, present := g.Ack()[who]; present {
			return NewTypeError("%q already holds a non-mapping value", who)
		}
		mine = value.Object{}
		g.Ack()[who] = mine
	}
	if err := ackAppend(mine, name, obj); err != nil {
		return err
	}

	if fromTmp {
		delete(g.Tmp(), TmpValid)
		delete(g.Tmp(), name)
	}
	return nil
}

// builtinHave is pick + validate + ack under one name. The schema is
// optional: names without a registered validator pass through identity.
func builtinHave(g *GivenScope, args ...string) error {
	return have(g, args[0], false)
}

// builtinHaveValid is builtinHave with a mandatory schema.
func builtinHaveValid(g *GivenScope, args ...string) error {
	return have(g, args[0], true)
}

func have(g *GivenScope, what string, required bool) error {
	if err := pick(g, what); err != nil {
		return err
	}
	if err := validate(g, what, "", required); err != nil {
		return err
	}
	return ack(g, what)
}

// builtinHaveMy acquires a value from inside the section named by the run
// identity and acknowledges it under the identity.
func builtinHaveMy(g *GivenScope, args ...string) error {
	return haveMy(g, args[0], false)
}

// builtinHaveMyValid is builtinHaveMy with a mandatory schema.
func builtinHaveMyValid(g *GivenScope, args ...string) error {
	return haveMy(g, args[0], true)
}

func haveMy(g *GivenScope, what string, required bool) error {
	who, ok := g.Whoami()
	if !ok {
		return NewIdentityError("no identity set, cannot have my data")
	}
	if err := pickin(g, who, what); err != nil {
		return err
	}
	if err := validate(g, what, "", required); err != nil {
		return err
	}
	return ackMy(g, what, nil)
}

// builtinHaveInside acquires a value from inside a named section.
func builtinHaveInside(g *GivenScope, args ...string) error {
	section, what := args[0], args[1]
	if err := pickin(g, section, what); err != nil {
		return err
	}
	if err := validate(g, what, "", false); err != nil {
		return err
	}
	return ack(g, what)
}

// builtinDraft appends a string to ACK.draft, creating it on first call.
func builtinDraft(w *WhenScope, args ...string) error {
	s := args[0]
	existing, ok := w.Ack()["draft"].(value.String)
	if !ok {
		if _, present := w.Ack()["draft"]; present {
			return NewTypeError("draft already holds a non-string value")
		}
		w.Ack()["draft"] = value.String(s)
		return nil
	}
	w.Ack()["draft"] = existing + value.String(s)
	return nil
}

// builtinWriteString acknowledges a literal string under a name in ACK,
// with the same assign-or-append policy as ack.
func builtinWriteString(w *WhenScope, args ...string) error {
	s, name := args[0], args[1]
	return ackAppend(w.Ack(), name, value.String(s))
}

// builtinConvert rewrites ACK[name] through a named converter.
func builtinConvert(w *WhenScope, args ...string) error {
	name, format := args[0], args[1]
	v, ok := w.Ack()[name]
	if !ok {
		return NewNotFound(name)
	}
	c, ok := w.Converter(format)
	if !ok {
		return NewTypeError("no converter named %q", format)
	}
	out, err := c(v)
	if err != nil {
		return NewTypeError("convert %q to %s: %v", name, format, err)
	}
	w.Ack()[name] = out
	return nil
}

// builtinPrint moves one acknowledged value into OUT.
func builtinPrint(t *ThenScope, args ...string) error {
	name := args[0]
	v, ok := t.AckGet(name)
	if !ok {
		return NewNotFound(name)
	}
	t.SetOut(name, v)
	return nil
}

// builtinPrintMy moves one acknowledged value into OUT under the run
// identity.
func builtinPrintMy(t *ThenScope, args ...string) error {
	name := args[0]
	if _, ok := t.Whoami(); !ok {
		return NewIdentityError("no identity set, cannot print my data")
	}
	v, ok := t.AckMyGet(name)
	if !ok {
		return NewNotFound(name)
	}
	return t.SetOutMy(name, v)
}

// builtinPrintAs converts an acknowledged value and moves it into OUT.
func builtinPrintAs(t *ThenScope, args ...string) error {
	name, format := args[0], args[1]
	v, ok := t.AckGet(name)
	if !ok {
		return NewNotFound(name)
	}
	c, ok := t.Converter(format)
	if !ok {
		return NewTypeError("no converter named %q", format)
	}
	out, err := c(v)
	if err != nil {
		return NewTypeError("convert %q to %s: %v", name, format, err)
	}
	t.SetOut(name, out)
	return nil
}

// builtinPrintAll moves every acknowledged value except the identity
// marker into OUT.
func builtinPrintAll(t *ThenScope, args ...string) error {
	for name, v := range t.AckAll() {
		if name == WhoamiKey {
			continue
		}
		t.SetOut(name, v)
	}
	return nil
}

// convertToString renders an octet's raw bytes as a string value.
func convertToString(v value.Value) (value.Value, error) {
	switch val := v.(type) {
	case *value.Octet:
		return value.String(val.Bytes()), nil
	case value.String:
		return val, nil
	default:
		return nil, NewTypeError("cannot render %T as string", v)
	}
}

// convertToEncoding rehints an octet's rendering.
func convertToEncoding(enc value.Encoding) Converter {
	return func(v value.Value) (value.Value, error) {
		o, ok := v.(*value.Octet)
		if !ok {
			return nil, NewTypeError("cannot re-encode %T, octet required", v)
		}
		return o.WithEncoding(enc), nil
	}
}

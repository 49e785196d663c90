package vm

import (
	"strings"

	"ty/internal/bytecode"
	"ty/internal/value"
)

// execClass implements OpClass: pops the trait dicts (innermost/last
// declared on top), then fieldDefaults/statics/methods/parent, in the
// reverse of compileClassDef's push order, and assembles a value.Class.
// A class's own explicit methods win over a trait's contribution on a
// name collision, since traits are merged first and the class's own
// methodsDict is applied last.
func (v *VM) execClass(f *Frame) {
	code := f.chunk.Code
	nameIdx := bytecode.ReadUint32(code, f.ip)
	f.ip += 4
	fieldsIdx := bytecode.ReadUint32(code, f.ip)
	f.ip += 4
	traitsIdx := bytecode.ReadUint32(code, f.ip)
	f.ip += 4
	traitCount := int(bytecode.ReadUint16(code, f.ip))
	f.ip += 2

	traitDicts := make([]*value.Dict, traitCount)
	for i := traitCount - 1; i >= 0; i-- {
		traitDicts[i] = f.pop().Data.(*value.Dict)
	}
	fieldDefaultsDict := f.pop().Data.(*value.Dict)
	staticsDict := f.pop().Data.(*value.Dict)
	methodsDict := f.pop().Data.(*value.Dict)
	parentVal := f.pop()

	var parent *value.Class
	if !parentVal.IsNil() {
		parent = parentVal.Data.(*value.Class)
	}

	name := f.chunk.Constants[nameIdx].(string)
	fields := f.chunk.Constants[fieldsIdx].([]string)
	traits := f.chunk.Constants[traitsIdx].([]string)

	cls := &value.Class{
		Name: name, Parent: parent, Traits: traits, Fields: fields,
		Methods: map[string]*value.Function{}, Statics: map[string]value.Value{},
		Getters: map[string]*value.Function{}, Setters: map[string]*value.Function{},
		FieldDefaults: map[string]value.Value{},
	}
	for _, td := range traitDicts {
		mergeMethodDict(cls, td)
	}
	mergeMethodDict(cls, methodsDict)
	staticsDict.Each(func(k, val value.Value) { cls.Statics[keyString(k)] = val })
	fieldDefaultsDict.Each(func(k, val value.Value) { cls.FieldDefaults[keyString(k)] = val })

	f.push(value.Value{Kind: value.KClass, Data: cls})
}

func keyString(k value.Value) string {
	if k.Kind != value.KString {
		return ""
	}
	return string(k.Data.(*value.String).Bytes)
}

func mergeMethodDict(cls *value.Class, d *value.Dict) {
	d.Each(func(k, val value.Value) {
		key := keyString(k)
		fn, ok := val.Data.(*value.Function)
		if !ok {
			return
		}
		switch {
		case strings.HasPrefix(key, "get:"):
			cls.Getters[strings.TrimPrefix(key, "get:")] = fn
		case strings.HasPrefix(key, "set:"):
			cls.Setters[strings.TrimPrefix(key, "set:")] = fn
		default:
			cls.Methods[key] = fn
		}
	})
}

// construct builds a new instance of cls: field defaults populate
// parent-first (so a subclass's own default overrides its parent's),
// then an "init" method, if any class in the chain defines one, runs
// with self bound to the new object. The constructed object is always
// what's returned, regardless of what init's body returns.
func (v *VM) construct(f *Frame, cls *value.Class, args []value.Value, kwargs *value.Dict) (value.Value, error) {
	obj := value.NewObject(v.Heap, cls)

	var chain []*value.Class
	for c := cls; c != nil; c = c.Parent {
		chain = append(chain, c)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, val := range chain[i].FieldDefaults {
			obj.Fields[k] = val
		}
	}

	selfVal := value.Value{Kind: value.KObject, Data: obj}
	if initFn, ok := lookupMethod(cls, "init"); ok {
		fnVal := value.Value{Kind: value.KFunction, Data: initFn}
		if _, err := v.invoke(f, fnVal, args, kwargs, &selfVal); err != nil {
			return value.Nil(), err
		}
	}
	return selfVal, nil
}

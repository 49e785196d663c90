// Package value implements the tagged Value representation shared by
// the compiler's constant pool and the VM. A bare `type Value
// interface{}` dispatched on with Go type switches can't attach a tag
// stack to every value without a wrapper at every call site, so Value
// here is a small struct pairing a Kind discriminator and tag-stack id
// with the payload, keeping a type-switch dispatch style on the
// payload field.
package value

import "ty/internal/gc"

type Kind uint8

const (
	KNil Kind = iota
	KBoolean
	KInteger
	KReal
	KString
	KArray
	KDict
	KTuple
	KBlob
	KRegex
	KFunction
	KBuiltinFunction
	KMethod
	KBuiltinMethod
	KClass
	KObject
	KTag
	KPointer
	KThread
	KSentinel
)

// Value is the uniform runtime representation. Data holds the payload
// appropriate to Kind: nil for KNil/KSentinel, bool, int64, float64, a
// *String, *Array, *Dict, *Tuple, *Blob, *Regex, *Function,
// *BuiltinFunction, *Method, *BuiltinMethod, *Class, *Object, an
// interned TagID for KTag, an opaque any for KPointer, or *Thread.
type Value struct {
	Kind Kind
	Tags TagStack
	Data any
}

func Nil() Value            { return Value{Kind: KNil} }
func Sentinel() Value       { return Value{Kind: KSentinel} }
func Bool(b bool) Value     { return Value{Kind: KBoolean, Data: b} }
func Int(i int64) Value     { return Value{Kind: KInteger, Data: i} }
func Real(f float64) Value  { return Value{Kind: KReal, Data: f} }
func Ptr(p any) Value       { return Value{Kind: KPointer, Data: p} }

func (v Value) IsNil() bool { return v.Kind == KNil }

func (v Value) Truthy() bool {
	switch v.Kind {
	case KNil, KSentinel:
		return false
	case KBoolean:
		return v.Data.(bool)
	default:
		return true
	}
}

// String is a GC-owned immutable byte sequence, or a non-owning view
// into another String's bytes.
type String struct {
	gc.Header
	Bytes []byte
	Owner *String // non-nil for a view; Bytes then aliases Owner.Bytes[offset:offset+len]
}

func NewString(h *gc.Heap, s string) *String {
	o := &String{Bytes: []byte(s)}
	h.Track(gc.KindString, o)
	return o
}

// View creates a non-owning slice of s, keeping s alive via Owner
// rather than copying bytes.
func (s *String) View(h *gc.Heap, offset, length int) *String {
	owner := s
	if s.Owner != nil {
		owner = s.Owner
	}
	v := &String{Bytes: s.Bytes[offset : offset+length], Owner: owner}
	h.Track(gc.KindString, v)
	return v
}

func (s *String) Mark() {
	if s.Marked() {
		return
	}
	s.SetMarked(true)
	if s.Owner != nil {
		s.Owner.Mark()
	}
}

type Array struct {
	gc.Header
	Elems []Value
}

func NewArray(h *gc.Heap, elems []Value) *Array {
	a := &Array{Elems: elems}
	h.Track(gc.KindArray, a)
	return a
}

func (a *Array) Mark() {
	if a.Marked() {
		return
	}
	a.SetMarked(true)
	for _, e := range a.Elems {
		MarkValue(e)
	}
}

type dictEntry struct {
	Key   Value
	Val   Value
	Used  bool
}

// Dict is an open-addressed Value->Value table with an optional default
// value returned for a missing key.
type Dict struct {
	gc.Header
	entries []dictEntry
	count   int
	Default *Value
}

func NewDict(h *gc.Heap) *Dict {
	d := &Dict{entries: make([]dictEntry, 8)}
	h.Track(gc.KindDict, d)
	return d
}

func (d *Dict) Mark() {
	if d.Marked() {
		return
	}
	d.SetMarked(true)
	for _, e := range d.entries {
		if e.Used {
			MarkValue(e.Key)
			MarkValue(e.Val)
		}
	}
	if d.Default != nil {
		MarkValue(*d.Default)
	}
}

func (d *Dict) Get(key Value) (Value, bool) {
	if len(d.entries) == 0 {
		return Value{}, false
	}
	idx := int(Hash(key) % uint64(len(d.entries)))
	for i := 0; i < len(d.entries); i++ {
		slot := &d.entries[(idx+i)%len(d.entries)]
		if !slot.Used {
			return Value{}, false
		}
		if Equal(slot.Key, key) {
			return slot.Val, true
		}
	}
	return Value{}, false
}

func (d *Dict) Set(key, val Value) {
	if d.count*2 >= len(d.entries) {
		d.grow()
	}
	idx := int(Hash(key) % uint64(len(d.entries)))
	for i := 0; i < len(d.entries); i++ {
		slot := &d.entries[(idx+i)%len(d.entries)]
		if !slot.Used {
			*slot = dictEntry{Key: key, Val: val, Used: true}
			d.count++
			return
		}
		if Equal(slot.Key, key) {
			slot.Val = val
			return
		}
	}
}

func (d *Dict) grow() {
	old := d.entries
	d.entries = make([]dictEntry, len(old)*2)
	d.count = 0
	for _, e := range old {
		if e.Used {
			d.Set(e.Key, e.Val)
		}
	}
}

func (d *Dict) Len() int { return d.count }

func (d *Dict) Each(f func(k, v Value)) {
	for _, e := range d.entries {
		if e.Used {
			f(e.Key, e.Val)
		}
	}
}

type Tuple struct {
	gc.Header
	Elems []Value
	Names []string // nil if unnamed; otherwise parallel to Elems
}

func NewTuple(h *gc.Heap, elems []Value, names []string) *Tuple {
	t := &Tuple{Elems: elems, Names: names}
	h.Track(gc.KindTuple, t)
	return t
}

func (t *Tuple) Mark() {
	if t.Marked() {
		return
	}
	t.SetMarked(true)
	for _, e := range t.Elems {
		MarkValue(e)
	}
}

type Blob struct {
	gc.Header
	Bytes []byte
}

func NewBlob(h *gc.Heap, b []byte) *Blob {
	v := &Blob{Bytes: b}
	h.Track(gc.KindBlob, v)
	return v
}

func (b *Blob) Mark() { b.SetMarked(true) }

type Regex struct {
	gc.Header
	Source   string
	Flags    string
	Compiled any // *regexp.Regexp or equivalent, attached by the lexer/compiler
}

func (r *Regex) Mark() { r.SetMarked(true) }

// Function is a closure: code plus its captured environment vector and
// parameter metadata.
type Function struct {
	gc.Header
	Name        string
	Code        any // *bytecode.Chunk, typed any here to avoid an import cycle with bytecode's Chunk living alongside compiler output
	Params      []ParamInfo
	RestIndex   int
	KwargsIndex int
	Env         *RefVector
	IsGenerator bool
	SelfSlot    int // slot the function binds itself to for self-recursion, -1 if none
}

type ParamInfo struct {
	Name    string
	Default *Value // nil if required
}

func (f *Function) Mark() {
	if f.Marked() {
		return
	}
	f.SetMarked(true)
	if f.Env != nil {
		f.Env.Mark()
	}
}

type BuiltinFn func(args []Value) (Value, error)

type BuiltinFunction struct {
	gc.Header
	Name string
	Fn   BuiltinFn
}

func (b *BuiltinFunction) Mark() { b.SetMarked(true) }

type Method struct {
	gc.Header
	Receiver Value
	Fn       *Function
}

func (m *Method) Mark() {
	if m.Marked() {
		return
	}
	m.SetMarked(true)
	MarkValue(m.Receiver)
	m.Fn.Mark()
}

type BuiltinMethod struct {
	gc.Header
	Receiver Value
	Fn       BuiltinFn
}

func (m *BuiltinMethod) Mark() {
	if m.Marked() {
		return
	}
	m.SetMarked(true)
	MarkValue(m.Receiver)
}

type Class struct {
	gc.Header
	Name          string
	Parent        *Class
	Traits        []string
	Fields        []string
	Methods       map[string]*Function
	Statics       map[string]Value
	Getters       map[string]*Function
	Setters       map[string]*Function
	FieldDefaults map[string]Value
}

func (c *Class) Mark() {
	if c.Marked() {
		return
	}
	c.SetMarked(true)
	if c.Parent != nil {
		c.Parent.Mark()
	}
	for _, m := range c.Methods {
		m.Mark()
	}
	for _, v := range c.Statics {
		MarkValue(v)
	}
	for _, v := range c.FieldDefaults {
		MarkValue(v)
	}
}

// Object is a class instance: a field table plus the class it was built
// from and an optional finalizer.
type Object struct {
	gc.Header
	Class     *Class
	Fields    map[string]Value
	Finalizer *Value
}

func NewObject(h *gc.Heap, class *Class) *Object {
	o := &Object{Class: class, Fields: map[string]Value{}}
	h.Track(gc.KindObject, o)
	return o
}

// TakeFinalizer implements gc.Finalizable: it returns and clears the
// object's finalizer so the sweep only queues it once.
func (o *Object) TakeFinalizer() any {
	if o.Finalizer == nil {
		return nil
	}
	f := *o.Finalizer
	o.Finalizer = nil
	return f
}

func (o *Object) Mark() {
	if o.Marked() {
		return
	}
	o.SetMarked(true)
	o.Class.Mark()
	for _, v := range o.Fields {
		MarkValue(v)
	}
	if o.Finalizer != nil {
		MarkValue(*o.Finalizer)
	}
}

// RefVector is a function's captured-variable vector: one shared slot
// per free variable, indexed by capture index (design note: "Represent
// at runtime as a small array of shared environment slots").
type RefVector struct {
	gc.Header
	Slots []Value
}

func NewRefVector(h *gc.Heap, n int) *RefVector {
	rv := &RefVector{Slots: make([]Value, n)}
	h.Track(gc.KindRefVector, rv)
	return rv
}

func (rv *RefVector) Mark() {
	if rv.Marked() {
		return
	}
	rv.SetMarked(true)
	for _, v := range rv.Slots {
		MarkValue(v)
	}
}

// Env is a module initializer's top-level scope environment, marked
// directly as a GC root rather than reached only through a Function's
// Env.
type Env struct {
	gc.Header
	Slots []Value
}

func (e *Env) Mark() {
	if e.Marked() {
		return
	}
	e.SetMarked(true)
	for _, v := range e.Slots {
		MarkValue(v)
	}
}

type Thread struct {
	gc.Header
	ID    int
	Alive bool
}

func (t *Thread) Mark() { t.SetMarked(true) }

// MarkValue marks whatever GC object v's Data points to, if any; scalar
// kinds (Nil, Boolean, Integer, Real, Tag, Sentinel) are no-ops.
func MarkValue(v Value) {
	switch m := v.Data.(type) {
	case interface{ Mark() }:
		m.Mark()
	}
}

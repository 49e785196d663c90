package vm

import (
	"fmt"

	"ty/internal/compiler"
	tyerrors "ty/internal/errors"
	"ty/internal/value"
)

// genMsg is one message a generator's goroutine sends back to its
// consumer: either a yielded value, or the generator's final return
// value with done set, or a propagated error.
type genMsg struct {
	val  value.Value
	done bool
	err  error
}

// generator drives a generator function's body on its own goroutine,
// communicating over a pair of unbuffered channels: OpYield in the
// body's frame sends on out and blocks on in until the consumer calls
// .next() again. hasNext()/.next() (dispatched as builtin methods, see
// methods.go) pull one message ahead of what next() returns so
// hasNext can answer without consuming.
type generator struct {
	out chan genMsg
	in  chan struct{}

	started  bool
	peeked   bool
	finished bool
	cur      value.Value
	err      error
}

func newGenerator(v *VM, fnVal value.Value, args []value.Value, kwargs *value.Dict, self *value.Value) *generator {
	g := &generator{out: make(chan genMsg), in: make(chan struct{})}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var err error
				if te, ok := r.(*tyerrors.TyError); ok {
					err = te
				} else {
					err = fmt.Errorf("%v", r)
				}
				g.out <- genMsg{done: true, err: err}
			}
		}()
		fn := fnVal.Data.(*value.Function)
		tmpl := fn.Code.(*compiler.FuncTemplate)
		locals := make([]value.Value, tmpl.NumSlots)
		paramBase := 0
		if tmpl.SelfSlot != -1 {
			if self != nil {
				locals[tmpl.SelfSlot] = *self
			} else {
				locals[tmpl.SelfSlot] = fnVal
			}
			paramBase = tmpl.SelfSlot + 1
		}
		bindParams(v.Heap, tmpl, locals, paramBase, args, kwargs)
		nf := &Frame{chunk: tmpl.Chunk, locals: locals, env: fn.Env, name: tmpl.Name, vm: v, genOut: g.out, genIn: g.in}
		res, err := v.runFrame(nf)
		if err != nil {
			g.out <- genMsg{done: true, err: err}
			return
		}
		g.out <- genMsg{val: res, done: true}
	}()
	return g
}

func (g *generator) pull() {
	if !g.started {
		g.started = true
	} else {
		g.in <- struct{}{}
	}
	msg := <-g.out
	g.cur, g.finished, g.err = msg.val, msg.done, msg.err
}

func (g *generator) hasNext() bool {
	if !g.peeked {
		g.pull()
		g.peeked = true
	}
	return !g.finished
}

func (g *generator) next() (value.Value, error) {
	if !g.peeked {
		g.pull()
	}
	g.peeked = false
	return g.cur, g.err
}

// yield implements OpYield: it only runs inside a generator's own frame
// (genOut/genIn set by newGenerator), not inside calls the body itself
// makes -- generator delegation across a nested call isn't supported.
func (v *VM) yield(f *Frame, val value.Value) value.Value {
	if f.genOut == nil {
		panic(v.runtimeErr(f, "yield used outside a generator"))
	}
	f.genOut <- genMsg{val: val}
	<-f.genIn
	return value.Nil()
}

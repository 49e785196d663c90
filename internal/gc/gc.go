// Package gc implements the mark-and-sweep heap the VM allocates
// runtime values from: one singly-linked allocation chain per object
// kind, a cooperative disable counter gating when a collection may run,
// and a finalizer queue for objects that carried a callable finalizer
// when they were freed. Nothing upstream leans on this shape -- a host
// language's own GC usually suffices -- so this package is new code;
// see DESIGN.md for its grounding.
package gc

import "github.com/dustin/go-humanize"

type Kind int

const (
	KindString Kind = iota
	KindArray
	KindDict
	KindBlob
	KindTuple
	KindObject
	KindRefVector
	KindEnv
	KindRegex
	numKinds
)

// Object is implemented by every GC-owned value type. Mark is supplied
// by the value package (it knows how to walk a specific kind's
// children); header is unexported and satisfied automatically by
// embedding Header, giving the gc package exclusive access to the
// chain-linkage fields regardless of which package the concrete type
// lives in.
type Object interface {
	Mark()
	header() *Header
}

// Finalizable is implemented by object kinds that may carry a callable
// finalizer; the finalizer itself is typed any
// here since gc cannot import value without a cycle.
type Finalizable interface {
	TakeFinalizer() any
}

// Header is embedded as the first field of every GC-owned struct.
type Header struct {
	marked bool
	next   Object
	kind   Kind
}

func (h *Header) header() *Header  { return h }
func (h *Header) Marked() bool     { return h.marked }
func (h *Header) SetMarked(v bool) { h.marked = v }

// Heap owns the per-kind allocation chains and the process-wide
// collection-disable counter.
type Heap struct {
	chains         [numKinds]Object
	counts         [numKinds]int
	disableCount   int
	FinalizerQueue []any
}

func NewHeap() *Heap { return &Heap{} }

// Track links obj onto the head of kind's chain. Every value
// constructor (value.NewString, value.NewArray, ...) calls this exactly
// once per allocation.
func (h *Heap) Track(kind Kind, obj Object) {
	hdr := obj.header()
	hdr.kind = kind
	hdr.next = h.chains[kind]
	h.chains[kind] = obj
	h.counts[kind]++
}

// Disable increments the collection-disable counter; paired with Enable
// around a critical region that holds raw references to GC memory
// across an allocation.
func (h *Heap) Disable() { h.disableCount++ }

func (h *Heap) Enable() {
	if h.disableCount > 0 {
		h.disableCount--
	}
}

func (h *Heap) Enabled() bool { return h.disableCount == 0 }

// Count returns the live object count for kind.
func (h *Heap) Count(kind Kind) int { return h.counts[kind] }

func (h *Heap) Total() int {
	n := 0
	for _, c := range h.counts {
		n += c
	}
	return n
}

// Stats summarizes one completed collection cycle.
type Stats struct {
	Freed     int
	Remaining int
}

func (s Stats) String() string {
	return "gc: freed " + humanize.Comma(int64(s.Freed)) + " objects, " +
		humanize.Comma(int64(s.Remaining)) + " remain"
}

// Collect runs mark-then-sweep. markRoots is supplied by the caller
// (the VM) and must call Mark() on every root value reachable from the
// evaluation stack, call frames, module scopes, and live thread stacks;
// Collect itself only sweeps. No-op if the heap is currently disabled.
func (h *Heap) Collect(markRoots func()) Stats {
	if !h.Enabled() {
		return Stats{}
	}
	markRoots()
	return h.sweep()
}

func (h *Heap) sweep() Stats {
	freed := 0
	for k := Kind(0); k < numKinds; k++ {
		var survivors Object
		var tail Object
		for cur := h.chains[k]; cur != nil; {
			hdr := cur.header()
			next := hdr.next
			if hdr.marked {
				hdr.marked = false
				hdr.next = nil
				if survivors == nil {
					survivors = cur
				} else {
					tail.header().next = cur
				}
				tail = cur
			} else {
				if f, ok := cur.(Finalizable); ok {
					if fin := f.TakeFinalizer(); fin != nil {
						h.FinalizerQueue = append(h.FinalizerQueue, fin)
					}
				}
				h.counts[k]--
				freed++
			}
			cur = next
		}
		h.chains[k] = survivors
	}
	return Stats{Freed: freed, Remaining: h.Total()}
}

// DrainFinalizers returns and clears the queue of finalizer callables
// accumulated by the most recent sweep, for the VM to invoke.
func (h *Heap) DrainFinalizers() []any {
	q := h.FinalizerQueue
	h.FinalizerQueue = nil
	return q
}

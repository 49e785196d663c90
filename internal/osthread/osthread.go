// Package osthread implements the narrow OS-thread interface the VM
// calls through for `thread.*` builtins: spawn, join, mutex, condvar,
// kill. It is intentionally thin: a goroutine per Ty thread, a shared
// VM lock the caller acquires and releases around bytecode execution,
// and bulk join routed through errgroup the way a worker pool waits on
// a batch of goroutines rather than hand-rolling a WaitGroup plus error
// channel.
package osthread

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// VMLock is the single global mutex every running Ty thread holds while
// executing bytecode and releases across blocking operations.
type VMLock struct {
	mu sync.Mutex
}

func NewVMLock() *VMLock { return &VMLock{} }

func (l *VMLock) Take()    { l.mu.Lock() }
func (l *VMLock) Release() { l.mu.Unlock() }

// Thread is one spawned `thread.create` handle.
type Thread struct {
	ID       int
	cancel   context.CancelFunc
	ctx      context.Context
	done     chan struct{}
	err      error
	killed   bool
	killOnce sync.Once
}

// Group spawns and joins a batch of Ty threads. Join delegates to
// errgroup.Group.Wait rather than a hand-rolled WaitGroup, matching the
// "wait for N workers, surface the first error" idiom thread.join
// semantics need.
type Group struct {
	eg      *errgroup.Group
	ctx     context.Context
	mu      sync.Mutex
	nextID  int
	threads map[int]*Thread
}

func NewGroup(parent context.Context) *Group {
	eg, ctx := errgroup.WithContext(parent)
	return &Group{eg: eg, ctx: ctx, threads: map[int]*Thread{}}
}

// Spawn runs fn on a new goroutine, passing it a context cancelled when
// the thread is killed or the group is torn down. fn should check
// ctx.Err() at VM safe points (instruction boundaries) and, if
// cancelled, throw a cancellation exception rather than returning
// silently.
func (g *Group) Spawn(fn func(ctx context.Context) error) *Thread {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	tctx, cancel := context.WithCancel(g.ctx)
	t := &Thread{ID: id, ctx: tctx, cancel: cancel, done: make(chan struct{})}
	g.threads[id] = t
	g.mu.Unlock()

	g.eg.Go(func() error {
		defer close(t.done)
		err := fn(tctx)
		t.err = err
		return err
	})
	return t
}

// Join blocks until t has finished.
func (t *Thread) Join() error {
	<-t.done
	return t.err
}

// Kill cancels t's context; the thread observes this at its next safe
// point.
func (t *Thread) Kill() {
	t.killOnce.Do(func() {
		t.killed = true
		t.cancel()
	})
}

func (t *Thread) Killed() bool { return t.killed }

// JoinAll waits for every thread spawned on the group, returning the
// first error any of them returned (errgroup.Group.Wait's contract).
func (g *Group) JoinAll() error { return g.eg.Wait() }

// Mutex and Cond wrap sync primitives under the names the VM's
// thread.mutex/thread.condvar builtins bind to Ty values; kept as thin
// named wrappers (rather than raw sync.Mutex/sync.Cond) so a Value can
// hold one behind value.KPointer without the VM reaching into sync
// internals directly.
type Mutex struct{ mu sync.Mutex }

func NewMutex() *Mutex  { return &Mutex{} }
func (m *Mutex) Lock()   { m.mu.Lock() }
func (m *Mutex) Unlock() { m.mu.Unlock() }

type Cond struct {
	cond *sync.Cond
}

func NewCond(m *Mutex) *Cond { return &Cond{cond: sync.NewCond(&m.mu)} }
func (c *Cond) Wait()        { c.cond.Wait() }
func (c *Cond) Signal()      { c.cond.Signal() }
func (c *Cond) Broadcast()   { c.cond.Broadcast() }

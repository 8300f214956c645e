// Package editor owns the live document. Every read and mutation of the
// editing surface goes through a Facade; callers depend on the Editor
// interface only.
package editor

import (
	"fmt"
	"sync"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/logger"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/retry"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/schedule"
)

// Editor is the capability set callers may use. Mutations may be deferred
// until the editor is ready, so they report completion through done, which
// may be nil.
type Editor interface {
	IsReady() bool
	Content() string
	SetContent(markup string, done func(error))
	InsertAt(offset int, markup string, done func(error))
	Cursor() int
	SetCursor(offset int, done func(error))
}

// Handlers are the signals a surface raises.
type Handlers struct {
	OnMounted         func()
	OnSelectionChange func(from, to int)
	OnChange          func()
}

// Surface is the concrete editing engine behind the facade.
type Surface interface {
	Bind(h Handlers)
	Content() string
	Len() int
	Replace(content string) error
	Insert(offset int, markup string) error
	Cursor() int
	SetCursor(offset int)
}

// Change is published after every mutation.
type Change struct {
	Content      string
	Length       int
	Programmatic bool
}

type Options struct {
	Clock  schedule.Scheduler
	Retry  retry.Policy
	Logger *logger.Logger
}

type Facade struct {
	mu      sync.Mutex
	surface Surface
	state   State
	length  int

	clock schedule.Scheduler
	retry *retry.Scheduler
	log   *logger.Logger

	// pending holds deferred mutations in issue order.
	queueMu  sync.Mutex
	pending  []*pendingOp
	draining bool

	listenMu      sync.Mutex
	onChange      []func(Change)
	onSelection   []func(from, to int)
	onStateChange []func(State)
}

var _ Editor = (*Facade)(nil)

func New(opts Options) *Facade {
	clock := opts.Clock
	if clock == nil {
		clock = schedule.Real()
	}
	return &Facade{
		state: Uninitialized,
		clock: clock,
		retry: retry.New(clock, opts.Retry),
		log:   logger.OrNop(opts.Logger),
	}
}

// Mount attaches a surface and moves the facade to Initializing. The facade
// becomes Ready when the surface raises OnMounted.
func (f *Facade) Mount(s Surface) error {
	if s == nil {
		return fmt.Errorf("mount: nil surface")
	}
	f.mu.Lock()
	if !canTransition(f.state, Initializing) {
		state := f.state
		f.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, state, Initializing)
	}
	f.surface = s
	f.state = Initializing
	f.length = s.Len()
	f.mu.Unlock()

	s.Bind(Handlers{
		OnMounted:         f.markReady,
		OnSelectionChange: f.handleSelection,
		OnChange:          f.handleUserChange,
	})
	f.emitState(Initializing)
	return nil
}

func (f *Facade) markReady() {
	f.mu.Lock()
	if !canTransition(f.state, Ready) {
		f.mu.Unlock()
		return
	}
	f.state = Ready
	f.length = f.surface.Len()
	f.mu.Unlock()
	f.log.Debug("editor ready")
	f.emitState(Ready)
	f.drain()
}

// Destroy tears the facade down. It is idempotent.
func (f *Facade) Destroy() {
	f.mu.Lock()
	if !canTransition(f.state, Destroyed) {
		f.mu.Unlock()
		return
	}
	f.state = Destroyed
	f.mu.Unlock()
	f.log.Debug("editor destroyed")
	f.emitState(Destroyed)
}

func (f *Facade) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Facade) IsReady() bool {
	return f.State() == Ready
}

func (f *Facade) Content() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.surface == nil {
		return ""
	}
	return f.surface.Content()
}

// Length is the last published document length.
func (f *Facade) Length() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.length
}

func (f *Facade) Cursor() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.surface == nil {
		return 0
	}
	return f.surface.Cursor()
}

func (f *Facade) SetCursor(offset int, done func(error)) {
	f.whenReady("set_cursor", func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.state != Ready {
			return ErrNotReady
		}
		f.surface.SetCursor(Clamp(offset, f.surface.Len()))
		return nil
	}, done)
}

// SetContent replaces the whole document. The markup is written as given.
func (f *Facade) SetContent(markup string, done func(error)) {
	f.whenReady("set_content", func() error {
		f.mu.Lock()
		if f.state != Ready {
			f.mu.Unlock()
			return ErrNotReady
		}
		prevCursor := f.surface.Cursor()
		if err := f.surface.Replace(markup); err != nil {
			f.mu.Unlock()
			return fmt.Errorf("set content: %w", err)
		}
		change := f.captureLocked(true)
		f.mu.Unlock()

		f.restoreCursor(prevCursor)
		f.emitChange(change)
		return nil
	}, done)
}

// InsertAt normalizes markup, clamps offset to the current bounds and
// inserts. A surface rejection is reported as *InsertionError and is not
// retried here.
func (f *Facade) InsertAt(offset int, markup string, done func(error)) {
	f.whenReady("insert", func() error {
		block := Normalize(markup)
		f.mu.Lock()
		if f.state != Ready {
			f.mu.Unlock()
			return ErrNotReady
		}
		if block == "" {
			f.mu.Unlock()
			return nil
		}
		prevCursor := f.surface.Cursor()
		at := Clamp(offset, f.surface.Len())
		if err := f.surface.Insert(at, block); err != nil {
			f.mu.Unlock()
			f.log.Warn("surface rejected insert", "offset", at, "error", err)
			return &InsertionError{Offset: at, Err: err}
		}
		change := f.captureLocked(true)
		f.mu.Unlock()

		f.restoreCursor(prevCursor)
		f.emitChange(change)
		return nil
	}, done)
}

// OnChange registers fn for every published Change.
func (f *Facade) OnChange(fn func(Change)) {
	f.listenMu.Lock()
	defer f.listenMu.Unlock()
	f.onChange = append(f.onChange, fn)
}

// OnSelectionChange registers fn for raw selection signals from the surface.
func (f *Facade) OnSelectionChange(fn func(from, to int)) {
	f.listenMu.Lock()
	defer f.listenMu.Unlock()
	f.onSelection = append(f.onSelection, fn)
}

func (f *Facade) OnStateChange(fn func(State)) {
	f.listenMu.Lock()
	defer f.listenMu.Unlock()
	f.onStateChange = append(f.onStateChange, fn)
}

type pendingOp struct {
	name    string
	run     func() error
	done    func(error)
	settled bool
}

func (p *pendingOp) finish(err error) {
	if p.done != nil {
		p.done(err)
	}
}

// whenReady queues run behind every mutation issued before it. The queue is
// drained when the facade becomes ready and on each readiness re-check; an
// operation still queued after its last re-check fails with
// retry.ErrReadinessTimeout.
func (f *Facade) whenReady(name string, run func() error, done func(error)) {
	op := &pendingOp{name: name, run: run, done: done}
	f.queueMu.Lock()
	f.pending = append(f.pending, op)
	f.queueMu.Unlock()

	f.retry.EnsureReady(f.IsReady, f.drain, func(err error) {
		if !f.abandon(op) {
			return
		}
		f.log.Warn("editor operation abandoned", "op", name, "error", err)
		op.finish(err)
	})
}

// drain runs queued operations in order while the facade is ready. Only one
// caller drains at a time; operations queued by a running operation's
// callback are picked up by the same loop.
func (f *Facade) drain() {
	f.queueMu.Lock()
	if f.draining {
		f.queueMu.Unlock()
		return
	}
	f.draining = true
	for len(f.pending) > 0 && f.IsReady() {
		op := f.pending[0]
		f.pending[0] = nil
		f.pending = f.pending[1:]
		op.settled = true
		f.queueMu.Unlock()
		op.finish(op.run())
		f.queueMu.Lock()
	}
	f.draining = false
	f.queueMu.Unlock()
}

// abandon removes op from the queue. It reports false when op already ran.
func (f *Facade) abandon(op *pendingOp) bool {
	f.queueMu.Lock()
	defer f.queueMu.Unlock()
	if op.settled {
		return false
	}
	op.settled = true
	for i, p := range f.pending {
		if p == op {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			break
		}
	}
	return true
}

// captureLocked refreshes the cached length and snapshots the document.
func (f *Facade) captureLocked(programmatic bool) Change {
	f.length = f.surface.Len()
	return Change{Content: f.surface.Content(), Length: f.length, Programmatic: programmatic}
}

// restoreCursor puts the cursor back on the next tick, once the surface has
// settled, clamped to the new length.
func (f *Facade) restoreCursor(prev int) {
	f.clock.AfterFunc(0, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.state != Ready {
			return
		}
		f.surface.SetCursor(Clamp(prev, f.surface.Len()))
	})
}

func (f *Facade) handleSelection(from, to int) {
	f.listenMu.Lock()
	listeners := append([]func(int, int){}, f.onSelection...)
	f.listenMu.Unlock()
	for _, fn := range listeners {
		fn(from, to)
	}
}

func (f *Facade) handleUserChange() {
	f.mu.Lock()
	if f.surface == nil {
		f.mu.Unlock()
		return
	}
	change := f.captureLocked(false)
	f.mu.Unlock()
	f.emitChange(change)
}

func (f *Facade) emitChange(change Change) {
	f.listenMu.Lock()
	listeners := append([]func(Change){}, f.onChange...)
	f.listenMu.Unlock()
	for _, fn := range listeners {
		fn(change)
	}
}

func (f *Facade) emitState(state State) {
	f.listenMu.Lock()
	listeners := append([]func(State){}, f.onStateChange...)
	f.listenMu.Unlock()
	for _, fn := range listeners {
		fn(state)
	}
}

// Package js hosts user scripts in a goja runtime owned by a single
// goroutine. Every access to the runtime, from loading a script to polling
// an in-flight iteration, is a request served by that goroutine, so at most
// one piece of script code runs at any instant.
package js

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/surge/internal/http"
)

// ErrClosed is returned by requests made after Close.
var ErrClosed = errors.New("js: runtime closed")

// ErrPollOverrun interrupts script code that kept a single poll busy for
// longer than Options.MaxPollTime.
var ErrPollOverrun = errors.New("js: continuation exceeded the poll time limit")

//go:embed bootstrap.js
var bootstrapSource string

var (
	bootstrapProgram = goja.MustCompile("bootstrap.js", bootstrapSource, false)
	flushProgram     = goja.MustCompile("flush.js", "void 0", false)
)

// PollResult is the outcome of advancing the event loop once for one
// in-flight invocation.
type PollResult int32

const (
	// PollPending means the invocation still awaits asynchronous work.
	PollPending PollResult = iota
	// PollDone means the invocation settled successfully.
	PollDone
	// PollErrored means the invocation threw or its promise rejected.
	PollErrored
)

// String returns the string representation of the poll result.
func (p PollResult) String() string {
	switch p {
	case PollPending:
		return "pending"
	case PollDone:
		return "done"
	case PollErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Options configures a Runtime.
type Options struct {
	// Name identifies the runtime in logs.
	Name string

	// HTTPClient backs fetch. When nil, fetch throws.
	HTTPClient *http.Client

	// Logger receives console output and runtime diagnostics.
	Logger logrus.FieldLogger

	// Env is exposed to scripts as __ENV.
	Env map[string]string

	// MaxPollTime bounds how long one poll may run script continuations
	// before they are interrupted. Zero means unbounded.
	MaxPollTime time.Duration
}

// Program is a compiled script that can be started any number of times on
// any Runtime.
type Program struct {
	name string
	prog *goja.Program
}

// Name returns the name the program was compiled with.
func (p *Program) Name() string {
	return p.name
}

// Compile parses src once.
func Compile(name, src string) (*Program, error) {
	prog, err := goja.Compile(name, src, false)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return &Program{name: name, prog: prog}, nil
}

// Handle tracks one started invocation. It is only inspected by the runtime
// owner.
type Handle struct {
	promise *goja.Promise
}

func (h *Handle) state() (PollResult, error) {
	if h.promise == nil {
		return PollDone, nil
	}
	switch h.promise.State() {
	case goja.PromiseStateFulfilled:
		return PollDone, nil
	case goja.PromiseStateRejected:
		return PollErrored, rejectionError(h.promise.Result())
	default:
		return PollPending, nil
	}
}

type request struct {
	ctx context.Context
	fn  func() error
	// interruptible requests run only the caller's own script code, so the
	// caller's context may interrupt them.
	interruptible bool
	done          chan error
}

// Runtime is a goja runtime plus its event loop, served by one goroutine.
type Runtime struct {
	name        string
	logger      logrus.FieldLogger
	client      *http.Client
	maxPollTime time.Duration

	// ctx bounds host operations; cancelled on Close.
	ctx    context.Context
	cancel context.CancelFunc

	requests  chan request
	closing   chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// Owned by the serving goroutine once New returns.
	vm   *goja.Runtime
	loop *eventLoop
}

// New creates a runtime with the baseline environment installed and starts
// its owner goroutine.
func New(opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	name := opts.Name
	if name == "" {
		name = "runtime"
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		name:        name,
		logger:      logger.WithField("runtime", name),
		client:      opts.HTTPClient,
		maxPollTime: opts.MaxPollTime,
		ctx:         ctx,
		cancel:   cancel,
		requests:    make(chan request),
		closing:     make(chan struct{}),
		stopped:     make(chan struct{}),
		vm:          goja.New(),
		loop:        &eventLoop{},
	}

	if err := r.install(opts.Env); err != nil {
		cancel()
		return nil, fmt.Errorf("install baseline: %w", err)
	}

	go r.serve()
	return r, nil
}

func (r *Runtime) install(env map[string]string) error {
	envObj := r.vm.NewObject()
	for k, v := range env {
		if err := envObj.Set(k, v); err != nil {
			return err
		}
	}

	globals := map[string]interface{}{
		"__ENV":     envObj,
		"__console": r.console,
		"delay":     r.delay,
		"fetch":     r.fetch,
	}
	for name, v := range globals {
		if err := r.vm.Set(name, v); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}

	_, err := r.vm.RunProgram(bootstrapProgram)
	return err
}

func (r *Runtime) serve() {
	defer close(r.stopped)
	for {
		select {
		case req := <-r.requests:
			req.done <- r.handle(req)
		case <-r.closing:
			r.vm = nil
			return
		}
	}
}

// handle runs one request. A request whose context is already done is
// skipped. For interruptible requests, expiry of the context also interrupts
// script code still executing on the caller's behalf. Other requests are
// only interrupted by the MaxPollTime watchdog.
func (r *Runtime) handle(req request) (err error) {
	if err := req.ctx.Err(); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("js: panic in %s: %v", r.name, p)
		}
	}()

	ictx := req.ctx
	if !req.interruptible {
		if r.maxPollTime <= 0 {
			return req.fn()
		}
		var cancel context.CancelFunc
		ictx, cancel = context.WithTimeoutCause(context.Background(), r.maxPollTime, ErrPollOverrun)
		defer cancel()
	}

	vm := r.vm
	fired := make(chan struct{})
	stop := context.AfterFunc(ictx, func() {
		vm.Interrupt(context.Cause(ictx))
		close(fired)
	})
	defer func() {
		if !stop() {
			<-fired
			vm.ClearInterrupt()
		}
	}()

	return req.fn()
}

// do sends fn to the owner as an interruptible request and waits for it to
// finish.
func (r *Runtime) do(ctx context.Context, fn func() error) error {
	return r.send(request{ctx: ctx, fn: fn, interruptible: true, done: make(chan error, 1)})
}

// doShared is do for requests that may run other callers' script code.
// ctx only decides whether the request is dispatched; once running it is
// not interrupted.
func (r *Runtime) doShared(ctx context.Context, fn func() error) error {
	return r.send(request{ctx: ctx, fn: fn, done: make(chan error, 1)})
}

func (r *Runtime) send(req request) error {
	ctx := req.ctx
	select {
	case r.requests <- req:
	case <-r.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.done
}

// RunScript executes src as top-level code.
func (r *Runtime) RunScript(ctx context.Context, name, src string) error {
	prog, err := Compile(name, src)
	if err != nil {
		return err
	}
	return r.do(ctx, func() error {
		_, err := r.vm.RunProgram(prog.prog)
		return err
	})
}

// Eval evaluates expr and returns its exported Go value.
func (r *Runtime) Eval(ctx context.Context, expr string) (interface{}, error) {
	var out interface{}
	err := r.do(ctx, func() error {
		v, err := r.vm.RunString(expr)
		if err != nil {
			return err
		}
		out = v.Export()
		return nil
	})
	return out, err
}

// Start runs prog once. If the completion value is a promise the returned
// handle follows it; otherwise the handle is already done. A synchronous
// throw is returned as an error.
func (r *Runtime) Start(ctx context.Context, prog *Program) (*Handle, error) {
	var h *Handle
	err := r.do(ctx, func() error {
		v, err := r.vm.RunProgram(prog.prog)
		if err != nil {
			return err
		}
		h = &Handle{}
		if v != nil {
			if p, ok := v.Export().(*goja.Promise); ok {
				h.promise = p
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Poll runs every ready host-operation completion, drains the microtask
// queue and reports where h stands. It never blocks on pending work.
//
// The completions and continuations it runs belong to every in-flight
// invocation, not just h, so ctx is only checked before dispatch. An expired
// ctx abandons the wait without interrupting anyone's script code.
func (r *Runtime) Poll(ctx context.Context, h *Handle) (PollResult, error) {
	result := PollPending
	var scriptErr error
	err := r.doShared(ctx, func() error {
		r.runReady()
		result, scriptErr = h.state()
		return nil
	})
	if err != nil {
		return PollErrored, err
	}
	return result, scriptErr
}

func (r *Runtime) runReady() {
	for _, cb := range r.loop.take() {
		if err := cb(); err != nil {
			r.logger.WithError(err).Warn("Host operation completion failed")
		}
	}
	if _, err := r.vm.RunProgram(flushProgram); err != nil {
		if errors.Is(err, ErrPollOverrun) {
			r.logger.WithError(err).Warn("Interrupted a runaway continuation")
			return
		}
		r.logger.WithError(err).Warn("Microtask flush reported an error")
	}
}

// Compact performs a best-effort low-memory pass on the owner goroutine.
func (r *Runtime) Compact(ctx context.Context) error {
	return r.doShared(ctx, func() error {
		debug.FreeOSMemory()
		return nil
	})
}

// TryCompact compacts only if the owner is idle right now and reports
// whether it did.
func (r *Runtime) TryCompact() bool {
	req := request{
		ctx: context.Background(),
		fn: func() error {
			debug.FreeOSMemory()
			return nil
		},
		done: make(chan error, 1),
	}
	select {
	case r.requests <- req:
		<-req.done
		return true
	default:
		return false
	}
}

// PendingOps returns the number of host operations not yet consumed by a
// poll.
func (r *Runtime) PendingOps() int {
	return r.loop.pending()
}

// Name returns the runtime's log name.
func (r *Runtime) Name() string {
	return r.name
}

// Close cancels in-flight host operations and stops the owner goroutine.
// Outstanding asynchronous script work is dropped.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		close(r.closing)
	})
	<-r.stopped
	return nil
}

func rejectionError(v goja.Value) error {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return errors.New("promise rejected")
	}
	if obj, ok := v.(*goja.Object); ok {
		if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) {
			return errors.New(stack.String())
		}
	}
	return errors.New(v.String())
}

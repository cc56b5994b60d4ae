// Package host models the external capabilities the scheduler treats as
// abstract: wall-clock time, the caller/attached-deposit context of a
// request, and asynchronous outbound calls with a chained callback. In a
// smart-contract host these are provided by the runtime; cronfleet runs
// as its own process, so this package supplies concrete, in-process
// implementations that preserve the same two-transaction shape.
package host

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/cronfleet/pkg/amount"
	"github.com/cuemby/cronfleet/pkg/types"
)

// Clock supplies the monotone nanosecond timestamp the engine uses for
// slot alignment and missed-slot accounting.
type Clock interface {
	NowNanos() uint64
}

// SystemClock is the production Clock, backed by the OS wall clock.
type SystemClock struct{}

// NowNanos returns the current time as nanoseconds since the Unix epoch.
func (SystemClock) NowNanos() uint64 {
	return uint64(time.Now().UnixNano())
}

// RequestContext carries the per-request caller identity and attached
// deposit that a smart-contract host would supply via predecessor() and
// attached_deposit(). pkg/api populates one of these from each inbound
// request and passes it into pkg/engine.
type RequestContext struct {
	Caller          types.Principal
	AttachedDeposit amount.Amount
}

// Handle is an opaque identifier for an in-flight outbound call,
// returned by Create and referenced by Then.
type Handle string

func newHandle() Handle {
	return Handle(uuid.NewString())
}

// Invoker performs the actual delivery of an outbound call to target.
// The production Invoker is an HTTP POST to the target's registered
// webhook (see NewHTTPInvoker); tests supply a stub.
type Invoker func(ctx context.Context, target types.Principal, method string, payload []byte, attached amount.Amount, gas uint64) error

// Callback is a self-call scheduled via Then: the continuation the
// engine runs once an outbound call has settled, mirroring
// reschedule_callback's "second, separate transaction".
type Callback func(ctx context.Context) error

// OutboundCaller implements host.create / host.then over an Invoker and
// a bounded worker pool. Create delivers the call synchronously (there
// is no separate runtime to defer it to); Then always runs its callback,
// regardless of whether Create succeeded, matching the spec's
// "the callback is still invoked on failure" rule — only a process crash
// between Create and Then would lose it, which a single scheduler
// instance accepts as its consistency boundary.
type OutboundCaller struct {
	invoke Invoker
	sem    chan struct{}
}

// NewOutboundCaller builds an OutboundCaller that runs at most
// concurrency callbacks at once.
func NewOutboundCaller(invoke Invoker, concurrency int) *OutboundCaller {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &OutboundCaller{invoke: invoke, sem: make(chan struct{}, concurrency)}
}

// Create delivers the outbound call and returns its handle plus any
// delivery error. Callers that have already committed the task's
// balance debit (per the engine's credit-before-call ordering) should
// not undo that on a Create error; the call having failed does not
// entitle the task to a refund of the execution fee.
func (o *OutboundCaller) Create(ctx context.Context, target types.Principal, method string, payload []byte, attached amount.Amount, gas uint64) (Handle, error) {
	h := newHandle()
	err := o.invoke(ctx, target, method, payload, attached, gas)
	return h, err
}

// Then schedules cb to run asynchronously on the worker pool, modeling
// the host delivering the chained callback in a transaction separate
// from Create. Then does not block on cb's completion; the caller has
// already finished its own transaction by the time Then returns.
func (o *OutboundCaller) Then(ctx context.Context, _ Handle, cb Callback) {
	o.sem <- struct{}{}
	go func() {
		defer func() { <-o.sem }()
		_ = cb(context.WithoutCancel(ctx))
	}()
}

// Package mock provides an in-memory test double for [songbird.Operations].
//
// [Operations] records every method call for assertion in tests and returns
// a configurable status string. It is safe for concurrent use via an internal
// [sync.Mutex].
//
// Typical usage:
//
//	ops := &mock.Operations{}
//	ops.Status = map[string]string{"PlaySound": "SONGBIRD: Playing 'rain'"}
//
//	// inject ops into the front end under test …
//
//	if got := ops.CallCount("PlaySound"); got != 1 {
//	    t.Errorf("expected 1 PlaySound call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/DrTrintignant/Songbird/internal/songbird"
)

// Call records the name and request of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Req is the request struct passed to the method, or nil for
	// operations without arguments.
	Req any
}

// Operations is a configurable test double for [songbird.Operations].
type Operations struct {
	mu sync.Mutex

	// calls records every method invocation in order.
	calls []Call

	// Status maps a method name to the status string it returns. Methods
	// without an entry return "SONGBIRD: <Method>".
	Status map[string]string
}

// Calls returns a copy of all recorded method invocations.
func (o *Operations) Calls() []Call {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Call, len(o.calls))
	copy(out, o.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (o *Operations) CallCount(method string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, c := range o.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Last returns the most recent call, or the zero Call when none was made.
func (o *Operations) Last() Call {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.calls) == 0 {
		return Call{}
	}
	return o.calls[len(o.calls)-1]
}

// Reset clears all recorded calls without altering response configuration.
func (o *Operations) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = nil
}

func (o *Operations) record(method string, req any) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, Call{Method: method, Req: req})
	if s, ok := o.Status[method]; ok {
		return s
	}
	return songbird.Prefix + method
}

// PlaySound implements [songbird.Operations].
func (o *Operations) PlaySound(_ context.Context, req songbird.PlaySoundRequest) string {
	return o.record("PlaySound", req)
}

// Control implements [songbird.Operations].
func (o *Operations) Control(_ context.Context, req songbird.ControlRequest) string {
	return o.record("Control", req)
}

// BindSound implements [songbird.Operations].
func (o *Operations) BindSound(_ context.Context, req songbird.BindSoundRequest) string {
	return o.record("BindSound", req)
}

// BindMultiple implements [songbird.Operations].
func (o *Operations) BindMultiple(_ context.Context, req songbird.BindMultipleRequest) string {
	return o.record("BindMultiple", req)
}

// ReplayBound implements [songbird.Operations].
func (o *Operations) ReplayBound(_ context.Context, req songbird.ReplayBoundRequest) string {
	return o.record("ReplayBound", req)
}

// ListBound implements [songbird.Operations].
func (o *Operations) ListBound(_ context.Context) string {
	return o.record("ListBound", nil)
}

// UnbindSound implements [songbird.Operations].
func (o *Operations) UnbindSound(_ context.Context, req songbird.UnbindRequest) string {
	return o.record("UnbindSound", req)
}

// UnbindAll implements [songbird.Operations].
func (o *Operations) UnbindAll(_ context.Context) string {
	return o.record("UnbindAll", nil)
}

// ListCached implements [songbird.Operations].
func (o *Operations) ListCached(_ context.Context) string {
	return o.record("ListCached", nil)
}

// Test implements [songbird.Operations].
func (o *Operations) Test(_ context.Context) string {
	return o.record("Test", nil)
}

// Compile-time interface assertion.
var _ songbird.Operations = (*Operations)(nil)

// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hoopdesk/hoopdesk/core/gateway"
)

// Handler answers one procedure call. Its result is round-tripped through JSON like a real reply.
type Handler func(params map[string]interface{}) (interface{}, error)

// Invocation records one call made through the fake.
type Invocation struct {
	Mutation bool
	Proc     string
	Actor    string
	Params   map[string]interface{}
}

type Fake struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Invocation
}

var _ gateway.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{handlers: make(map[string]Handler)}
}

// Handle registers h for proc.
func (f *Fake) Handle(proc string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[proc] = h
	return f
}

// Return makes proc always answer result, err.
func (f *Fake) Return(proc string, result interface{}, err error) *Fake {
	return f.Handle(proc, func(map[string]interface{}) (interface{}, error) { return result, err })
}

func (f *Fake) Call(ctx context.Context, proc string, params []gateway.Param, dest interface{}) error {
	return f.invoke(ctx, true, proc, params, dest)
}

func (f *Fake) Query(ctx context.Context, proc string, params []gateway.Param, dest interface{}) error {
	return f.invoke(ctx, false, proc, params, dest)
}

// Calls returns the recorded invocations of proc, or all of them when proc is "".
func (f *Fake) Calls(proc string) []Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Invocation, 0, len(f.calls))
	for _, c := range f.calls {
		if proc == "" || c.Proc == proc {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) invoke(ctx context.Context, mutation bool, proc string, params []gateway.Param, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := make(map[string]interface{}, len(params))
	for _, p := range params {
		m[p.Name] = p.Value
	}

	f.mu.Lock()
	f.calls = append(f.calls, Invocation{Mutation: mutation, Proc: proc, Actor: gateway.ActorFrom(ctx), Params: m})
	h, ok := f.handlers[proc]
	f.mu.Unlock()

	if !ok {
		return &gateway.Error{Kind: gateway.KindNotFound, Proc: proc, Detail: "function " + proc + " does not exist"}
	}
	res, err := h(m)
	if err != nil {
		return err
	}
	if dest == nil || res == nil {
		return nil
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

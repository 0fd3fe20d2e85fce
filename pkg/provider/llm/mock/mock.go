// Package mock provides a test double for the llm package interfaces.
//
// Use Provider to script replies or failures and inspect the requests the
// session sent:
//
//	gen := &mock.Provider{CompleteResult: &llm.CompletionResponse{Content: "You are so close!"}}
//	// ... run the code under test ...
//	req := gen.CompleteCalls()[0].Req
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lexibot/pkg/provider/llm"
	"github.com/MrWong99/lexibot/pkg/types"
)

// CompleteCall records a single invocation of Provider.Complete.
type CompleteCall struct {
	// Req is the request passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// CompleteResult is the response returned by Complete. Nil yields an
	// empty response.
	CompleteResult *llm.CompletionResponse

	// CompleteErr, if non-nil, is returned by every Complete call.
	CompleteErr error

	// CompleteFunc, if non-nil, overrides the canned result entirely.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// CapabilitiesResult is returned by Capabilities.
	CapabilitiesResult types.ModelCapabilities

	calls []CompleteCall
}

// Complete records the call and returns the scripted response.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, CompleteCall{Req: req})
	fn := p.CompleteFunc
	result, err := p.CompleteResult, p.CompleteErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return &llm.CompletionResponse{}, nil
	}
	resp := *result
	return &resp, nil
}

// Capabilities returns CapabilitiesResult.
func (p *Provider) Capabilities() types.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CapabilitiesResult
}

// SetResult scripts the response for subsequent Complete calls. Thread-safe,
// for use while the code under test is running.
func (p *Provider) SetResult(resp *llm.CompletionResponse, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteResult = resp
	p.CompleteErr = err
}

// CompleteCalls returns a copy of every recorded Complete call in order.
func (p *Provider) CompleteCalls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompleteCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns the number of Complete calls so far. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)

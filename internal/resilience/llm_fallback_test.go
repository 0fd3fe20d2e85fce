package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/lexibot/pkg/provider/llm"
	llmmock "github.com/MrWong99/lexibot/pkg/provider/llm/mock"
	"github.com/MrWong99/lexibot/pkg/types"
)

func TestLLMFallback_PrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{
		CompleteResult: &llm.CompletionResponse{Content: "from primary"},
	}
	secondary := &llmmock.Provider{
		CompleteResult: &llm.CompletionResponse{Content: "from secondary"},
	}

	f := NewLLMFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{UserContent: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "from primary" {
		t.Errorf("content = %q, want %q", resp.Content, "from primary")
	}
	if secondary.CallCount() != 0 {
		t.Errorf("secondary was called %d times, want 0", secondary.CallCount())
	}
}

func TestLLMFallback_FailsOverToSecondary(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{CompleteErr: errors.New("rate limited")}
	secondary := &llmmock.Provider{
		CompleteResult: &llm.CompletionResponse{Content: "from secondary"},
	}

	f := NewLLMFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{UserContent: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "from secondary" {
		t.Errorf("content = %q, want %q", resp.Content, "from secondary")
	}
	if primary.CallCount() != 1 {
		t.Errorf("primary call count = %d, want 1", primary.CallCount())
	}
}

func TestLLMFallback_AllFail(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{CompleteErr: errors.New("down")}
	secondary := &llmmock.Provider{CompleteErr: errors.New("also down")}

	f := NewLLMFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	_, err := f.Complete(context.Background(), llm.CompletionRequest{UserContent: "hi"})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("want ErrAllFailed, got %v", err)
	}
}

func TestLLMFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{CompleteErr: errors.New("down")}
	secondary := &llmmock.Provider{
		CompleteResult: &llm.CompletionResponse{Content: "ok"},
	}

	f := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2},
	})
	f.AddFallback("secondary", secondary)

	// Trip the primary's breaker.
	for range 3 {
		if _, err := f.Complete(context.Background(), llm.CompletionRequest{UserContent: "hi"}); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}

	// 2 failures trip the breaker, so the third round never reaches the primary.
	if primary.CallCount() != 2 {
		t.Errorf("primary call count = %d, want 2", primary.CallCount())
	}
	if secondary.CallCount() != 3 {
		t.Errorf("secondary call count = %d, want 3", secondary.CallCount())
	}
}

func TestLLMFallback_Capabilities(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{
		CapabilitiesResult: types.ModelCapabilities{ContextWindow: 128_000},
	}
	f := NewLLMFallback(primary, "primary", FallbackConfig{})

	if got := f.Capabilities().ContextWindow; got != 128_000 {
		t.Errorf("context window = %d, want 128000", got)
	}
}

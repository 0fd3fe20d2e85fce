package gemini

import (
	"context"
	"testing"

	"google.golang.org/genai"

	"github.com/MrWong99/lexibot/pkg/provider/llm"
	"github.com/MrWong99/lexibot/pkg/types"
)

// TestNew_Validation checks constructor argument validation.
func TestNew_Validation(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, "", "gemini-2.5-flash"); err == nil {
		t.Error("expected error for empty api key, got nil")
	}
	if _, err := New(ctx, "key", ""); err == nil {
		t.Error("expected error for empty model, got nil")
	}
	if _, err := NewVertex(ctx, "", "europe-west1", "gemini-2.5-flash"); err == nil {
		t.Error("expected error for empty project, got nil")
	}
}

// TestBuildContents checks the role mapping and ordering.
func TestBuildContents(t *testing.T) {
	contents := buildContents(llm.CompletionRequest{
		History: []types.Message{
			{Role: "assistant", Content: "Hello!"},
			{Role: "user", Content: "hi"},
		},
		UserContent: "what about five across?",
	})

	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	if contents[0].Role != genai.RoleModel {
		t.Errorf("expected assistant history mapped to model role, got %s", contents[0].Role)
	}
	if contents[1].Role != genai.RoleUser {
		t.Errorf("expected user history mapped to user role, got %s", contents[1].Role)
	}
	if contents[2].Role != genai.RoleUser || contents[2].Parts[0].Text != "what about five across?" {
		t.Errorf("unexpected final content: %+v", contents[2])
	}
}

// TestBuildContents_Empty checks that no contents are produced for an empty
// request.
func TestBuildContents_Empty(t *testing.T) {
	if contents := buildContents(llm.CompletionRequest{}); len(contents) != 0 {
		t.Errorf("expected no contents, got %v", contents)
	}
}

// TestCapabilities checks the context-window table.
func TestCapabilities(t *testing.T) {
	p := &Provider{model: "gemini-2.5-flash"}
	if caps := p.Capabilities(); caps.ContextWindow != 1_048_576 {
		t.Errorf("flash: expected context window 1048576, got %d", caps.ContextWindow)
	}
	p = &Provider{model: "gemini-1.5-pro"}
	if caps := p.Capabilities(); caps.ContextWindow != 2_097_152 {
		t.Errorf("1.5-pro: expected context window 2097152, got %d", caps.ContextWindow)
	}
}

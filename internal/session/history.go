package session

import "github.com/MrWong99/lexibot/pkg/types"

// History is the append-only dialogue transcript for one session. It is
// touched only by the orchestrator goroutine, so it needs no locking. The
// core never truncates it; trimming to a context window is the generator's
// concern.
type History struct {
	msgs []types.Message
}

// Append adds one turn to the transcript.
func (h *History) Append(role, content string) {
	h.msgs = append(h.msgs, types.Message{Role: role, Content: content})
}

// Messages returns the transcript in order. The returned slice is shared;
// callers must not mutate it.
func (h *History) Messages() []types.Message {
	return h.msgs
}

// Len returns the number of turns recorded.
func (h *History) Len() int {
	return len(h.msgs)
}

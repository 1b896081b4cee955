package service

import (
	"context"
	"sync"

	"github.com/anthanhphan/go-model-share/internal/api/port"
)

// generation is one in-flight resolve for a viewer session.
type generation struct {
	id         uint64
	cancel     context.CancelCauseFunc
	superseded bool
}

// generationTracker lets a newer resolve for a session cancel the older one.
type generationTracker struct {
	mu       sync.Mutex
	next     uint64
	sessions map[string]*generation
}

func newGenerationTracker() *generationTracker {
	return &generationTracker{sessions: make(map[string]*generation)}
}

// begin registers a resolve for session, cancelling any previous one. An empty
// session is not tracked. release must be called when the resolve finishes.
func (t *generationTracker) begin(ctx context.Context, session string) (context.Context, *generation, func()) {
	if session == "" {
		return ctx, nil, func() {}
	}

	genCtx, cancel := context.WithCancelCause(ctx)

	t.mu.Lock()
	t.next++
	gen := &generation{id: t.next, cancel: cancel}
	if prev, ok := t.sessions[session]; ok {
		prev.superseded = true
		prev.cancel(port.ErrSuperseded)
	}
	t.sessions[session] = gen
	t.mu.Unlock()

	release := func() {
		t.mu.Lock()
		if cur, ok := t.sessions[session]; ok && cur == gen {
			delete(t.sessions, session)
		}
		t.mu.Unlock()
		cancel(nil)
	}
	return genCtx, gen, release
}

// isSuperseded reports whether a newer resolve replaced gen.
func (t *generationTracker) isSuperseded(gen *generation) bool {
	if gen == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen.superseded
}

func (t *generationTracker) inFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

package httpserver

import (
	"context"
	"sync"
	"time"

	"github.com/ProfDrJones/journals/internal/editor"
)

const (
	editorIdleTimeout = 12 * time.Hour
	editorSweepEvery  = 10 * time.Minute
)

// editorRegistry hands out one editor per user. Editors not used for the
// idle timeout are dropped together with any unsaved instance.
type editorRegistry struct {
	mu        sync.Mutex
	editors   map[int64]*registryEntry
	newEditor func(userID int64) *editor.Editor
	idle      time.Duration
	now       func() time.Time
}

type registryEntry struct {
	editor     *editor.Editor
	lastAccess time.Time
}

func newEditorRegistry(newEditor func(userID int64) *editor.Editor) *editorRegistry {
	return &editorRegistry{
		editors:   make(map[int64]*registryEntry),
		newEditor: newEditor,
		idle:      editorIdleTimeout,
		now:       time.Now,
	}
}

func (r *editorRegistry) get(userID int64) *editor.Editor {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if entry, ok := r.editors[userID]; ok {
		entry.lastAccess = now
		return entry.editor
	}
	entry := &registryEntry{editor: r.newEditor(userID), lastAccess: now}
	r.editors[userID] = entry
	return entry.editor
}

// Run drops idle editors until ctx is done.
func (r *editorRegistry) Run(ctx context.Context) {
	ticker := time.NewTicker(editorSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *editorRegistry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.idle)
	for userID, entry := range r.editors {
		if entry.lastAccess.Before(cutoff) {
			delete(r.editors, userID)
		}
	}
}

func (r *editorRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.editors)
}

package mind

import "sync"

// ContextStore owns the server-id → RichContext map. Safe for concurrent use.
type ContextStore struct {
	mu       sync.RWMutex
	contexts map[string]*RichContext
}

// NewContextStore creates an empty store.
func NewContextStore() *ContextStore {
	return &ContextStore{contexts: make(map[string]*RichContext)}
}

// Context returns the RichContext for serverID, creating it lazily.
func (s *ContextStore) Context(serverID string) *RichContext {
	s.mu.RLock()
	rc := s.contexts[serverID]
	s.mu.RUnlock()
	if rc != nil {
		return rc
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rc = s.contexts[serverID]; rc != nil {
		return rc
	}
	rc = newRichContext(serverID)
	s.contexts[serverID] = rc
	return rc
}

// Peek returns the context without creating one (nil when absent).
func (s *ContextStore) Peek(serverID string) *RichContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contexts[serverID]
}

// Remove evicts a context (memory maintenance of empty servers).
func (s *ContextStore) Remove(serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, serverID)
}

// ServerIDs returns all known server ids.
func (s *ContextStore) ServerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.contexts))
	for id := range s.contexts {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of tracked servers.
func (s *ContextStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contexts)
}

// sharedView is the read-only window handed to cross-server builders. It
// skips the excluded (requesting) server before touching its lock, so a
// builder already holding that lock cannot deadlock against itself.
type sharedView struct {
	store   *ContextStore
	exclude string
}

// ForEachShared yields only foreign contexts that opted into sharing.
func (v sharedView) ForEachShared(fn func(rc *RichContext)) {
	v.store.mu.RLock()
	candidates := make([]*RichContext, 0, len(v.store.contexts))
	for id, rc := range v.store.contexts {
		if id == v.exclude {
			continue
		}
		candidates = append(candidates, rc)
	}
	v.store.mu.RUnlock()
	for _, rc := range candidates {
		rc.mu.RLock()
		enabled := rc.crossServerEnabled
		rc.mu.RUnlock()
		if enabled {
			fn(rc)
		}
	}
}

// SharedView returns the CrossServerView for a requesting server.
func (s *ContextStore) SharedView(excludeServerID string) CrossServerView {
	return sharedView{store: s, exclude: excludeServerID}
}

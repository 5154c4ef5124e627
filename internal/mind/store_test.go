package mind

import (
	"sort"
	"testing"
)

func TestContextStoreLazyCreate(t *testing.T) {
	s := NewContextStore()
	if s.Peek("s") != nil {
		t.Fatal("peek created a context")
	}
	rc := s.Context("s")
	if rc == nil || rc.ServerID != "s" {
		t.Fatalf("context = %+v", rc)
	}
	if s.Context("s") != rc {
		t.Fatal("second lookup returned a different instance")
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d", s.Len())
	}
}

func TestContextStoreRemove(t *testing.T) {
	s := NewContextStore()
	s.Context("s")
	s.Remove("s")
	if s.Peek("s") != nil {
		t.Fatal("context survived removal")
	}
}

func TestContextStoreServerIDs(t *testing.T) {
	s := NewContextStore()
	s.Context("b")
	s.Context("a")
	ids := s.ServerIDs()
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestSharedViewSkipsExcludedAndUnshared(t *testing.T) {
	s := NewContextStore()
	self := s.Context("self")
	self.crossServerEnabled = true
	shared := s.Context("shared")
	shared.crossServerEnabled = true
	s.Context("private")

	var seen []string
	s.SharedView("self").ForEachShared(func(rc *RichContext) {
		seen = append(seen, rc.ServerID)
	})
	if len(seen) != 1 || seen[0] != "shared" {
		t.Fatalf("seen = %v", seen)
	}
}

func TestSharedViewSafeWhileExcludedIsLocked(t *testing.T) {
	s := NewContextStore()
	self := s.Context("self")
	other := s.Context("other")
	other.crossServerEnabled = true

	// The view must never touch the excluded context's lock: holding its
	// write lock here would deadlock otherwise.
	self.mu.Lock()
	defer self.mu.Unlock()

	count := 0
	s.SharedView("self").ForEachShared(func(rc *RichContext) { count++ })
	if count != 1 {
		t.Fatalf("count = %d", count)
	}
}

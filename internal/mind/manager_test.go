package mind

import (
	"strings"
	"testing"
	"time"
)

type countingPersonality struct {
	calls int
	desc  string
}

func (p *countingPersonality) Describe(userID string) string {
	p.calls++
	return p.desc
}

func newTestManager() *Manager {
	return NewManager(DefaultLimits(), DefaultPressureConfig(), nil)
}

func TestAddEmbarrassingMomentRejectsDuplicates(t *testing.T) {
	m := newTestManager()
	if !m.AddEmbarrassingMoment("s", "u", "pushed secrets to the public repo") {
		t.Fatal("first add rejected")
	}
	if m.AddEmbarrassingMoment("s", "u", "pushed secrets to the public repo") {
		t.Fatal("exact duplicate accepted")
	}
	// Same significant words, reshuffled.
	if m.AddEmbarrassingMoment("s", "u", "secrets pushed to the public repo") {
		t.Fatal("near-duplicate accepted")
	}

	rc := m.store.Peek("s")
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if len(rc.embarrassingMoments) != 1 {
		t.Fatalf("stored %d moments, want 1", len(rc.embarrassingMoments))
	}
}

func TestAddItemRejectsEmptyInput(t *testing.T) {
	m := newTestManager()
	if m.AddRunningGag("", "u", "content") || m.AddRunningGag("s", "u", "") {
		t.Fatal("empty server id or content accepted")
	}
	if m.store.Len() != 0 {
		t.Fatal("rejected add created a context")
	}
}

func TestAddItemTracksSize(t *testing.T) {
	m := newTestManager()
	m.AddCodeSnippet("s", "u", "```go\nfunc main() {}\n```")
	rc := m.store.Peek("s")
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if rc.approximateSize == 0 {
		t.Fatal("approximateSize not incremented on add")
	}
}

func TestBuildSuperContextCacheHit(t *testing.T) {
	p := &countingPersonality{desc: "chronic off-by-one enjoyer"}
	m := NewManager(DefaultLimits(), DefaultPressureConfig(), p)
	m.AddEmbarrassingMoment("s", "u", "deployed on friday at five pm")
	m.RecordMessage("s", ConversationMessage{UserID: "u", Username: "dave", Content: "it works on my machine"})

	first := m.BuildSuperContext("s", "u", 0)
	if first == "" {
		t.Fatal("empty context for populated server")
	}
	second := m.BuildSuperContext("s", "u", 0)
	if first != second {
		t.Fatal("cache hit returned different content")
	}
	if p.calls != 1 {
		t.Fatalf("personality consulted %d times, want 1 (second build must be a cache hit)", p.calls)
	}
}

func TestBuildSuperContextInvalidatedByNewData(t *testing.T) {
	m := newTestManager()
	m.AddRunningGag("s", "u", "the printer is haunted apparently")
	first := m.BuildSuperContext("s", "u", 0)

	m.AddRunningGag("s", "u", "nobody mention the staging environment")
	second := m.BuildSuperContext("s", "u", 0)
	if first == second {
		t.Fatal("new data did not change the composed context")
	}
}

func TestBuildSuperContextUnknownServer(t *testing.T) {
	m := newTestManager()
	if out := m.BuildSuperContext("nowhere", "u", 0); out != "" {
		t.Fatalf("unknown server produced %q", out)
	}
}

func TestBuildSuperContextRespectsMaxLength(t *testing.T) {
	m := newTestManager()
	for i := 0; i < 8; i++ {
		m.AddSummarizedFact("s", "u", strings.Repeat("x", 50)+string(rune('a'+i)))
	}
	out := m.BuildSuperContext("s", "u", 120)
	if len(out) > 130 { // allow the ellipsis marker
		t.Fatalf("context length %d exceeds requested bound", len(out))
	}
}

func TestCrossServerRequiresGlobalFlag(t *testing.T) {
	m := newTestManager()
	m.AddEmbarrassingMoment("home", "u", "home server moment here")
	m.AddEmbarrassingMoment("other", "u", "catastrophic rebase on the other server")
	m.EnableCrossServerContext("other", true)

	out := m.BuildSuperContext("home", "u", 0)
	if strings.Contains(out, "CROSS-SERVER INTEL") {
		t.Fatal("cross-server section present without the global flag")
	}
}

func TestCrossServerRequiresOptIn(t *testing.T) {
	m := newTestManager()
	m.EnableGlobalContext()
	m.AddEmbarrassingMoment("home", "u", "home server moment here")
	m.AddEmbarrassingMoment("private", "u", "secret blunder nobody should export")

	out := m.BuildSuperContext("home", "u", 0)
	if strings.Contains(out, "secret blunder") {
		t.Fatal("non-opted-in server leaked into the context")
	}
}

func TestCrossServerSharesOptedInData(t *testing.T) {
	m := newTestManager()
	m.EnableGlobalContext()
	m.AddEmbarrassingMoment("home", "u", "home server moment here")
	m.AddEmbarrassingMoment("other", "u", "catastrophic rebase on the other server")
	m.EnableCrossServerContext("other", true)

	out := m.BuildSuperContext("home", "u", 0)
	if !strings.Contains(out, "CROSS-SERVER INTEL") {
		t.Fatalf("missing cross-server section:\n%s", out)
	}
	if !strings.Contains(out, "catastrophic rebase") {
		t.Fatal("opted-in foreign moment missing")
	}
}

func TestCrossServerNeverEchoesOwnServer(t *testing.T) {
	m := newTestManager()
	m.EnableGlobalContext()
	m.AddEmbarrassingMoment("home", "u", "local blunder stays sectioned locally")
	m.EnableCrossServerContext("home", true) // even when the requester itself shares

	out := m.BuildSuperContext("home", "u", 0)
	if strings.Contains(out, "[home]") {
		t.Fatal("requesting server appeared in its own cross-server section")
	}
}

func TestBuildSmartContextFiltersByKeywords(t *testing.T) {
	m := newTestManager()
	m.AddSummarizedFact("s", "u", "u writes python like it owes them money")
	m.AddSummarizedFact("s", "u", "u collects mechanical keyboards obsessively")
	m.AddCodeSnippet("s", "u", "```python\nprint('hi')\n```")

	out := m.BuildSmartContext("s", "u", "can you help with this python bug")
	if !strings.Contains(out, "python like it owes") {
		t.Fatalf("keyword-matched fact missing:\n%s", out)
	}
	if strings.Contains(out, "mechanical keyboards") {
		t.Fatal("unrelated fact included")
	}
	if !strings.Contains(out, "RECENT CODE:") {
		t.Fatal("code history missing despite keywords")
	}
}

func TestStaleCleanupDropsOldItems(t *testing.T) {
	m := newTestManager()
	m.AddEmbarrassingMoment("s", "u", "ancient history from a month ago")
	m.AddEmbarrassingMoment("s", "u", "fresh material from this week")
	m.RecordMessage("s", ConversationMessage{UserID: "u", Content: "old message"})

	rc := m.store.Peek("s")
	rc.mu.Lock()
	for i := range rc.embarrassingMoments {
		if strings.Contains(rc.embarrassingMoments[i].Content, "ancient") {
			rc.embarrassingMoments[i].Timestamp = time.Now().Add(-31 * 24 * time.Hour)
		} else {
			rc.embarrassingMoments[i].Timestamp = time.Now().Add(-29 * 24 * time.Hour)
		}
	}
	rc.conversations["u"][0].At = time.Now().Add(-31 * 24 * time.Hour)
	rc.mu.Unlock()

	m.runStaleCleanup()

	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if len(rc.embarrassingMoments) != 1 {
		t.Fatalf("moments after cleanup = %d, want 1", len(rc.embarrassingMoments))
	}
	if !strings.Contains(rc.embarrassingMoments[0].Content, "fresh") {
		t.Fatal("wrong moment survived the cutoff")
	}
	if len(rc.conversations) != 0 {
		t.Fatal("stale conversation buffer survived")
	}
}

func TestMemoryMaintenanceEvictsEmptyContexts(t *testing.T) {
	m := newTestManager()
	m.store.Context("empty")
	m.AddRunningGag("busy", "u", "that one meeting that never ends")

	m.runMemoryMaintenance()

	if m.store.Peek("empty") != nil {
		t.Fatal("empty context not evicted")
	}
	if m.store.Peek("busy") == nil {
		t.Fatal("populated context evicted")
	}
}

func TestAggressiveCleanupOnCriticalPressure(t *testing.T) {
	m := newTestManager()
	gcCalls := 0
	m.heapUsage = func() (float64, float64) { return 1024, 2048 }
	m.gcHint = func() { gcCalls++ }
	m.AddRunningGag("s", "u", "some gag to keep the context alive")
	m.cache.Put("s", "u", "h", "cached")

	m.runPressureCheck()

	if gcCalls != 1 {
		t.Fatal("critical pressure did not hint the collector")
	}
	if m.cache.Len() != 0 {
		t.Fatal("critical pressure did not clear the build cache")
	}
}

func TestGetMemoryStats(t *testing.T) {
	m := newTestManager()
	m.AddEmbarrassingMoment("a", "u", "first moment on server a")
	m.AddRunningGag("b", "u", "gag on server b")

	stats := m.GetMemoryStats()
	if stats.Servers != 2 || stats.TotalItems != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.TotalSize == 0 {
		t.Fatal("total size not accounted")
	}
}

func TestGetStorageStats(t *testing.T) {
	m := newTestManager()
	m.AddEmbarrassingMoment("s", "u", "a moment for the analytics")
	m.UpdateSocialGraph("s", "u", "v", InteractionMention)

	stats := m.GetStorageStats()
	if stats.TotalSize == 0 || stats.PerServer["s"] == 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.SocialBytes == 0 {
		t.Fatal("social graph bytes not counted")
	}
	if stats.OldestEntry.IsZero() || stats.NewestEntry.IsZero() {
		t.Fatal("entry timestamps missing")
	}
}

func TestGetCrossServerInsights(t *testing.T) {
	m := newTestManager()
	for i := 0; i < 5; i++ {
		m.UpdateSocialGraph("a", "u", "v", InteractionMention)
	}
	m.UpdateSocialGraph("b", "u", "w", InteractionReply)
	for _, c := range []string{
		"tripped over the power cable once",
		"tripped over the demo twice",
		"spilled coffee on the keyboard",
	} {
		m.AddEmbarrassingMoment("a", "u", c)
	}

	in := m.GetCrossServerInsights("u")
	if in.MostActiveServer != "a" {
		t.Fatalf("most active = %q, want a", in.MostActiveServer)
	}
	if in.TotalInteractions != 6 {
		t.Fatalf("interactions = %d, want 6", in.TotalInteractions)
	}
	if len(in.Patterns) != 1 || !strings.Contains(in.Patterns[0], "a") {
		t.Fatalf("patterns = %v", in.Patterns)
	}
}

func TestForceSummarizationStampsTimestamp(t *testing.T) {
	m := newTestManager()
	m.AddEmbarrassingMoment("s", "u", "one moment is enough for the stamp")
	m.ForceSummarization("s")
	rc := m.store.Peek("s")
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if rc.lastSummarization.IsZero() {
		t.Fatal("forced summarization did not stamp lastSummarization")
	}
}

func TestDeduplicateOnDemand(t *testing.T) {
	m := newTestManager()
	m.AddRunningGag("s", "u", "the coffee machine broke again today")
	rc := m.store.Peek("s")
	rc.mu.Lock()
	// Plant a duplicate behind the manager's back.
	rc.runningGags = append(rc.runningGags, rc.runningGags[0])
	rc.mu.Unlock()

	if removed := m.Deduplicate("s"); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
}

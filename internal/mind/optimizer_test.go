package mind

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGenerateSemanticHashStableAcrossWordOrder(t *testing.T) {
	a := GenerateSemanticHash("deleted the prod database")
	b := GenerateSemanticHash("the prod database deleted")
	if a != b {
		t.Fatalf("hash should ignore word order: %q vs %q", a, b)
	}
	c := GenerateSemanticHash("deployed the prod database")
	if a == c {
		t.Fatalf("different content should hash differently: %q", a)
	}
}

func TestFindSimilarMessagesByOverlap(t *testing.T) {
	o := NewOptimizer(DefaultLimits())
	items := []ContextItem{{
		Content:      "accidentally dropped production database again",
		SemanticHash: GenerateSemanticHash("accidentally dropped production database again"),
	}}
	// Same significant words, different phrasing around them.
	matches := o.FindSimilarMessages(items, "dropped production database accidentally again", 0)
	if len(matches) == 0 {
		t.Fatal("expected overlap match")
	}
	matches = o.FindSimilarMessages(items, "shipped a beautiful release today", 0)
	if len(matches) != 0 {
		t.Fatalf("unrelated content matched: %v", matches)
	}
}

func TestDeduplicateKeepsLastInstance(t *testing.T) {
	o := NewOptimizer(DefaultLimits())
	rc := newRichContext("s")
	hash := GenerateSemanticHash("broke the build on friday afternoon")
	rc.embarrassingMoments = []ContextItem{
		{Content: "old copy", SemanticHash: hash},
		{Content: "unrelated thing entirely", SemanticHash: GenerateSemanticHash("unrelated thing entirely")},
		{Content: "new copy", SemanticHash: hash},
	}

	removed := o.DeduplicateServerContext(rc)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if len(rc.embarrassingMoments) != 2 {
		t.Fatalf("kept %d items, want 2", len(rc.embarrassingMoments))
	}
	for _, it := range rc.embarrassingMoments {
		if it.Content == "old copy" {
			t.Fatal("older duplicate survived, expected the most recent instance")
		}
	}

	// Second pass finds nothing.
	if removed := o.DeduplicateServerContext(rc); removed != 0 {
		t.Fatalf("second pass removed %d, want 0", removed)
	}
}

func TestDecrementSizeNeverNegative(t *testing.T) {
	o := NewOptimizer(DefaultLimits())
	rc := newRichContext("s")
	o.IncrementSize(rc, 100)
	o.DecrementSize(rc, 500)
	if rc.approximateSize != 0 {
		t.Fatalf("approximateSize = %d, want 0", rc.approximateSize)
	}
}

func TestSizeAccountingMatchesRecount(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o := NewOptimizer(DefaultLimits())
	o.now = fixedNow(now)
	mem := NewMemory(DefaultLimits())
	mem.now = fixedNow(now)
	rc := newRichContext("s")

	contents := []string{"first silly moment", "second silly moment with more words"}
	for _, c := range contents {
		it := mem.AddEmbarrassingMoment(rc, "u", c, GenerateSemanticHash(c))
		o.IncrementSize(rc, itemSize(it))
	}
	mem.AddConversationMessage(rc, ConversationMessage{UserID: "u", Content: "hello there"})
	o.IncrementSize(rc, len("hello there")+overheadPerConversation)

	tracked := rc.approximateSize
	rc.approximateSize = 0
	rc.lastSizeUpdate = time.Time{}
	o.RefreshApproximateSize(rc)
	if rc.approximateSize != tracked {
		t.Fatalf("recount = %d, incremental tracking = %d", rc.approximateSize, tracked)
	}
}

func TestIntelligentTrimEnforcesCaps(t *testing.T) {
	limits := Limits{EmbarrassingMoments: 5, CodeSnippetsPerUser: 4, RunningGags: 3, SummarizedFacts: 5}
	o := NewOptimizer(limits)
	rc := newRichContext("s")
	for i := 0; i < 30; i++ {
		c := fmt.Sprintf("moment number %d happened today", i)
		rc.embarrassingMoments = append(rc.embarrassingMoments,
			ContextItem{Content: c, SemanticHash: GenerateSemanticHash(c), Timestamp: time.Now()})
		rc.codeSnippets["u"] = append(rc.codeSnippets["u"],
			ContextItem{Content: c, Timestamp: time.Now()})
		rc.runningGags = append(rc.runningGags,
			ContextItem{Content: c, Timestamp: time.Now()})
	}
	rc.approximateSize = MaxContextSize + 1
	rc.lastSizeUpdate = time.Now()

	o.IntelligentTrim(rc)

	if n := len(rc.embarrassingMoments); n > limits.EmbarrassingMoments {
		t.Fatalf("moments = %d, cap %d", n, limits.EmbarrassingMoments)
	}
	if n := len(rc.codeSnippets["u"]); n > limits.CodeSnippetsPerUser {
		t.Fatalf("snippets = %d, cap %d", n, limits.CodeSnippetsPerUser)
	}
	if n := len(rc.runningGags); n > limits.RunningGags {
		t.Fatalf("gags = %d, cap %d", n, limits.RunningGags)
	}
}

func TestIntelligentTrimNoopUnderCeiling(t *testing.T) {
	limits := Limits{EmbarrassingMoments: 2, CodeSnippetsPerUser: 2, RunningGags: 2, SummarizedFacts: 2}
	o := NewOptimizer(limits)
	rc := newRichContext("s")
	for i := 0; i < 10; i++ {
		rc.embarrassingMoments = append(rc.embarrassingMoments, ContextItem{Content: "x"})
	}
	rc.approximateSize = 100
	rc.lastSizeUpdate = time.Now()
	o.IntelligentTrim(rc)
	if len(rc.embarrassingMoments) != 10 {
		t.Fatal("trim acted below the size ceiling")
	}
}

func TestTrimEvictsLowestLRUScoreFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o := NewOptimizer(DefaultLimits())
	o.now = fixedNow(now)
	items := []ContextItem{
		{Content: "stale", LastAccessed: now.Add(-48 * time.Hour)},
		{Content: "hot", AccessCount: 10, LastAccessed: now},
		{Content: "warm", AccessCount: 2, LastAccessed: now.Add(-1 * time.Hour)},
	}
	kept, freed := o.trimToCapLRU(items, 2)
	if len(kept) != 2 || freed == 0 {
		t.Fatalf("kept %d freed %d", len(kept), freed)
	}
	for _, it := range kept {
		if it.Content == "stale" {
			t.Fatal("lowest-scored item survived the trim")
		}
	}
	// Survivor order preserved.
	if kept[0].Content != "hot" || kept[1].Content != "warm" {
		t.Fatalf("survivor order changed: %v", kept)
	}
}

func TestShouldSummarizeRespectsInterval(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o := NewOptimizer(DefaultLimits())
	o.now = fixedNow(now)
	rc := newRichContext("s")
	rc.lastSummarization = now.Add(-5 * time.Minute)
	if o.ShouldSummarize(rc) {
		t.Fatal("summarize allowed 5 minutes after the last pass")
	}
	rc.lastSummarization = now.Add(-31 * time.Minute)
	if !o.ShouldSummarize(rc) {
		t.Fatal("summarize blocked 31 minutes after the last pass")
	}
}

func TestSummarizeCompressesOldMomentsIntoFact(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limits := Limits{EmbarrassingMoments: 24, CodeSnippetsPerUser: 20, RunningGags: 30, SummarizedFacts: 50}
	o := NewOptimizer(limits)
	o.now = fixedNow(now)
	rc := newRichContext("s")

	for i := 0; i < 20; i++ {
		c := fmt.Sprintf("forgot semicolon incident number %d", i)
		rc.embarrassingMoments = append(rc.embarrassingMoments, ContextItem{
			Content:      c,
			UserID:       "u1",
			Timestamp:    now.Add(-48 * time.Hour),
			SemanticHash: GenerateSemanticHash(c),
		})
	}
	rc.lastSizeUpdate = time.Time{}
	o.RefreshApproximateSize(rc)

	o.SummarizeServerContext(rc)

	if rc.lastSummarization != now {
		t.Fatal("lastSummarization not stamped")
	}
	if len(rc.summarizedFacts) != 1 {
		t.Fatalf("facts = %d, want 1", len(rc.summarizedFacts))
	}
	if !strings.HasPrefix(rc.summarizedFacts[0].Content, "SUMMARIZED:") {
		t.Fatalf("fact content %q missing marker", rc.summarizedFacts[0].Content)
	}
	// Budget is 30% of 20 moments: six collapse into the fact.
	if len(rc.embarrassingMoments) != 14 {
		t.Fatalf("moments after summarize = %d, want 14", len(rc.embarrassingMoments))
	}
	if rc.compressionRatio <= 0 || rc.compressionRatio > 1 {
		t.Fatalf("compressionRatio = %f", rc.compressionRatio)
	}
}

func TestSummarizeSkipsUnderfilledCategory(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o := NewOptimizer(DefaultLimits())
	o.now = fixedNow(now)
	rc := newRichContext("s")
	rc.embarrassingMoments = []ContextItem{{Content: "single moment", Timestamp: now.Add(-48 * time.Hour)}}

	o.SummarizeServerContext(rc)

	if rc.lastSummarization != now {
		t.Fatal("lastSummarization should be stamped even when nothing compresses")
	}
	if len(rc.summarizedFacts) != 0 || len(rc.embarrassingMoments) != 1 {
		t.Fatal("underfilled category was compressed")
	}
}

func TestSynthesizeSummaryFindsThemes(t *testing.T) {
	group := []ContextItem{
		{Content: "broke production deploying on friday"},
		{Content: "broke production again with a typo"},
		{Content: "somehow broke production a third time"},
	}
	s := synthesizeSummary("u1", group)
	if !strings.Contains(s, "broke") || !strings.Contains(s, "production") {
		t.Fatalf("summary %q missing repeated themes", s)
	}
	if !strings.Contains(s, "3 moments compressed") {
		t.Fatalf("summary %q missing count", s)
	}
}

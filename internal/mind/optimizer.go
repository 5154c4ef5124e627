package mind

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SimilarityThreshold — word-overlap ratio above which two items are treated
// as duplicates even when their semantic hashes differ.
const SimilarityThreshold = 0.8

// Optimizer keeps RichContext bounded: duplicate detection, LRU trimming,
// summarization and size accounting. All methods that touch a RichContext
// assume the caller holds its lock.
type Optimizer struct {
	limits Limits
	now    func() time.Time
}

// NewOptimizer creates an optimizer with the given per-category caps.
func NewOptimizer(limits Limits) *Optimizer {
	return &Optimizer{limits: limits, now: time.Now}
}

// GenerateSemanticHash returns a cheap content fingerprint: length bucket plus
// the first five significant keywords sorted alphabetically. Fast-path
// duplicate key, not a security hash.
func GenerateSemanticHash(content string) string {
	words := significantWords(content)
	seen := make(map[string]bool, len(words))
	uniq := make([]string, 0, len(words))
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			uniq = append(uniq, w)
		}
	}
	sort.Strings(uniq)
	if len(uniq) > 5 {
		uniq = uniq[:5]
	}
	return fmt.Sprintf("%d:%s", len(content)/10, strings.Join(uniq, ","))
}

// significantWords lower-cases, strips punctuation and keeps words longer
// than three characters.
func significantWords(content string) []string {
	var b strings.Builder
	b.Grow(len(content))
	for _, r := range strings.ToLower(content) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == ' ' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	out := fields[:0]
	for _, w := range fields {
		if len(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}

// wordOverlap returns shared significant words over the larger word count.
func wordOverlap(a, b string) float64 {
	wa := significantWords(a)
	wb := significantWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(wa))
	for _, w := range wa {
		set[w] = true
	}
	shared := 0
	seen := make(map[string]bool, len(wb))
	for _, w := range wb {
		if set[w] && !seen[w] {
			seen[w] = true
			shared++
		}
	}
	max := len(wa)
	if len(wb) > max {
		max = len(wb)
	}
	return float64(shared) / float64(max)
}

// FindSimilarMessages returns items that match content by exact semantic hash
// or by word overlap at or above threshold. Any non-empty result means the
// content should be rejected as a duplicate.
func (o *Optimizer) FindSimilarMessages(items []ContextItem, content string, threshold float64) []ContextItem {
	if threshold <= 0 {
		threshold = SimilarityThreshold
	}
	hash := GenerateSemanticHash(content)
	var matches []ContextItem
	for _, it := range items {
		if it.SemanticHash == hash || wordOverlap(it.Content, content) >= threshold {
			matches = append(matches, it)
		}
	}
	return matches
}

// itemSize is the accounting weight of one ContextItem.
func itemSize(it ContextItem) int {
	return len(it.Content) + overheadPerItem
}

// IncrementSize bumps the cached size estimate.
func (o *Optimizer) IncrementSize(rc *RichContext, delta int) {
	rc.approximateSize += delta
	rc.lastSizeUpdate = o.now()
}

// DecrementSize lowers the cached size estimate, never below zero.
func (o *Optimizer) DecrementSize(rc *RichContext, delta int) {
	rc.approximateSize -= delta
	if rc.approximateSize < 0 {
		rc.approximateSize = 0
	}
	rc.lastSizeUpdate = o.now()
}

// RefreshApproximateSize recounts from scratch, but only when the cached
// estimate is zero or older than SizeRefreshInterval.
func (o *Optimizer) RefreshApproximateSize(rc *RichContext) {
	now := o.now()
	if rc.approximateSize != 0 && now.Sub(rc.lastSizeUpdate) <= SizeRefreshInterval {
		return
	}
	total := 0
	for _, it := range rc.embarrassingMoments {
		total += itemSize(it)
	}
	for _, it := range rc.runningGags {
		total += itemSize(it)
	}
	for _, it := range rc.summarizedFacts {
		total += itemSize(it)
	}
	for _, items := range rc.codeSnippets {
		for _, it := range items {
			total += itemSize(it)
		}
	}
	for _, msgs := range rc.conversations {
		for _, m := range msgs {
			total += len(m.Content) + overheadPerConversation
		}
	}
	total += len(rc.socialGraph) * overheadPerGraphEntry
	total += len(rc.lastRoasted) * overheadPerItem
	rc.approximateSize = total
	rc.lastSizeUpdate = now
}

// trimToCapLRU drops the lowest-LRU-scored items until len <= cap, preserving
// the order of survivors. Returns kept items and freed accounting size.
func (o *Optimizer) trimToCapLRU(items []ContextItem, cap int) ([]ContextItem, int) {
	if cap < 0 || len(items) <= cap {
		return items, 0
	}
	now := o.now()
	type scored struct {
		idx   int
		score float64
	}
	order := make([]scored, len(items))
	for i, it := range items {
		order[i] = scored{idx: i, score: CalculateLRUScore(it, now)}
	}
	sort.Slice(order, func(a, b int) bool { return order[a].score < order[b].score })
	drop := make(map[int]bool, len(items)-cap)
	for i := 0; i < len(items)-cap; i++ {
		drop[order[i].idx] = true
	}
	kept := make([]ContextItem, 0, cap)
	freed := 0
	for i, it := range items {
		if drop[i] {
			freed += itemSize(it)
			continue
		}
		kept = append(kept, it)
	}
	return kept, freed
}

// IntelligentTrim is a no-op until approximateSize exceeds MaxContextSize.
// First pass trims every category to its configured cap; if the context is
// still over the ceiling a second aggressive pass reduces every cap to 75%.
func (o *Optimizer) IntelligentTrim(rc *RichContext) {
	if rc.approximateSize <= MaxContextSize {
		return
	}
	o.trimAllCategories(rc, o.limits)
	if rc.approximateSize > MaxContextSize {
		aggressive := Limits{
			EmbarrassingMoments: o.limits.EmbarrassingMoments * 3 / 4,
			CodeSnippetsPerUser: o.limits.CodeSnippetsPerUser * 3 / 4,
			RunningGags:         o.limits.RunningGags * 3 / 4,
			SummarizedFacts:     o.limits.SummarizedFacts * 3 / 4,
		}
		o.trimAllCategories(rc, aggressive)
	}
}

func (o *Optimizer) trimAllCategories(rc *RichContext, lim Limits) {
	var freed int
	rc.embarrassingMoments, freed = o.trimToCapLRU(rc.embarrassingMoments, lim.EmbarrassingMoments)
	o.DecrementSize(rc, freed)
	for userID, items := range rc.codeSnippets {
		trimmed, f := o.trimToCapLRU(items, lim.CodeSnippetsPerUser)
		rc.codeSnippets[userID] = trimmed
		o.DecrementSize(rc, f)
	}
	rc.runningGags, freed = o.trimToCapLRU(rc.runningGags, lim.RunningGags)
	o.DecrementSize(rc, freed)
}

// ShouldSummarize reports whether enough time has passed since the last
// summarization pass.
func (o *Optimizer) ShouldSummarize(rc *RichContext) bool {
	return o.now().Sub(rc.lastSummarization) >= SummarizeInterval
}

// SummarizeServerContext compresses old embarrassing moments into synthesized
// facts. Runs only when the category is over 75% of its cap. Considers items
// older than 24h, at most 30% of the category, grouped by source user; groups
// of more than five collapse into one SUMMARIZED fact. Updates
// compressionRatio and stamps lastSummarization.
func (o *Optimizer) SummarizeServerContext(rc *RichContext) {
	now := o.now()
	rc.lastSummarization = now

	if len(rc.embarrassingMoments) <= o.limits.EmbarrassingMoments*3/4 {
		return
	}
	oldSize := rc.approximateSize

	cutoff := now.Add(-24 * time.Hour)
	budget := len(rc.embarrassingMoments) * 30 / 100
	groups := make(map[string][]int)
	taken := 0
	for i, it := range rc.embarrassingMoments {
		if taken >= budget {
			break
		}
		if it.Timestamp.After(cutoff) {
			continue
		}
		groups[it.UserID] = append(groups[it.UserID], i)
		taken++
	}

	remove := make(map[int]bool)
	for userID, idxs := range groups {
		if len(idxs) <= 5 {
			continue
		}
		group := make([]ContextItem, 0, len(idxs))
		for _, i := range idxs {
			group = append(group, rc.embarrassingMoments[i])
			remove[i] = true
		}
		summary := synthesizeSummary(userID, group)
		fact := ContextItem{
			Content:         summary,
			UserID:          userID,
			Timestamp:       now,
			LastAccessed:    now,
			RelevanceScore:  0.5,
			ImportanceScore: 0.7,
			SemanticHash:    GenerateSemanticHash(summary),
		}
		rc.summarizedFacts = append(rc.summarizedFacts, fact)
		o.IncrementSize(rc, itemSize(fact))
	}

	if len(remove) > 0 {
		kept := rc.embarrassingMoments[:0]
		freed := 0
		for i, it := range rc.embarrassingMoments {
			if remove[i] {
				freed += itemSize(it)
				continue
			}
			kept = append(kept, it)
		}
		rc.embarrassingMoments = kept
		o.DecrementSize(rc, freed)
	}

	var freed int
	rc.summarizedFacts, freed = o.trimToCapLRU(rc.summarizedFacts, o.limits.SummarizedFacts)
	o.DecrementSize(rc, freed)

	denom := oldSize
	if denom < 1 {
		denom = 1
	}
	rc.compressionRatio = float64(rc.approximateSize) / float64(denom)
}

// synthesizeSummary distills a user's group of old moments into one line:
// repeated-word themes when any word repeats, otherwise the three most
// important raw moments.
func synthesizeSummary(userID string, group []ContextItem) string {
	counts := make(map[string]int)
	for _, it := range group {
		seen := make(map[string]bool)
		for _, w := range significantWords(it.Content) {
			if !seen[w] {
				seen[w] = true
				counts[w]++
			}
		}
	}
	var themes []string
	for w, c := range counts {
		if c >= 2 {
			themes = append(themes, w)
		}
	}
	if len(themes) > 0 {
		sort.Slice(themes, func(a, b int) bool {
			if counts[themes[a]] != counts[themes[b]] {
				return counts[themes[a]] > counts[themes[b]]
			}
			return themes[a] < themes[b]
		})
		if len(themes) > 3 {
			themes = themes[:3]
		}
		return fmt.Sprintf("SUMMARIZED: %s keeps coming back to %s (%d moments compressed)",
			userID, strings.Join(themes, ", "), len(group))
	}

	top := make([]ContextItem, len(group))
	copy(top, group)
	sort.Slice(top, func(a, b int) bool { return top[a].ImportanceScore > top[b].ImportanceScore })
	if len(top) > 3 {
		top = top[:3]
	}
	parts := make([]string, 0, len(top))
	for _, it := range top {
		parts = append(parts, it.Content)
	}
	return fmt.Sprintf("SUMMARIZED: %s — %s (%d moments compressed)",
		userID, strings.Join(parts, "; "), len(group))
}

// DeduplicateServerContext removes items whose semantic hash repeats within a
// collection. The scan runs back-to-front so the most recently added instance
// of each duplicate set survives. Returns the number of removed items.
func (o *Optimizer) DeduplicateServerContext(rc *RichContext) int {
	removed := 0
	var freed int
	rc.embarrassingMoments, freed = dedupeBackward(rc.embarrassingMoments, &removed)
	o.DecrementSize(rc, freed)
	rc.runningGags, freed = dedupeBackward(rc.runningGags, &removed)
	o.DecrementSize(rc, freed)
	rc.summarizedFacts, freed = dedupeBackward(rc.summarizedFacts, &removed)
	o.DecrementSize(rc, freed)
	for userID, items := range rc.codeSnippets {
		deduped, f := dedupeBackward(items, &removed)
		rc.codeSnippets[userID] = deduped
		o.DecrementSize(rc, f)
	}
	return removed
}

func dedupeBackward(items []ContextItem, removed *int) ([]ContextItem, int) {
	seen := make(map[string]bool, len(items))
	keep := make([]bool, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		h := items[i].SemanticHash
		if h == "" {
			keep[i] = true
			continue
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		keep[i] = true
	}
	kept := items[:0]
	freed := 0
	for i, it := range items {
		if keep[i] {
			kept = append(kept, it)
			continue
		}
		freed += itemSize(it)
		*removed++
	}
	return kept, freed
}

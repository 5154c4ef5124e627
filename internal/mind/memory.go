package mind

import "time"

// Memory is the low-level CRUD layer over a RichContext. It appends
// well-formed ContextItems and exposes counts and LRU scoring. Duplicate
// checks belong to the Optimizer; callers dedupe before appending.
// All methods assume the caller holds the context lock.
type Memory struct {
	limits Limits
	now    func() time.Time
}

// NewMemory creates the store helper with the configured caps.
func NewMemory(limits Limits) *Memory {
	return &Memory{limits: limits, now: time.Now}
}

// Limits returns the process-wide per-category caps.
func (m *Memory) Limits() Limits {
	return m.limits
}

// newItem builds a ContextItem with the caller-supplied precomputed hash.
func (m *Memory) newItem(content, userID, hash string, importance float64) ContextItem {
	now := m.now()
	return ContextItem{
		Content:         content,
		UserID:          userID,
		Timestamp:       now,
		LastAccessed:    now,
		RelevanceScore:  0.5,
		ImportanceScore: importance,
		SemanticHash:    hash,
	}
}

// AddEmbarrassingMoment appends a server-wide embarrassing moment.
func (m *Memory) AddEmbarrassingMoment(rc *RichContext, userID, content, hash string) ContextItem {
	it := m.newItem(content, userID, hash, 0.6)
	rc.embarrassingMoments = append(rc.embarrassingMoments, it)
	return it
}

// AddCodeSnippet appends a code snippet to the user's list.
func (m *Memory) AddCodeSnippet(rc *RichContext, userID, content, hash string) ContextItem {
	it := m.newItem(content, userID, hash, 0.5)
	rc.codeSnippets[userID] = append(rc.codeSnippets[userID], it)
	return it
}

// AddRunningGag appends a server-wide running gag.
func (m *Memory) AddRunningGag(rc *RichContext, userID, content, hash string) ContextItem {
	it := m.newItem(content, userID, hash, 0.5)
	rc.runningGags = append(rc.runningGags, it)
	return it
}

// AddSummarizedFact appends distilled knowledge.
func (m *Memory) AddSummarizedFact(rc *RichContext, userID, content, hash string) ContextItem {
	it := m.newItem(content, userID, hash, 0.7)
	rc.summarizedFacts = append(rc.summarizedFacts, it)
	return it
}

// AddConversationMessage appends to the user's message history buffer.
func (m *Memory) AddConversationMessage(rc *RichContext, msg ConversationMessage) {
	if msg.At.IsZero() {
		msg.At = m.now()
	}
	rc.conversations[msg.UserID] = append(rc.conversations[msg.UserID], msg)
	// History is not a dedupe-checked category; keep it bounded directly.
	const maxHistory = 50
	if len(rc.conversations[msg.UserID]) > maxHistory {
		rc.conversations[msg.UserID] = rc.conversations[msg.UserID][len(rc.conversations[msg.UserID])-maxHistory:]
	}
}

// ItemCounts — per-category counts for stats and cache fingerprints.
type ItemCounts struct {
	EmbarrassingMoments int `json:"embarrassing_moments"`
	CodeSnippets        int `json:"code_snippets"`
	RunningGags         int `json:"running_gags"`
	SummarizedFacts     int `json:"summarized_facts"`
	Conversations       int `json:"conversations"`
	SocialGraphUsers    int `json:"social_graph_users"`
}

// CountItems returns the per-category counts of a context.
func (m *Memory) CountItems(rc *RichContext) ItemCounts {
	c := ItemCounts{
		EmbarrassingMoments: len(rc.embarrassingMoments),
		RunningGags:         len(rc.runningGags),
		SummarizedFacts:     len(rc.summarizedFacts),
		SocialGraphUsers:    len(rc.socialGraph),
	}
	for _, items := range rc.codeSnippets {
		c.CodeSnippets += len(items)
	}
	for _, msgs := range rc.conversations {
		c.Conversations += len(msgs)
	}
	return c
}

// CalculateLRUScore combines recency and access frequency into one comparable
// number. Older and less-accessed items score lower; lower scores are evicted
// first.
func CalculateLRUScore(it ContextItem, now time.Time) float64 {
	ref := it.LastAccessed
	if ref.IsZero() {
		ref = it.Timestamp
	}
	ageHours := now.Sub(ref).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return float64(it.AccessCount)*2 - ageHours
}

// touch bumps an item's LRU metadata (read path "write" allowed to builders).
func touch(it *ContextItem, now time.Time) {
	it.AccessCount++
	it.LastAccessed = now
}

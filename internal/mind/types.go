package mind

import (
	"sync"
	"time"
)

// ContextItem — uniform record for moments, snippets, gags and facts.
// SemanticHash must be populated before the item enters any dedupe-checked
// collection.
type ContextItem struct {
	Content         string    `json:"content"`
	UserID          string    `json:"user_id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	AccessCount     int       `json:"access_count"`
	LastAccessed    time.Time `json:"last_accessed"`
	RelevanceScore  float64   `json:"relevance_score"`
	ImportanceScore float64   `json:"importance_score"`
	SemanticHash    string    `json:"semantic_hash"`
}

// ConversationMessage — one message in a user's per-server history buffer.
type ConversationMessage struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Content   string    `json:"content"`
	ChannelID string    `json:"channel_id,omitempty"`
	HasCode   bool      `json:"has_code"`
	At        time.Time `json:"at"`
}

// SocialGraph — interaction counters of one source user toward targets.
// Interactions is the superset counter: bumped on every update regardless of
// type, so Interactions[t] >= Mentions[t]+Roasts[t] holds by construction.
type SocialGraph struct {
	Interactions    map[string]int       `json:"interactions"`
	Mentions        map[string]int       `json:"mentions"`
	Roasts          map[string]int       `json:"roasts"`
	LastInteraction map[string]time.Time `json:"last_interaction"`
}

func newSocialGraph() *SocialGraph {
	return &SocialGraph{
		Interactions:    make(map[string]int),
		Mentions:        make(map[string]int),
		Roasts:          make(map[string]int),
		LastInteraction: make(map[string]time.Time),
	}
}

// RichContext holds everything the bot knows about one server. Created lazily,
// lives in memory for the process lifetime or until evicted as empty.
// All fields are guarded by mu; the Manager locks at its API boundary and the
// lower-level services assume the caller holds the lock.
type RichContext struct {
	ServerID string

	mu                  sync.RWMutex
	conversations       map[string][]ConversationMessage
	codeSnippets        map[string][]ContextItem
	embarrassingMoments []ContextItem
	runningGags         []ContextItem
	summarizedFacts     []ContextItem
	lastRoasted         map[string]time.Time
	socialGraph         map[string]*SocialGraph

	approximateSize    int
	lastSizeUpdate     time.Time
	lastSummarization  time.Time
	compressionRatio   float64
	crossServerEnabled bool
}

func newRichContext(serverID string) *RichContext {
	return &RichContext{
		ServerID:         serverID,
		conversations:    make(map[string][]ConversationMessage),
		codeSnippets:     make(map[string][]ContextItem),
		lastRoasted:      make(map[string]time.Time),
		socialGraph:      make(map[string]*SocialGraph),
		compressionRatio: 1.0,
	}
}

// isEmpty reports whether the context carries no artifacts at all (caller
// holds the lock). Empty contexts are evicted by memory maintenance.
func (rc *RichContext) isEmpty() bool {
	return len(rc.embarrassingMoments) == 0 &&
		len(rc.runningGags) == 0 &&
		len(rc.summarizedFacts) == 0 &&
		len(rc.codeSnippets) == 0 &&
		len(rc.conversations) == 0 &&
		len(rc.lastRoasted) == 0 &&
		len(rc.socialGraph) == 0
}

// Limits — process-wide per-category caps. Same for every server.
type Limits struct {
	EmbarrassingMoments int
	CodeSnippetsPerUser int
	RunningGags         int
	SummarizedFacts     int
}

// DefaultLimits returns the caps used when no config override is supplied.
func DefaultLimits() Limits {
	return Limits{
		EmbarrassingMoments: 50,
		CodeSnippetsPerUser: 20,
		RunningGags:         30,
		SummarizedFacts:     50,
	}
}

const (
	// MaxContextSize — ceiling on approximateSize before IntelligentTrim acts.
	MaxContextSize = 300000

	// SizeRefreshInterval — RefreshApproximateSize recounts only when the
	// cached estimate is older than this.
	SizeRefreshInterval = 60 * time.Second

	// SummarizeInterval — minimum gap between summarization passes per server.
	SummarizeInterval = 30 * time.Minute

	// StaleItemAge — items older than this are purged by stale cleanup.
	StaleItemAge = 30 * 24 * time.Hour

	// Fixed per-entry overhead used by size accounting for map and graph
	// bookkeeping that plain content length misses.
	overheadPerItem         = 32
	overheadPerConversation = 48
	overheadPerGraphEntry   = 96
)

package mind

import (
	"log"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// PressureConfig — heap thresholds for the memory-pressure monitor.
type PressureConfig struct {
	WarnMB     float64
	CriticalMB float64
}

// DefaultPressureConfig returns the default heap thresholds.
func DefaultPressureConfig() PressureConfig {
	return PressureConfig{WarnMB: 256, CriticalMB: 512}
}

// PersonalityLookup supplies an optional per-user description for the user
// context builder. Implemented by the personality store collaborator.
type PersonalityLookup interface {
	Describe(userID string) string
}

// Manager orchestrates the context subsystem: owns the store, schedules
// maintenance, and exposes the public API consumed by message handlers.
// Construct once at startup, pass by reference.
type Manager struct {
	store  *ContextStore
	mem    *Memory
	opt    *Optimizer
	social *Social
	cache  *ContextCache

	personality PersonalityLookup
	pressure    PressureConfig

	// buildMu serializes prompt builds; they are the only paths that hold
	// more than one context lock at a time (cross-server reads).
	buildMu sync.Mutex

	flagMu        sync.Mutex
	globalContext bool

	cron      *cron.Cron
	heapUsage func() (usedMB, totalMB float64)
	gcHint    func()
}

// NewManager wires the context services together. personality may be nil.
func NewManager(limits Limits, pressure PressureConfig, personality PersonalityLookup) *Manager {
	if pressure.CriticalMB <= 0 {
		pressure = DefaultPressureConfig()
	}
	return &Manager{
		store:       NewContextStore(),
		mem:         NewMemory(limits),
		opt:         NewOptimizer(limits),
		social:      NewSocial(),
		cache:       NewContextCache(),
		personality: personality,
		pressure:    pressure,
		heapUsage:   heapUsageMB,
		gcHint:      runtime.GC,
	}
}

func heapUsageMB() (float64, float64) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / (1 << 20), float64(ms.HeapSys) / (1 << 20)
}

// Start launches the four maintenance schedules. Stop must be called on
// shutdown so no timer survives the manager.
func (m *Manager) Start() {
	if m.cron != nil {
		return
	}
	m.cron = cron.New()
	m.cron.AddFunc("@every 5m", m.runMemoryMaintenance)
	m.cron.AddFunc("@every 30m", m.runSummarization)
	m.cron.AddFunc("@every 1h", m.runStaleCleanup)
	m.cron.AddFunc("@every 30s", m.runPressureCheck)
	m.cron.Start()
	log.Printf("[MIND] maintenance schedules started")
}

// Stop halts all maintenance schedules.
func (m *Manager) Stop() {
	if m.cron != nil {
		ctx := m.cron.Stop()
		<-ctx.Done()
		m.cron = nil
	}
	log.Printf("[MIND] maintenance schedules stopped")
}

// Store exposes the context store (roast engine glue, tests).
func (m *Manager) Store() *ContextStore {
	return m.store
}

// --- mutators -------------------------------------------------------------

// addItem is the shared path of the four artifact mutators: dedupe, append,
// size increment, trim, cache invalidation.
func (m *Manager) addItem(serverID, userID, content string,
	collection func(rc *RichContext) []ContextItem,
	insert func(rc *RichContext, hash string) ContextItem) bool {

	if serverID == "" || content == "" {
		return false
	}
	rc := m.store.Context(serverID)
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if dup := m.opt.FindSimilarMessages(collection(rc), content, SimilarityThreshold); len(dup) > 0 {
		return false
	}
	it := insert(rc, GenerateSemanticHash(content))
	m.opt.IncrementSize(rc, itemSize(it))
	m.opt.IntelligentTrim(rc)
	m.cache.Invalidate(serverID, userID)
	return true
}

// AddEmbarrassingMoment records a moment unless it duplicates an existing
// one. Returns whether it was stored.
func (m *Manager) AddEmbarrassingMoment(serverID, userID, content string) bool {
	return m.addItem(serverID, userID, content,
		func(rc *RichContext) []ContextItem { return rc.embarrassingMoments },
		func(rc *RichContext, hash string) ContextItem {
			return m.mem.AddEmbarrassingMoment(rc, userID, content, hash)
		})
}

// AddCodeSnippet records a code snippet for the user.
func (m *Manager) AddCodeSnippet(serverID, userID, content string) bool {
	return m.addItem(serverID, userID, content,
		func(rc *RichContext) []ContextItem { return rc.codeSnippets[userID] },
		func(rc *RichContext, hash string) ContextItem {
			return m.mem.AddCodeSnippet(rc, userID, content, hash)
		})
}

// AddRunningGag records a server-wide running gag.
func (m *Manager) AddRunningGag(serverID, userID, content string) bool {
	return m.addItem(serverID, userID, content,
		func(rc *RichContext) []ContextItem { return rc.runningGags },
		func(rc *RichContext, hash string) ContextItem {
			return m.mem.AddRunningGag(rc, userID, content, hash)
		})
}

// AddSummarizedFact records distilled knowledge.
func (m *Manager) AddSummarizedFact(serverID, userID, content string) bool {
	return m.addItem(serverID, userID, content,
		func(rc *RichContext) []ContextItem { return rc.summarizedFacts },
		func(rc *RichContext, hash string) ContextItem {
			return m.mem.AddSummarizedFact(rc, userID, content, hash)
		})
}

// RecordMessage appends to the user's conversation history buffer.
func (m *Manager) RecordMessage(serverID string, msg ConversationMessage) {
	if serverID == "" || msg.UserID == "" {
		return
	}
	rc := m.store.Context(serverID)
	rc.mu.Lock()
	m.mem.AddConversationMessage(rc, msg)
	m.opt.IncrementSize(rc, len(msg.Content)+overheadPerConversation)
	rc.mu.Unlock()
	m.cache.Invalidate(serverID, msg.UserID)
}

// MarkRoasted stamps the per-server cooldown bookkeeping for a user.
func (m *Manager) MarkRoasted(serverID, userID string) {
	if serverID == "" || userID == "" {
		return
	}
	rc := m.store.Context(serverID)
	rc.mu.Lock()
	rc.lastRoasted[userID] = time.Now()
	rc.mu.Unlock()
}

// UpdateSocialGraph records an interaction between two users.
func (m *Manager) UpdateSocialGraph(serverID, userID, targetUserID, interactionType string) {
	if serverID == "" {
		return
	}
	rc := m.store.Context(serverID)
	rc.mu.Lock()
	defer rc.mu.Unlock()
	m.social.UpdateSocialGraph(rc, userID, targetUserID, interactionType)
}

// TopInteractions returns the user's strongest social links.
func (m *Manager) TopInteractions(serverID, userID string, limit int) []Interaction {
	rc := m.store.Peek(serverID)
	if rc == nil {
		return nil
	}
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return m.social.GetTopInteractions(rc, userID, limit)
}

// RecentInteractions returns formatted recent-activity lines.
func (m *Manager) RecentInteractions(serverID, userID string, hoursAgo int) []string {
	rc := m.store.Peek(serverID)
	if rc == nil {
		return nil
	}
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return m.social.GetRecentInteractions(rc, userID, hoursAgo)
}

// --- flags ----------------------------------------------------------------

// EnableCrossServerContext opts a server into cross-server sharing.
func (m *Manager) EnableCrossServerContext(serverID string, enabled bool) {
	rc := m.store.Context(serverID)
	rc.mu.Lock()
	rc.crossServerEnabled = enabled
	rc.mu.Unlock()
	log.Printf("[MIND] cross-server server=%s enabled=%v", serverID, enabled)
}

// EnableGlobalContext turns on the cross-server pipeline globally.
func (m *Manager) EnableGlobalContext() { m.setGlobalContext(true) }

// DisableGlobalContext turns it off (default).
func (m *Manager) DisableGlobalContext() { m.setGlobalContext(false) }

func (m *Manager) setGlobalContext(v bool) {
	m.flagMu.Lock()
	m.globalContext = v
	m.flagMu.Unlock()
	m.cache.Clear()
}

func (m *Manager) globalContextEnabled() bool {
	m.flagMu.Lock()
	defer m.flagMu.Unlock()
	return m.globalContext
}

// --- builders -------------------------------------------------------------

// recoverBuild degrades a panicking build to a partial string instead of
// failing the user-facing response.
func recoverBuild(what string, out *string) {
	if r := recover(); r != nil {
		log.Printf("[ERR] context build %s panicked: %v", what, r)
		*out = ""
	}
}

// BuildSuperContext composes the full roasting prompt context for a user,
// memoized per (server, user) by content fingerprint. maxLength <= 0 means
// unbounded.
func (m *Manager) BuildSuperContext(serverID, userID string, maxLength int) (out string) {
	defer recoverBuild("super", &out)
	rc := m.store.Peek(serverID)
	if rc == nil {
		return ""
	}

	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	rc.mu.Lock()
	hash := Fingerprint(m.mem.CountItems(rc), rc)
	rc.mu.Unlock()
	if cached, ok := m.cache.Get(serverID, userID, hash); ok {
		return cached
	}

	var view CrossServerView
	if m.globalContextEnabled() {
		view = m.store.SharedView(serverID)
	}

	rc.mu.Lock()
	conv := ConversationBuilder{newBaseBuilder(rc, serverID, userID)}
	conv.AddHistory()
	conv.AddCodeContext()

	user := UserBuilder{baseBuilder: newBaseBuilder(rc, serverID, userID)}
	if m.personality != nil {
		user.personality = m.personality.Describe(userID)
	}
	user.AddAll()

	composite := CompositeBuilder{rc: rc, serverID: serverID, userID: userID, social: m.social, view: view}
	deep := composite.Build()
	rc.mu.Unlock()

	parts := make([]string, 0, 3)
	for _, s := range []string{conv.Build(), user.Build(), deep} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	out = strings.Join(parts, "\n")
	if maxLength > 0 {
		out = TrimToChars(out, maxLength)
	}
	m.cache.Put(serverID, userID, hash, out)
	return out
}

// BuildSmartContext is the lighter-weight alternative: keyword-filtered
// facts and code history plus social dynamics. Never cached.
func (m *Manager) BuildSmartContext(serverID, userID, currentMessage string) (out string) {
	defer recoverBuild("smart", &out)
	rc := m.store.Peek(serverID)
	if rc == nil {
		return ""
	}
	keywords := extractKeywords(currentMessage)

	rc.mu.Lock()
	defer rc.mu.Unlock()

	var b strings.Builder
	now := time.Now()

	matched := 0
	for i := range rc.summarizedFacts {
		if matched >= 5 {
			break
		}
		lower := strings.ToLower(rc.summarizedFacts[i].Content)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				touch(&rc.summarizedFacts[i], now)
				if matched == 0 {
					b.WriteString("RELEVANT FACTS:\n")
				}
				b.WriteString("- ")
				b.WriteString(rc.summarizedFacts[i].Content)
				b.WriteString("\n")
				matched++
				break
			}
		}
	}

	if len(keywords) > 0 {
		snippets := rc.codeSnippets[userID]
		idx := make([]int, len(snippets))
		for i := range snippets {
			idx[i] = i
		}
		sort.Slice(idx, func(a, b int) bool {
			return snippets[idx[a]].Timestamp.After(snippets[idx[b]].Timestamp)
		})
		if len(idx) > 3 {
			idx = idx[:3]
		}
		for n, i := range idx {
			touch(&snippets[i], now)
			if n == 0 {
				b.WriteString("RECENT CODE:\n")
			}
			b.WriteString("- ")
			b.WriteString(snippets[i].Content)
			b.WriteString("\n")
		}
	}

	if social := m.social.BuildSocialDynamicsContext(rc, userID); social != "" {
		b.WriteString(social)
	}
	return b.String()
}

// BuildConversationContext returns the user's recent history plus code
// context.
func (m *Manager) BuildConversationContext(serverID, userID string) (out string) {
	defer recoverBuild("conversation", &out)
	rc := m.store.Peek(serverID)
	if rc == nil {
		return ""
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	b := ConversationBuilder{newBaseBuilder(rc, serverID, userID)}
	b.AddHistory()
	b.AddCodeContext()
	return b.Build()
}

// BuildUserContext returns behavior, personality and worst moments.
func (m *Manager) BuildUserContext(serverID, userID string) (out string) {
	defer recoverBuild("user", &out)
	rc := m.store.Peek(serverID)
	if rc == nil {
		return ""
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	b := UserBuilder{baseBuilder: newBaseBuilder(rc, serverID, userID)}
	if m.personality != nil {
		b.personality = m.personality.Describe(userID)
	}
	b.AddAll()
	return b.Build()
}

// BuildServerCultureContext renders server-wide lore: gags and facts.
func (m *Manager) BuildServerCultureContext(serverID string) (out string) {
	defer recoverBuild("culture", &out)
	rc := m.store.Peek(serverID)
	if rc == nil {
		return ""
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	gags := RunningGagsBuilder{newBaseBuilder(rc, serverID, "")}
	gags.AddGags()
	facts := FactsBuilder{newBaseBuilder(rc, serverID, "")}
	facts.AddFacts()
	parts := make([]string, 0, 2)
	for _, s := range []string{gags.Build(), facts.Build()} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// --- maintenance and stats ------------------------------------------------

// ForceSummarization runs the compression pass for one server immediately.
func (m *Manager) ForceSummarization(serverID string) {
	rc := m.store.Peek(serverID)
	if rc == nil {
		return
	}
	rc.mu.Lock()
	m.opt.SummarizeServerContext(rc)
	rc.mu.Unlock()
}

// Deduplicate removes semantic duplicates on demand, returning the count.
func (m *Manager) Deduplicate(serverID string) int {
	rc := m.store.Peek(serverID)
	if rc == nil {
		return 0
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return m.opt.DeduplicateServerContext(rc)
}

// CompressionStats — per-server compression snapshot.
type CompressionStats struct {
	ServerID          string     `json:"server_id"`
	ApproximateSize   int        `json:"approximate_size"`
	CompressionRatio  float64    `json:"compression_ratio"`
	LastSummarization time.Time  `json:"last_summarization"`
	Counts            ItemCounts `json:"counts"`
}

// ServerCompressionStats returns the compression snapshot for one server.
func (m *Manager) ServerCompressionStats(serverID string) CompressionStats {
	rc := m.store.Peek(serverID)
	if rc == nil {
		return CompressionStats{ServerID: serverID, CompressionRatio: 1.0}
	}
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return CompressionStats{
		ServerID:          serverID,
		ApproximateSize:   rc.approximateSize,
		CompressionRatio:  rc.compressionRatio,
		LastSummarization: rc.lastSummarization,
		Counts:            m.mem.CountItems(rc),
	}
}

// MemoryStats — process-wide counters for reporting.
type MemoryStats struct {
	Servers      int `json:"servers"`
	TotalSize    int `json:"total_size"`
	TotalItems   int `json:"total_items"`
	CachedBuilds int `json:"cached_builds"`
}

// GetMemoryStats returns process-wide memory counters.
func (m *Manager) GetMemoryStats() MemoryStats {
	stats := MemoryStats{CachedBuilds: m.cache.Len()}
	for _, id := range m.store.ServerIDs() {
		rc := m.store.Peek(id)
		if rc == nil {
			continue
		}
		rc.mu.RLock()
		c := m.mem.CountItems(rc)
		stats.TotalSize += rc.approximateSize
		stats.TotalItems += c.EmbarrassingMoments + c.CodeSnippets + c.RunningGags + c.SummarizedFacts
		rc.mu.RUnlock()
		stats.Servers++
	}
	return stats
}

// StorageStats — storage-analytics snapshot for the reporting collaborator.
type StorageStats struct {
	TotalSize   int            `json:"total_size"`
	SocialBytes int            `json:"social_bytes"`
	PerServer   map[string]int `json:"per_server"`
	OldestEntry time.Time      `json:"oldest_entry,omitempty"`
	NewestEntry time.Time      `json:"newest_entry,omitempty"`
}

// GetStorageStats computes total estimated size, a per-server breakdown and
// the oldest/newest item timestamps.
func (m *Manager) GetStorageStats() StorageStats {
	out := StorageStats{PerServer: make(map[string]int)}
	for _, id := range m.store.ServerIDs() {
		rc := m.store.Peek(id)
		if rc == nil {
			continue
		}
		rc.mu.Lock()
		m.opt.RefreshApproximateSize(rc)
		size := rc.approximateSize
		out.SocialBytes += m.social.CalculateSocialGraphSize(rc)
		for _, items := range [][]ContextItem{rc.embarrassingMoments, rc.runningGags, rc.summarizedFacts} {
			for _, it := range items {
				if out.OldestEntry.IsZero() || it.Timestamp.Before(out.OldestEntry) {
					out.OldestEntry = it.Timestamp
				}
				if it.Timestamp.After(out.NewestEntry) {
					out.NewestEntry = it.Timestamp
				}
			}
		}
		rc.mu.Unlock()
		out.PerServer[id] = size
		out.TotalSize += size
	}
	return out
}

// CrossServerInsights — aggregation of one user's footprint across servers.
type CrossServerInsights struct {
	MostActiveServer  string   `json:"most_active_server"`
	TotalInteractions int      `json:"total_interactions"`
	Patterns          []string `json:"patterns"`
}

// GetCrossServerInsights aggregates a user's social activity across every
// tracked server.
func (m *Manager) GetCrossServerInsights(userID string) CrossServerInsights {
	var out CrossServerInsights
	best := 0
	for _, id := range m.store.ServerIDs() {
		rc := m.store.Peek(id)
		if rc == nil {
			continue
		}
		rc.mu.RLock()
		total := 0
		if g := rc.socialGraph[userID]; g != nil {
			for _, n := range g.Interactions {
				total += n
			}
		}
		moments := 0
		for _, it := range rc.embarrassingMoments {
			if it.UserID == userID {
				moments++
			}
		}
		rc.mu.RUnlock()
		out.TotalInteractions += total
		if total > best {
			best = total
			out.MostActiveServer = id
		}
		if moments >= 3 {
			out.Patterns = append(out.Patterns, "repeat embarrassment offender in "+id)
		}
	}
	sort.Strings(out.Patterns)
	return out
}

// --- background jobs ------------------------------------------------------

func (m *Manager) runMemoryMaintenance() {
	stats := m.GetMemoryStats()
	log.Printf("[MIND] maintenance servers=%d items=%d size=%d cached=%d",
		stats.Servers, stats.TotalItems, stats.TotalSize, stats.CachedBuilds)
	for _, id := range m.store.ServerIDs() {
		rc := m.store.Peek(id)
		if rc == nil {
			continue
		}
		rc.mu.RLock()
		empty := rc.isEmpty()
		rc.mu.RUnlock()
		if empty {
			m.store.Remove(id)
			log.Printf("[MIND] evicted empty context server=%s", id)
		}
	}
}

func (m *Manager) runSummarization() {
	for _, id := range m.store.ServerIDs() {
		rc := m.store.Peek(id)
		if rc == nil {
			continue
		}
		rc.mu.Lock()
		if m.opt.ShouldSummarize(rc) {
			m.opt.SummarizeServerContext(rc)
		}
		rc.mu.Unlock()
	}
}

func (m *Manager) runStaleCleanup() {
	cutoff := time.Now().Add(-StaleItemAge)
	for _, id := range m.store.ServerIDs() {
		rc := m.store.Peek(id)
		if rc == nil {
			continue
		}
		rc.mu.Lock()
		changed := m.pruneStale(rc, cutoff)
		if changed {
			rc.lastSizeUpdate = time.Time{}
			m.opt.RefreshApproximateSize(rc)
		}
		rc.mu.Unlock()
	}
}

// pruneStale drops items and idle social-graph entries older than cutoff.
// Caller holds the lock.
func (m *Manager) pruneStale(rc *RichContext, cutoff time.Time) bool {
	changed := false
	drop := func(items []ContextItem) []ContextItem {
		kept := items[:0]
		for _, it := range items {
			if it.Timestamp.Before(cutoff) {
				changed = true
				continue
			}
			kept = append(kept, it)
		}
		return kept
	}
	rc.embarrassingMoments = drop(rc.embarrassingMoments)
	rc.runningGags = drop(rc.runningGags)
	rc.summarizedFacts = drop(rc.summarizedFacts)
	for userID, items := range rc.codeSnippets {
		trimmed := drop(items)
		if len(trimmed) == 0 {
			delete(rc.codeSnippets, userID)
		} else {
			rc.codeSnippets[userID] = trimmed
		}
	}
	for userID, msgs := range rc.conversations {
		kept := msgs[:0]
		for _, msg := range msgs {
			if msg.At.Before(cutoff) {
				changed = true
				continue
			}
			kept = append(kept, msg)
		}
		if len(kept) == 0 {
			delete(rc.conversations, userID)
		} else {
			rc.conversations[userID] = kept
		}
	}
	for userID, g := range rc.socialGraph {
		active := false
		for _, last := range g.LastInteraction {
			if !last.Before(cutoff) {
				active = true
				break
			}
		}
		if !active {
			delete(rc.socialGraph, userID)
			changed = true
		}
	}
	return changed
}

func (m *Manager) runPressureCheck() {
	used, total := m.heapUsage()
	log.Printf("[MIND] heap used=%.1fMB total=%.1fMB", used, total)
	if used >= m.pressure.CriticalMB {
		log.Printf("[ERR] heap pressure critical (%.1fMB >= %.1fMB), aggressive cleanup", used, m.pressure.CriticalMB)
		m.aggressiveCleanup()
		return
	}
	if used >= m.pressure.WarnMB {
		log.Printf("[WARN] heap pressure elevated (%.1fMB >= %.1fMB)", used, m.pressure.WarnMB)
	}
}

// aggressiveCleanup sheds memory under critical pressure: drop all cached
// builds, force summarization everywhere, hint the collector.
func (m *Manager) aggressiveCleanup() {
	m.cache.Clear()
	for _, id := range m.store.ServerIDs() {
		rc := m.store.Peek(id)
		if rc == nil {
			continue
		}
		rc.mu.Lock()
		m.opt.SummarizeServerContext(rc)
		m.opt.IntelligentTrim(rc)
		rc.mu.Unlock()
	}
	if m.gcHint != nil {
		m.gcHint()
	}
}

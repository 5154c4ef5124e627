package mind

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Per-builder item caps.
const (
	maxFactsInContext    = 8
	maxMomentsInContext  = 5
	maxSnippetsInContext = 5
	maxGagsInContext     = 7
	maxHistoryInContext  = 10

	crossServerMomentCap  = 2
	crossServerSnippetLen = 100
)

// CrossServerView is the only window builders get into foreign servers:
// iteration over contexts that opted into sharing. Keeps the privacy
// invariant enforceable at the type level.
type CrossServerView interface {
	ForEachShared(fn func(rc *RichContext))
}

// baseBuilder accumulates labeled sections for one (server, user) pair.
// Builders select relevant items and bump their LRU metadata but never
// structurally mutate collections. Caller holds the context write lock.
type baseBuilder struct {
	rc       *RichContext
	serverID string
	userID   string
	now      time.Time
	sb       strings.Builder
}

func newBaseBuilder(rc *RichContext, serverID, userID string) baseBuilder {
	return baseBuilder{rc: rc, serverID: serverID, userID: userID, now: time.Now()}
}

// Build returns the accumulated string.
func (b *baseBuilder) Build() string {
	return b.sb.String()
}

// selectRelevant returns indices of up to max items, preferring the highest
// combined relevance+importance score and breaking ties by recency.
func selectRelevant(items []ContextItem, max int) []int {
	idx := make([]int, len(items))
	for i := range items {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		ia, ib := items[idx[a]], items[idx[b]]
		sa := ia.RelevanceScore + ia.ImportanceScore
		sb := ib.RelevanceScore + ib.ImportanceScore
		if sa != sb {
			return sa > sb
		}
		return ia.Timestamp.After(ib.Timestamp)
	})
	if len(idx) > max {
		idx = idx[:max]
	}
	return idx
}

// addItemSection appends a labeled header plus the selected items, touching
// each one.
func (b *baseBuilder) addItemSection(header string, items []ContextItem, max int) {
	if len(items) == 0 {
		return
	}
	b.sb.WriteString(header)
	b.sb.WriteString("\n")
	for _, i := range selectRelevant(items, max) {
		touch(&items[i], b.now)
		b.sb.WriteString("- ")
		b.sb.WriteString(items[i].Content)
		b.sb.WriteString("\n")
	}
}

// FactsBuilder — summarized knowledge about the server.
type FactsBuilder struct{ baseBuilder }

func (b *FactsBuilder) AddFacts() {
	b.addItemSection("KNOWN FACTS:", b.rc.summarizedFacts, maxFactsInContext)
}

// EmbarrassingMomentsBuilder — the server's hall of shame.
type EmbarrassingMomentsBuilder struct{ baseBuilder }

func (b *EmbarrassingMomentsBuilder) AddMoments() {
	b.addItemSection("EMBARRASSING MOMENTS:", b.rc.embarrassingMoments, maxMomentsInContext)
}

// CodeSnippetsBuilder — the target user's code history.
type CodeSnippetsBuilder struct{ baseBuilder }

func (b *CodeSnippetsBuilder) AddSnippets() {
	b.addItemSection("CODE HISTORY:", b.rc.codeSnippets[b.userID], maxSnippetsInContext)
}

// RunningGagsBuilder — server-wide recurring jokes.
type RunningGagsBuilder struct{ baseBuilder }

func (b *RunningGagsBuilder) AddGags() {
	b.addItemSection("RUNNING GAGS:", b.rc.runningGags, maxGagsInContext)
}

// BehaviorBuilder derives behavioral observations from the user's message
// history buffer: volume, question habit, code habit.
type BehaviorBuilder struct{ baseBuilder }

func (b *BehaviorBuilder) AddBehavior() {
	msgs := b.rc.conversations[b.userID]
	if len(msgs) == 0 {
		return
	}
	questions, code := 0, 0
	for _, m := range msgs {
		if strings.Contains(m.Content, "?") {
			questions++
		}
		if m.HasCode {
			code++
		}
	}
	b.sb.WriteString("BEHAVIOR:\n")
	fmt.Fprintf(&b.sb, "- %d recent messages on record\n", len(msgs))
	if questions*2 > len(msgs) {
		b.sb.WriteString("- asks questions constantly\n")
	} else if questions > 0 {
		fmt.Fprintf(&b.sb, "- asked %d questions recently\n", questions)
	}
	if code > 0 {
		fmt.Fprintf(&b.sb, "- posted code %d times\n", code)
	}
}

// SocialDynamicsBuilder wraps the social service output.
type SocialDynamicsBuilder struct {
	baseBuilder
	social *Social
}

func (b *SocialDynamicsBuilder) AddSocialDynamics() {
	if b.social == nil {
		return
	}
	block := b.social.BuildSocialDynamicsContext(b.rc, b.userID)
	if block != "" {
		b.sb.WriteString(block)
	}
}

// CrossServerBuilder pulls a bounded sample of the user's artifacts from
// other servers that opted into sharing. Never reads a server with the flag
// unset and never includes the requesting server's own data; the view only
// yields shared contexts, the exclude-self check is done here.
type CrossServerBuilder struct {
	baseBuilder
	view CrossServerView
}

func (b *CrossServerBuilder) AddCrossServer() {
	if b.view == nil {
		return
	}
	var parts []string
	b.view.ForEachShared(func(other *RichContext) {
		if other.ServerID == b.serverID {
			return
		}
		other.mu.RLock()
		defer other.mu.RUnlock()

		moments := 0
		for i := len(other.embarrassingMoments) - 1; i >= 0 && moments < crossServerMomentCap; i-- {
			it := other.embarrassingMoments[i]
			if it.UserID != b.userID {
				continue
			}
			parts = append(parts, fmt.Sprintf("- [%s] %s", other.ServerID, it.Content))
			moments++
		}
		if snippets := other.codeSnippets[b.userID]; len(snippets) > 0 {
			latest := snippets[0]
			for _, it := range snippets[1:] {
				if it.Timestamp.After(latest.Timestamp) {
					latest = it
				}
			}
			content := latest.Content
			if len(content) > crossServerSnippetLen {
				content = content[:crossServerSnippetLen] + "..."
			}
			parts = append(parts, fmt.Sprintf("- [%s] code: %s", other.ServerID, content))
		}
	})
	if len(parts) == 0 {
		return
	}
	b.sb.WriteString("CROSS-SERVER INTEL:\n")
	b.sb.WriteString(strings.Join(parts, "\n"))
	b.sb.WriteString("\n")
}

// CompositeBuilder sequences the legacy pipeline: facts, cross-server intel,
// running gags, social dynamics, under one umbrella header.
type CompositeBuilder struct {
	rc       *RichContext
	serverID string
	userID   string
	social   *Social
	view     CrossServerView
}

// Build concatenates the sub-builder outputs. An empty result means no
// section had content.
func (c *CompositeBuilder) Build() string {
	facts := FactsBuilder{newBaseBuilder(c.rc, c.serverID, c.userID)}
	facts.AddFacts()
	cross := CrossServerBuilder{baseBuilder: newBaseBuilder(c.rc, c.serverID, c.userID), view: c.view}
	cross.AddCrossServer()
	gags := RunningGagsBuilder{newBaseBuilder(c.rc, c.serverID, c.userID)}
	gags.AddGags()
	social := SocialDynamicsBuilder{baseBuilder: newBaseBuilder(c.rc, c.serverID, c.userID), social: c.social}
	social.AddSocialDynamics()

	sections := make([]string, 0, 4)
	for _, s := range []string{facts.Build(), cross.Build(), gags.Build(), social.Build()} {
		if s != "" {
			sections = append(sections, s)
		}
	}
	if len(sections) == 0 {
		return ""
	}
	return "=== DEEP CONTEXT FOR MAXIMUM ROASTING ===\n" + strings.Join(sections, "\n")
}

// TrimToChars truncates s to maxChars at a word boundary when possible,
// appending an ellipsis marker.
func TrimToChars(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	out := string(r[:maxChars])
	if lastSpace := strings.LastIndex(out, " "); lastSpace > maxChars/2 {
		out = out[:lastSpace]
	}
	return strings.TrimSpace(out) + "..."
}

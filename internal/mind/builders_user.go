package mind

import (
	"fmt"
	"strings"
	"time"
)

// ConversationBuilder renders the target user's recent message history plus
// code context. Max 10 messages inside a 24h window.
type ConversationBuilder struct{ baseBuilder }

func (b *ConversationBuilder) AddHistory() {
	msgs := b.rc.conversations[b.userID]
	if len(msgs) == 0 {
		return
	}
	cutoff := b.now.Add(-24 * time.Hour)
	recent := make([]ConversationMessage, 0, maxHistoryInContext)
	for i := len(msgs) - 1; i >= 0 && len(recent) < maxHistoryInContext; i-- {
		if msgs[i].At.Before(cutoff) {
			break
		}
		recent = append(recent, msgs[i])
	}
	if len(recent) == 0 {
		return
	}
	b.sb.WriteString("RECENT MESSAGES:\n")
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		name := m.Username
		if name == "" {
			name = m.UserID
		}
		fmt.Fprintf(&b.sb, "%s: %s\n", name, m.Content)
	}
}

func (b *ConversationBuilder) AddCodeContext() {
	b.addItemSection("CODE CONTEXT:", b.rc.codeSnippets[b.userID], maxSnippetsInContext)
}

// UserBuilder renders behavior observations, an optional personality
// description, and the user's worst moments (max 5).
type UserBuilder struct {
	baseBuilder
	personality string
}

func (b *UserBuilder) AddAll() {
	behavior := BehaviorBuilder{b.baseBuilder}
	behavior.AddBehavior()
	if s := behavior.Build(); s != "" {
		b.sb.WriteString(s)
	}
	if b.personality != "" {
		b.sb.WriteString("PERSONALITY: ")
		b.sb.WriteString(b.personality)
		b.sb.WriteString("\n")
	}
	var own []ContextItem
	ownIdx := make([]int, 0, len(b.rc.embarrassingMoments))
	for i, it := range b.rc.embarrassingMoments {
		if it.UserID == b.userID {
			own = append(own, it)
			ownIdx = append(ownIdx, i)
		}
	}
	if len(own) == 0 {
		return
	}
	b.sb.WriteString("THEIR WORST MOMENTS:\n")
	for _, sel := range selectRelevant(own, maxMomentsInContext) {
		touch(&b.rc.embarrassingMoments[ownIdx[sel]], b.now)
		b.sb.WriteString("- ")
		b.sb.WriteString(own[sel].Content)
		b.sb.WriteString("\n")
	}
}

// smartKeywords is the fixed relevance list for BuildSmartContext.
var smartKeywords = []string{
	"code", "error", "bug", "help", "problem", "issue",
	"javascript", "python", "react",
}

// extractKeywords returns lowercase significant words of the message that
// appear in the fixed relevance list.
func extractKeywords(message string) []string {
	lower := strings.ToLower(message)
	var out []string
	for _, kw := range smartKeywords {
		if strings.Contains(lower, kw) {
			out = append(out, kw)
		}
	}
	return out
}

package mind

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Interaction types accepted by UpdateSocialGraph.
const (
	InteractionMention = "mention"
	InteractionReply   = "reply"
	InteractionRoast   = "roast"
)

// Social maintains the per-user interaction graphs inside a RichContext.
// All methods assume the caller holds the context lock.
type Social struct {
	now func() time.Time
}

// NewSocial creates the social dynamics service.
func NewSocial() *Social {
	return &Social{now: time.Now}
}

// UpdateSocialGraph records one interaction from userID toward targetUserID.
// The generic interaction counter is always bumped; mention and roast types
// additionally bump their own counter ("reply" stays generic).
func (s *Social) UpdateSocialGraph(rc *RichContext, userID, targetUserID, interactionType string) {
	if userID == "" || targetUserID == "" {
		return
	}
	g := rc.socialGraph[userID]
	if g == nil {
		g = newSocialGraph()
		rc.socialGraph[userID] = g
	}
	g.Interactions[targetUserID]++
	switch interactionType {
	case InteractionMention:
		g.Mentions[targetUserID]++
	case InteractionRoast:
		g.Roasts[targetUserID]++
	}
	g.LastInteraction[targetUserID] = s.now()
}

// Interaction — one row of a top-interactions query.
type Interaction struct {
	TargetID string `json:"target_id"`
	Count    int    `json:"count"`
	Type     string `json:"type"`
}

// GetTopInteractions returns the user's interactions sorted descending by
// count, each tagged with a derived label.
func (s *Social) GetTopInteractions(rc *RichContext, userID string, limit int) []Interaction {
	g := rc.socialGraph[userID]
	if g == nil {
		return nil
	}
	if limit <= 0 {
		limit = 5
	}
	out := make([]Interaction, 0, len(g.Interactions))
	for target, count := range g.Interactions {
		label := "interaction"
		if g.Roasts[target] > g.Mentions[target] {
			label = "roast target"
		} else if g.Mentions[target] > 0 {
			label = "frequent mention"
		}
		out = append(out, Interaction{TargetID: target, Count: count, Type: label})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].TargetID < out[b].TargetID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GetRecentInteractions formats interactions within the window where the user
// actually mentioned or roasted the target.
func (s *Social) GetRecentInteractions(rc *RichContext, userID string, hoursAgo int) []string {
	g := rc.socialGraph[userID]
	if g == nil {
		return nil
	}
	if hoursAgo <= 0 {
		hoursAgo = 24
	}
	cutoff := s.now().Add(-time.Duration(hoursAgo) * time.Hour)
	targets := make([]string, 0, len(g.LastInteraction))
	for target, last := range g.LastInteraction {
		if last.Before(cutoff) {
			continue
		}
		if g.Mentions[target] == 0 && g.Roasts[target] == 0 {
			continue
		}
		targets = append(targets, target)
	}
	sort.Strings(targets)
	out := make([]string, 0, len(targets))
	for _, target := range targets {
		out = append(out, fmt.Sprintf("recently active with %s (%d mentions, %d roasts)",
			target, g.Mentions[target], g.Roasts[target]))
	}
	return out
}

// CalculateSocialGraphSize estimates the storage bytes of every graph in the
// context by serializing them. Used by the storage-analytics snapshot.
func (s *Social) CalculateSocialGraphSize(rc *RichContext) int {
	total := 0
	for userID, g := range rc.socialGraph {
		b, err := json.Marshal(g)
		if err != nil {
			continue
		}
		total += len(userID) + len(b)
	}
	return total
}

// BuildSocialDynamicsContext produces the text block for prompt building, or
// an empty string when the user has no graph activity.
func (s *Social) BuildSocialDynamicsContext(rc *RichContext, userID string) string {
	top := s.GetTopInteractions(rc, userID, 5)
	recent := s.GetRecentInteractions(rc, userID, 24)
	if len(top) == 0 && len(recent) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("SOCIAL DYNAMICS:\n")
	for _, in := range top {
		fmt.Fprintf(&b, "- %s: %d interactions (%s)\n", in.TargetID, in.Count, in.Type)
	}
	for _, line := range recent {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

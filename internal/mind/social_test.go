package mind

import (
	"strings"
	"testing"
	"time"
)

func TestUpdateSocialGraphCounters(t *testing.T) {
	s := NewSocial()
	rc := newRichContext("srv")

	s.UpdateSocialGraph(rc, "u", "v", InteractionMention)
	s.UpdateSocialGraph(rc, "u", "v", InteractionReply)
	s.UpdateSocialGraph(rc, "u", "v", InteractionRoast)

	g := rc.socialGraph["u"]
	if g == nil {
		t.Fatal("graph not created")
	}
	if g.Interactions["v"] != 3 {
		t.Fatalf("interactions = %d, want 3", g.Interactions["v"])
	}
	if g.Mentions["v"] != 1 || g.Roasts["v"] != 1 {
		t.Fatalf("mentions = %d roasts = %d", g.Mentions["v"], g.Roasts["v"])
	}
	if g.LastInteraction["v"].IsZero() {
		t.Fatal("last interaction not stamped")
	}
}

func TestUpdateSocialGraphIgnoresEmptyIDs(t *testing.T) {
	s := NewSocial()
	rc := newRichContext("srv")
	s.UpdateSocialGraph(rc, "", "v", InteractionMention)
	s.UpdateSocialGraph(rc, "u", "", InteractionMention)
	if len(rc.socialGraph) != 0 {
		t.Fatal("empty ids created graph entries")
	}
}

func TestGetTopInteractionsLabelsAndOrder(t *testing.T) {
	s := NewSocial()
	rc := newRichContext("srv")
	for i := 0; i < 5; i++ {
		s.UpdateSocialGraph(rc, "u", "rival", InteractionRoast)
	}
	for i := 0; i < 3; i++ {
		s.UpdateSocialGraph(rc, "u", "friend", InteractionMention)
	}
	s.UpdateSocialGraph(rc, "u", "stranger", InteractionReply)

	top := s.GetTopInteractions(rc, "u", 10)
	if len(top) != 3 {
		t.Fatalf("got %d interactions", len(top))
	}
	if top[0].TargetID != "rival" || top[0].Type != "roast target" {
		t.Fatalf("top = %+v", top[0])
	}
	if top[1].TargetID != "friend" || top[1].Type != "frequent mention" {
		t.Fatalf("second = %+v", top[1])
	}
	if top[2].Type != "interaction" {
		t.Fatalf("third = %+v", top[2])
	}
}

func TestGetTopInteractionsLimit(t *testing.T) {
	s := NewSocial()
	rc := newRichContext("srv")
	for _, target := range []string{"a", "b", "c", "d"} {
		s.UpdateSocialGraph(rc, "u", target, InteractionMention)
	}
	if got := s.GetTopInteractions(rc, "u", 2); len(got) != 2 {
		t.Fatalf("limit ignored: %d results", len(got))
	}
	if got := s.GetTopInteractions(rc, "nobody", 2); got != nil {
		t.Fatal("unknown user should yield nil")
	}
}

func TestGetRecentInteractionsWindow(t *testing.T) {
	s := NewSocial()
	rc := newRichContext("srv")
	s.UpdateSocialGraph(rc, "u", "fresh", InteractionMention)
	s.UpdateSocialGraph(rc, "u", "old", InteractionRoast)
	rc.socialGraph["u"].LastInteraction["old"] = time.Now().Add(-48 * time.Hour)

	lines := s.GetRecentInteractions(rc, "u", 24)
	if len(lines) != 1 || !strings.Contains(lines[0], "fresh") {
		t.Fatalf("lines = %v", lines)
	}
}

func TestBuildSocialDynamicsContext(t *testing.T) {
	s := NewSocial()
	rc := newRichContext("srv")
	if out := s.BuildSocialDynamicsContext(rc, "u"); out != "" {
		t.Fatalf("empty graph produced %q", out)
	}

	s.UpdateSocialGraph(rc, "u", "v", InteractionRoast)
	out := s.BuildSocialDynamicsContext(rc, "u")
	if !strings.HasPrefix(out, "SOCIAL DYNAMICS:") {
		t.Fatalf("missing header: %q", out)
	}
	if !strings.Contains(out, "v") {
		t.Fatalf("target missing: %q", out)
	}
}

func TestCalculateSocialGraphSize(t *testing.T) {
	s := NewSocial()
	rc := newRichContext("srv")
	if n := s.CalculateSocialGraphSize(rc); n != 0 {
		t.Fatalf("empty graph size = %d", n)
	}
	s.UpdateSocialGraph(rc, "u", "v", InteractionMention)
	if n := s.CalculateSocialGraphSize(rc); n == 0 {
		t.Fatal("populated graph reported zero bytes")
	}
}

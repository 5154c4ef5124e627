package mind

import (
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Mood — one of five bot moods driving roast probability.
type Mood string

const (
	MoodSleepy            Mood = "sleepy"
	MoodCaffeinated       Mood = "caffeinated"
	MoodChaotic           Mood = "chaotic"
	MoodReversePsychology Mood = "reverse_psychology"
	MoodBloodthirsty      Mood = "bloodthirsty"
)

var allMoods = [5]Mood{MoodSleepy, MoodCaffeinated, MoodChaotic, MoodReversePsychology, MoodBloodthirsty}

// RoastConfig — tunable knobs of the decision engine.
type RoastConfig struct {
	BaseChance      float64 // starting point, drifts hourly within [0.2, 0.7]
	MaxChance       float64 // final clamp, default 0.9
	EnforceCooldown bool
}

// DefaultRoastConfig returns sane defaults.
func DefaultRoastConfig() RoastConfig {
	return RoastConfig{
		BaseChance:      0.4,
		MaxChance:       0.9,
		EnforceCooldown: true,
	}
}

// UserQuestionStats — per-user consecutive unanswered-question streak.
type UserQuestionStats struct {
	Count       int  `json:"count"`
	LastRoasted bool `json:"last_roasted"`
}

type serverRoastHistory struct {
	RecentCount   int
	LastRoastTime time.Time
}

type chaosState struct {
	Active     bool
	EndTime    time.Time
	Multiplier float64
}

// RoastingStateSnapshot — read-only view for admin commands and stats.
type RoastingStateSnapshot struct {
	BaseChance      float64   `json:"base_chance"`
	Mood            Mood      `json:"mood"`
	ChaosActive     bool      `json:"chaos_active"`
	ChaosMultiplier float64   `json:"chaos_multiplier"`
	ChaosEndsAt     time.Time `json:"chaos_ends_at,omitempty"`
	TrackedUsers    int       `json:"tracked_users"`
	TrackedServers  int       `json:"tracked_servers"`
}

// RoastEngine decides, per message, whether the bot roasts the author.
// Constructed once at startup and passed by reference; never a package-level
// singleton. rng and now are injectable for deterministic tests.
type RoastEngine struct {
	mu  sync.Mutex
	cfg RoastConfig

	baseChance     float64
	lastDrift      time.Time
	mood           Mood
	nextMoodChange time.Time
	moodBonusCache map[int]float64

	userStats     map[string]*UserQuestionStats
	serverHistory map[string]*serverRoastHistory
	roastDebt     map[string]float64
	chaos         chaosState

	decay *DecayQueue
	rng   func() float64
	now   func() time.Time
}

// NewRoastEngine creates the engine and its decay queue.
func NewRoastEngine(cfg RoastConfig) *RoastEngine {
	if cfg.MaxChance <= 0 {
		cfg.MaxChance = 0.9
	}
	if cfg.BaseChance <= 0 {
		cfg.BaseChance = 0.4
	}
	e := &RoastEngine{
		cfg:            cfg,
		baseChance:     cfg.BaseChance,
		mood:           MoodCaffeinated,
		moodBonusCache: make(map[int]float64),
		userStats:      make(map[string]*UserQuestionStats),
		serverHistory:  make(map[string]*serverRoastHistory),
		roastDebt:      make(map[string]float64),
		rng:            rand.Float64,
		now:            time.Now,
	}
	e.decay = NewDecayQueue(e.decayServerRoast)
	e.nextMoodChange = e.now().Add(e.moodLifetime())
	e.lastDrift = e.now()
	return e
}

// Stop clears the decay queue. Call on shutdown.
func (e *RoastEngine) Stop() {
	e.decay.Stop()
}

func (e *RoastEngine) moodLifetime() time.Duration {
	return 30*time.Minute + time.Duration(e.rng()*90*float64(time.Minute))
}

// decayServerRoast is the delay-queue callback: one roast ages out of the
// server's recent counter.
func (e *RoastEngine) decayServerRoast(serverID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h := e.serverHistory[serverID]; h != nil && h.RecentCount > 0 {
		h.RecentCount--
	}
}

// ShouldRoast runs the full decision pipeline for one message.
func (e *RoastEngine) ShouldRoast(userID, message, serverID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.rotateMoodLocked(now)
	e.driftBaseChanceLocked(now)
	e.checkChaosLocked(now)

	stats := e.userStats[userID]
	if stats == nil {
		stats = &UserQuestionStats{}
		e.userStats[userID] = stats
	}

	// 1. Chaos override.
	if e.chaos.Active && e.rng() < 0.3 {
		decision := e.rng() < 0.7
		e.applyDecisionLocked(stats, userID, serverID, decision, now)
		return decision
	}

	// 2. Cooldown. 15% chance to break it anyway.
	if stats.LastRoasted && e.cfg.EnforceCooldown {
		if e.rng() >= 0.15 {
			stats.Count = 0
			return false
		}
		log.Printf("[ROAST] cooldown broken user=%s server=%s", userID, serverID)
	}

	// 3. Mercy kill: long enough streak forces a roast.
	if stats.Count >= 6 && e.rng() < 0.2 {
		e.applyDecisionLocked(stats, userID, serverID, true, now)
		return true
	}

	// 4. Mood-specific override: only reverse psychology defines one.
	if e.mood == MoodReversePsychology && stats.Count > 5 && e.rng() < 0.4 {
		e.applyDecisionLocked(stats, userID, serverID, false, now)
		return false
	}

	// 5. Standard probability.
	chance := e.baseChance +
		e.consecutiveBonusLocked(stats.Count) +
		ComplexityBonus(message) +
		TimeOfDayBonus(now) +
		e.moodBonusLocked(stats.Count) +
		e.debtBonusLocked(userID) +
		e.serverInfluenceLocked(serverID, now)
	if e.chaos.Active {
		chance *= e.chaos.Multiplier
	}
	if chance < 0 {
		chance = 0
	}
	if chance > e.cfg.MaxChance {
		chance = e.cfg.MaxChance
	}

	decision := e.rng() < chance
	e.applyDecisionLocked(stats, userID, serverID, decision, now)
	return decision
}

// applyDecisionLocked runs the always-executed post-decision bookkeeping.
func (e *RoastEngine) applyDecisionLocked(stats *UserQuestionStats, userID, serverID string, roasted bool, now time.Time) {
	if roasted {
		stats.Count = 0
		stats.LastRoasted = true
		h := e.serverHistory[serverID]
		if h == nil {
			h = &serverRoastHistory{}
			e.serverHistory[serverID] = h
		}
		h.RecentCount++
		h.LastRoastTime = now
		e.decay.Schedule(serverID, now.Add(time.Hour))
		delete(e.roastDebt, userID)
		return
	}
	stats.Count++
	stats.LastRoasted = false
}

// ConsecutiveBonusBase is the deterministic part of the streak modifier:
// tiered rate per question. Monotonic in count.
func ConsecutiveBonusBase(count int) float64 {
	switch {
	case count <= 2:
		return 0.10 * float64(count)
	case count <= 5:
		return 0.25 * float64(count)
	default:
		return 0.35 * float64(count)
	}
}

func (e *RoastEngine) consecutiveBonusLocked(count int) float64 {
	base := ConsecutiveBonusBase(count)
	rate := 0.10
	if count > 5 {
		rate = 0.35
	} else if count > 2 {
		rate = 0.25
	}
	bonus := base + (e.rng()-0.5)*rate
	if count > 5 && e.rng() < 0.1 {
		bonus += e.rng() * 0.5 // bonus bomb
	}
	return bonus
}

var programmingKeywords = []string{
	"function", "variable", "array", "loop", "class", "import",
	"async", "await", "return", "const", "struct", "pointer",
}

var technicalJargon = []string{
	"algorithm", "recursion", "kubernetes", "microservice", "compiler",
	"concurrency", "mutex", "refactor", "dependency", "regression",
}

// ComplexityBonus scores a message's "roastability": length, code blocks,
// programming vocabulary, questions. Capped at 0.5.
func ComplexityBonus(message string) float64 {
	bonus := float64(len(message)) / 1000
	if bonus > 0.3 {
		bonus = 0.3
	}
	lower := strings.ToLower(message)
	if strings.Contains(message, "```") {
		bonus += 0.2
	}
	for _, kw := range programmingKeywords {
		if strings.Contains(lower, kw) {
			bonus += 0.15
			break
		}
	}
	for _, j := range technicalJargon {
		if strings.Contains(lower, j) {
			bonus += 0.1
			break
		}
	}
	if q := strings.Count(message, "?"); q > 0 {
		bonus += 0.05
		if q > 1 {
			bonus += 0.10
		}
	}
	if bonus > 0.5 {
		bonus = 0.5
	}
	return bonus
}

// TimeOfDayBonus rewards late-night activity and penalizes early mornings.
func TimeOfDayBonus(now time.Time) float64 {
	switch h := now.Hour(); {
	case h >= 23 || h < 3:
		return 0.3
	case h >= 5 && h < 8:
		return -0.1
	case h >= 19 && h < 23:
		return 0.2
	case h >= 13 && h < 17:
		return 0.1
	default:
		return 0
	}
}

// moodBonusLocked computes the mood modifier; cached per streak except for
// the chaotic mood, which re-rolls every time.
func (e *RoastEngine) moodBonusLocked(count int) float64 {
	if e.mood == MoodChaotic {
		return (e.rng() - 0.5) * 0.6
	}
	if v, ok := e.moodBonusCache[count]; ok {
		return v
	}
	var v float64
	switch e.mood {
	case MoodSleepy:
		v = -0.2 + 0.05*float64(count)
	case MoodCaffeinated:
		v = 0.1 + 0.1*float64(count)
	case MoodReversePsychology:
		if count > 3 {
			v = -0.4
		} else {
			v = 0.2
		}
	case MoodBloodthirsty:
		v = 0.2 + 0.15*float64(count)
	}
	e.moodBonusCache[count] = v
	return v
}

// debtBonusLocked grows the user's roast debt and converts it to a bonus.
func (e *RoastEngine) debtBonusLocked(userID string) float64 {
	e.roastDebt[userID] += 0.05
	debt := e.roastDebt[userID]
	if debt > 1.0 {
		bonus := debt * 0.3
		if bonus > 0.7 {
			bonus = 0.7
		}
		return bonus
	}
	return debt * 0.1
}

// serverInfluenceLocked: hot servers push further roasts, long-cold servers
// slowly build appetite.
func (e *RoastEngine) serverInfluenceLocked(serverID string, now time.Time) float64 {
	h := e.serverHistory[serverID]
	if h == nil {
		return 0
	}
	if h.RecentCount >= 2 {
		return 0.2
	}
	if !h.LastRoastTime.IsZero() {
		if cold := now.Sub(h.LastRoastTime); cold > 6*time.Hour {
			bonus := 0.02 * cold.Hours()
			if bonus > 0.3 {
				bonus = 0.3
			}
			return bonus
		}
	}
	return 0
}

func (e *RoastEngine) rotateMoodLocked(now time.Time) {
	if now.Before(e.nextMoodChange) {
		return
	}
	e.setMoodLocked(allMoods[int(e.rng()*5)%5], now, "scheduled rotation")
}

func (e *RoastEngine) setMoodLocked(m Mood, now time.Time, reason string) {
	e.mood = m
	e.moodBonusCache = make(map[int]float64)
	e.nextMoodChange = now.Add(e.moodLifetime())
	log.Printf("[ROAST] mood=%s reason=%q", m, reason)
}

// driftBaseChanceLocked nudges baseChance once per hour, clamped to [0.2, 0.7].
func (e *RoastEngine) driftBaseChanceLocked(now time.Time) {
	if now.Sub(e.lastDrift) < time.Hour {
		return
	}
	e.lastDrift = now
	e.baseChance += (e.rng() - 0.5) * 0.1
	if e.baseChance < 0.2 {
		e.baseChance = 0.2
	}
	if e.baseChance > 0.7 {
		e.baseChance = 0.7
	}
}

// checkChaosLocked expires an active chaos window and rolls the 5% per-
// evaluation trigger when inactive.
func (e *RoastEngine) checkChaosLocked(now time.Time) {
	if e.chaos.Active && now.After(e.chaos.EndTime) {
		e.chaos = chaosState{}
		log.Printf("[ROAST] chaos mode expired")
	}
	if e.chaos.Active {
		return
	}
	if e.rng() < 0.05 {
		e.chaos = chaosState{
			Active:     true,
			EndTime:    now.Add(5*time.Minute + time.Duration(e.rng()*25*float64(time.Minute))),
			Multiplier: 0.5 + e.rng()*2.0,
		}
		log.Printf("[ROAST] chaos mode on multiplier=%.2f until=%s",
			e.chaos.Multiplier, e.chaos.EndTime.Format(time.RFC3339))
	}
}

// CheckForChaosEvent runs the chaos trigger/expiry outside a decision (called
// by the maintenance schedule). Returns whether chaos is active afterwards.
func (e *RoastEngine) CheckForChaosEvent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkChaosLocked(e.now())
	return e.chaos.Active
}

// TriggerMood forces a mood change (admin command).
func (e *RoastEngine) TriggerMood(reason string) Mood {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setMoodLocked(allMoods[int(e.rng()*5)%5], e.now(), reason)
	return e.mood
}

// State returns a snapshot for stats reporting.
func (e *RoastEngine) State() RoastingStateSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return RoastingStateSnapshot{
		BaseChance:      e.baseChance,
		Mood:            e.mood,
		ChaosActive:     e.chaos.Active,
		ChaosMultiplier: e.chaos.Multiplier,
		ChaosEndsAt:     e.chaos.EndTime,
		TrackedUsers:    len(e.userStats),
		TrackedServers:  len(e.serverHistory),
	}
}

// UserRoastStats returns a copy of the user's streak stats.
func (e *RoastEngine) UserRoastStats(userID string) UserQuestionStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s := e.userStats[userID]; s != nil {
		return *s
	}
	return UserQuestionStats{}
}

// ClearUserStats wipes a user's streak and debt (admin command).
func (e *RoastEngine) ClearUserStats(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.userStats, userID)
	delete(e.roastDebt, userID)
}

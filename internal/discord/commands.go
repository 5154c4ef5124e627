package discord

import (
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// handleCommand dispatches prefix commands. Admin-only ones check the
// author's guild permissions.
func (b *Bot) handleCommand(s *discordgo.Session, m *discordgo.MessageCreate) {
	fields := strings.Fields(strings.TrimPrefix(m.Content, b.cfg.Discord.Prefix))
	if len(fields) == 0 {
		return
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "roaststats":
		stats := b.roast.UserRoastStats(m.Author.ID)
		state := b.roast.State()
		b.send(s, m.ChannelID, fmt.Sprintf(
			"streak=%d lastRoasted=%v | mood=%s base=%.2f chaos=%v",
			stats.Count, stats.LastRoasted, state.Mood, state.BaseChance, state.ChaosActive))

	case "clearstats":
		if !b.isAdmin(s, m) {
			return
		}
		b.roast.ClearUserStats(m.Author.ID)
		b.send(s, m.ChannelID, "stats cleared")

	case "mood":
		if !b.isAdmin(s, m) {
			return
		}
		mood := b.roast.TriggerMood("admin command")
		b.send(s, m.ChannelID, "mood is now "+string(mood))

	case "crossserver":
		if !b.isAdmin(s, m) || len(args) == 0 {
			return
		}
		enabled := args[0] == "on"
		b.mind.EnableCrossServerContext(m.GuildID, enabled)
		b.send(s, m.ChannelID, fmt.Sprintf("cross-server sharing: %v", enabled))

	case "describe":
		res := b.personality.Set(m.Author.ID, strings.Join(args, " "))
		b.send(s, m.ChannelID, res.Message)

	case "dedupe":
		if !b.isAdmin(s, m) {
			return
		}
		removed := b.mind.Deduplicate(m.GuildID)
		b.send(s, m.ChannelID, fmt.Sprintf("removed %d duplicates", removed))

	case "memstats":
		stats := b.mind.GetMemoryStats()
		b.send(s, m.ChannelID, fmt.Sprintf(
			"servers=%d items=%d size=%d cached=%d",
			stats.Servers, stats.TotalItems, stats.TotalSize, stats.CachedBuilds))
	}
}

func (b *Bot) isAdmin(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	perms, err := s.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

func (b *Bot) send(s *discordgo.Session, channelID, content string) {
	if _, err := s.ChannelMessageSend(channelID, content); err != nil {
		log.Printf("[ERR] send message: %v", err)
	}
}

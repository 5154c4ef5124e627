package discord

import (
	"context"
	"fmt"
	"log"
	"strings"

	"roastbot/internal/ai"
	"roastbot/internal/config"
	"roastbot/internal/mind"
	"roastbot/internal/personality"

	"github.com/bwmarrin/discordgo"
)

// Bot wires the Discord gateway to the mind manager, roast engine and LLM
// provider. Thin glue: everything interesting happens in internal/mind.
type Bot struct {
	dg          *discordgo.Session
	cfg         *config.Config
	mind        *mind.Manager
	roast       *mind.RoastEngine
	provider    ai.Provider
	personality *personality.Store
}

// NewBot creates the bot around already-constructed services.
func NewBot(cfg *config.Config, manager *mind.Manager, roast *mind.RoastEngine, provider ai.Provider, pstore *personality.Store) *Bot {
	return &Bot{
		cfg:         cfg,
		mind:        manager,
		roast:       roast,
		provider:    provider,
		personality: pstore,
	}
}

// Run opens the session and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	b.dg = dg
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	log.Println("[INFO] shutdown signal received, closing session")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("[INFO] logged in as %s#%s", r.User.Username, r.User.Discriminator)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	if strings.HasPrefix(m.Content, b.cfg.Discord.Prefix) {
		b.handleCommand(s, m)
		return
	}

	b.ingest(s, m)

	mentioned := false
	for _, u := range m.Mentions {
		if u.ID == s.State.User.ID {
			mentioned = true
			break
		}
	}
	if mentioned {
		go b.reply(s, m)
	}
}

// ingest records the message's artifacts into the server context.
func (b *Bot) ingest(s *discordgo.Session, m *discordgo.MessageCreate) {
	serverID, userID := m.GuildID, m.Author.ID
	hasCode := strings.Contains(m.Content, "```")

	b.mind.RecordMessage(serverID, mind.ConversationMessage{
		UserID:    userID,
		Username:  m.Author.Username,
		Content:   m.Content,
		ChannelID: m.ChannelID,
		HasCode:   hasCode,
	})
	if hasCode {
		b.mind.AddCodeSnippet(serverID, userID, m.Content)
	}
	if looksEmbarrassing(m.Content) {
		b.mind.AddEmbarrassingMoment(serverID, userID, m.Author.Username+": "+m.Content)
	}
	if looksLikeGag(m.Content) {
		b.mind.AddRunningGag(serverID, userID, m.Content)
	}

	for _, u := range m.Mentions {
		if u.ID == s.State.User.ID || u.ID == userID {
			continue
		}
		b.mind.UpdateSocialGraph(serverID, userID, u.ID, mind.InteractionMention)
	}
	if ref := m.ReferencedMessage; ref != nil && ref.Author != nil && ref.Author.ID != userID {
		b.mind.UpdateSocialGraph(serverID, userID, ref.Author.ID, mind.InteractionReply)
	}
}

// reply builds the context prompt, consults the roast engine and sends the
// LLM answer.
func (b *Bot) reply(s *discordgo.Session, m *discordgo.MessageCreate) {
	serverID, userID := m.GuildID, m.Author.ID

	roasting := b.roast.ShouldRoast(userID, m.Content, serverID)
	if roasting {
		b.mind.MarkRoasted(serverID, userID)
		b.mind.UpdateSocialGraph(serverID, s.State.User.ID, userID, mind.InteractionRoast)
	}

	context := b.mind.BuildSuperContext(serverID, userID, 6000)
	system := buildSystemPrompt(roasting, context)

	out, err := b.provider.Generate([]ai.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: m.Author.Username + ": " + m.Content},
	})
	if err != nil {
		log.Printf("[ERR] generate reply server=%s user=%s: %v", serverID, userID, err)
		return
	}
	if _, err := s.ChannelMessageSendReply(m.ChannelID, out, m.Reference()); err != nil {
		log.Printf("[ERR] send reply: %v", err)
	}
}

func buildSystemPrompt(roasting bool, context string) string {
	var sb strings.Builder
	sb.WriteString("You are a sharp-tongued Discord regular. Keep replies short and conversational.\n")
	if roasting {
		sb.WriteString("This turn: roast the user. Be clever and cutting, never slurs or genuine cruelty.\n")
	} else {
		sb.WriteString("This turn: answer normally, light sarcasm allowed.\n")
	}
	if context != "" {
		sb.WriteString("\n")
		sb.WriteString(context)
	}
	return sb.String()
}

var embarrassingMarkers = []string{
	"oops", "my bad", "accidentally", "i forgot", "broke prod",
	"pushed to main", "deleted the", "wrong channel",
}

func looksEmbarrassing(content string) bool {
	lower := strings.ToLower(content)
	for _, marker := range embarrassingMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func looksLikeGag(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "again") &&
		(strings.Contains(lower, "lol") || strings.Contains(lower, "lmao") || strings.Contains(lower, "😂"))
}

package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/zeroy-labs/govbot/src/bot/components/conversation"
	"github.com/zeroy-labs/govbot/src/bot/components/directory"
	"github.com/zeroy-labs/govbot/src/bot/components/notify"
	"github.com/zeroy-labs/govbot/src/bot/components/subscription"
)

// Proposals shown by the recent-proposals command.
const listedProposals = 5

type Config struct {
	Token            string
	MaxSubscriptions int
	Subs             *subscription.Service
	Directory        *directory.Directory
	Renderer         *notify.Renderer
}

// Bot is the Discord surface: prefix commands, the subscribe conversation,
// and DM delivery of notifications (it implements notify.Sender).
type Bot struct {
	session       *discordgo.Session
	subs          *subscription.Service
	directory     *directory.Directory
	renderer      *notify.Renderer
	conversations *conversation.Manager
}

func New(cfg Config) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}

	b := &Bot{
		session:       dg,
		subs:          cfg.Subs,
		directory:     cfg.Directory,
		renderer:      cfg.Renderer,
		conversations: conversation.NewManager(cfg.Directory, cfg.Subs, cfg.MaxSubscriptions),
	}

	dg.AddHandler(b.handleReady)
	dg.AddHandler(b.handleMessageCreate)

	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return b, nil
}

func (b *Bot) Start() error {
	return b.session.Open()
}

func (b *Bot) Stop() error {
	return b.session.Close()
}

// Send delivers one notification to one user over DM. Implements
// notify.Sender; a failure here (e.g. DMs disabled) stays with this
// recipient.
func (b *Bot) Send(recipientID, text string) error {
	ch, err := b.session.UserChannelCreate(recipientID)
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	_, err = b.session.ChannelMessageSend(ch.ID, text)
	return err
}

func (b *Bot) handleReady(s *discordgo.Session, event *discordgo.Ready) {
	log.Printf("Discord bot logged in as %s", event.User.Username)
}

func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	ctx := context.Background()
	content := strings.TrimSpace(m.Content)
	userID := m.Author.ID

	cmd, arg := splitCommand(content)
	switch cmd {
	case "!start", "!help":
		b.reply(m.ChannelID, helpText)
	case "!subscribe":
		b.reply(m.ChannelID, b.conversations.Begin(ctx, userID))
	case "!unsubscribe":
		b.reply(m.ChannelID, b.handleUnsubscribe(ctx, userID, arg))
	case "!subscriptions":
		b.reply(m.ChannelID, b.handleSubscriptions(ctx, userID))
	case "!proposals":
		b.handleProposals(ctx, m.ChannelID, userID)
	default:
		if b.conversations.Active(userID) {
			b.reply(m.ChannelID, b.conversations.Handle(ctx, userID, content))
		}
	}
}

func (b *Bot) handleUnsubscribe(ctx context.Context, userID, slug string) string {
	if slug == "" {
		subs, err := b.subs.Subscriptions(ctx, userID)
		if err != nil || len(subs) == 0 {
			return "You're not subscribed to any DAOs."
		}
		return "Usage: !unsubscribe <slug>\nYour subscriptions:\n" + strings.Join(subs, "\n")
	}

	err := b.subs.Unsubscribe(ctx, userID, slug)
	switch {
	case err == nil:
		return fmt.Sprintf("You've successfully unsubscribed from %s.", slug)
	case errors.Is(err, subscription.ErrNotSubscribed):
		return fmt.Sprintf("You weren't subscribed to %s.", slug)
	default:
		log.Printf("bot: unsubscribe %s for %s failed: %v", slug, userID, err)
		return "Failed to unsubscribe. Please try again later."
	}
}

func (b *Bot) handleSubscriptions(ctx context.Context, userID string) string {
	subs, err := b.subs.Subscriptions(ctx, userID)
	if err != nil {
		log.Printf("bot: list subscriptions for %s failed: %v", userID, err)
		return "Failed to load your subscriptions. Please try again later."
	}
	if len(subs) == 0 {
		return "You're not subscribed to any DAOs."
	}
	return "Your subscriptions:\n" + strings.Join(subs, "\n")
}

func (b *Bot) handleProposals(ctx context.Context, channelID, userID string) {
	subs, err := b.subs.Subscriptions(ctx, userID)
	if err != nil || len(subs) == 0 {
		b.reply(channelID, "You're not subscribed to any DAOs. Use !subscribe to add a DAO.")
		return
	}

	for _, slug := range subs {
		org, err := b.directory.ResolveOrganization(ctx, slug)
		if err != nil {
			b.reply(channelID, fmt.Sprintf("Couldn't fetch information for %s.", slug))
			continue
		}

		proposals, err := b.directory.RecentProposals(ctx, org.ID, listedProposals)
		if err != nil || len(proposals) == 0 {
			b.reply(channelID, fmt.Sprintf("No recent proposals found for %s.", org.Name))
			continue
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Recent proposals for %s:\n\n", org.Name)
		for _, p := range proposals {
			sb.WriteString(b.renderer.Proposal(p, org.Slug))
			sb.WriteString("\n\n")
		}
		b.reply(channelID, sb.String())
	}
}

func (b *Bot) reply(channelID, text string) {
	if text == "" {
		return
	}
	if _, err := b.session.ChannelMessageSend(channelID, text); err != nil {
		log.Printf("bot: send to channel %s failed: %v", channelID, err)
	}
}

func splitCommand(content string) (cmd, arg string) {
	if !strings.HasPrefix(content, "!") {
		return "", content
	}
	parts := strings.SplitN(content, " ", 2)
	cmd = strings.ToLower(parts[0])
	if len(parts) == 2 {
		arg = strings.ToLower(strings.TrimSpace(parts[1]))
	}
	return cmd, arg
}

const helpText = `Available commands:
!subscribe - Subscribe to a DAO
!unsubscribe <slug> - Unsubscribe from a DAO
!subscriptions - View your current subscriptions
!proposals - Check recent proposals for your DAOs
!help - Show this help message`

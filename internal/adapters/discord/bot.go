package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dkeye/TalkBot/internal/app/orch"
	"github.com/rs/zerolog/log"
)

const handlerTimeout = 15 * time.Second

type Options struct {
	StatusText   string
	SyncCommands bool
}

// Bot routes Discord events into the orchestrator. Handlers run one at
// a time because the session is opened with SyncEvents.
type Bot struct {
	Session *discordgo.Session
	Orch    *orch.Orchestrator
	opts    Options

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession builds a discordgo session with the intents the bot needs.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.SyncEvents = true
	s.StateEnabled = true
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates | discordgo.IntentsGuildMembers
	return s, nil
}

func NewBot(s *discordgo.Session, o *orch.Orchestrator, opts Options) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{Session: s, Orch: o, opts: opts, ctx: ctx, cancel: cancel}
	s.AddHandler(b.onReady)
	s.AddHandler(b.onVoiceStateUpdate)
	s.AddHandler(b.onChannelDelete)
	s.AddHandler(b.onInteraction)
	return b
}

func (b *Bot) Open() error {
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	log.Info().Str("module", "discord").Msg("session open")
	return nil
}

// Close drops the gateway connection. The orchestrator is closed by the
// caller.
func (b *Bot) Close() error {
	b.cancel()
	return b.Session.Close()
}

func (b *Bot) eventCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.ctx, handlerTimeout)
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Info().Str("module", "discord").Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("ready")
	if b.opts.StatusText != "" {
		if err := s.UpdateGameStatus(0, b.opts.StatusText); err != nil {
			log.Error().Err(err).Str("module", "discord").Msg("set status")
		}
	}
	if !b.opts.SyncCommands {
		return
	}
	synced, err := s.ApplicationCommandBulkOverwrite(r.User.ID, "", commands())
	if err != nil {
		log.Error().Err(err).Str("module", "discord").Msg("sync commands")
		return
	}
	log.Info().Str("module", "discord").Int("commands", len(synced)).Msg("commands synced")
}

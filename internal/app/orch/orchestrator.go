package orch

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/TalkBot/internal/app"
	"github.com/dkeye/TalkBot/internal/core"
	"github.com/dkeye/TalkBot/internal/domain"
	"github.com/dkeye/TalkBot/internal/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

const (
	DefaultGracePeriod = 60 * time.Second
	platformTimeout    = 10 * time.Second
)

type Options struct {
	GracePeriod   time.Duration
	GateOpenTalks bool
	Clock         app.Clock
	Events        core.EventSink
	Metrics       *telemetry.Metrics
}

// Orchestrator is the talk lifecycle supervisor. It reacts to gateway
// events, consults the Authorizer and drives the gateway.
type Orchestrator struct {
	Registry   *core.Registry
	Settings   *app.GuildSettings
	Auth       *app.Authorizer
	Reaper     *app.Reaper
	Challenges *app.Challenges
	Gateway    core.Gateway
	Events     core.EventSink
	Metrics    *telemetry.Metrics
	Clock      app.Clock

	validate *validator.Validate
	bg       conc.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	// mu guards closed. Work is only added to bg or expiring under mu
	// while !closed, so Close can wait on both.
	mu       sync.Mutex
	closed   bool
	expiring sync.WaitGroup
}

func New(gw core.Gateway, opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = app.RealClock()
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	reg := core.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		Registry:   reg,
		Settings:   app.NewGuildSettings(),
		Auth:       app.NewAuthorizer(reg, opts.GateOpenTalks),
		Reaper:     app.NewReaper(opts.Clock, opts.GracePeriod),
		Challenges: app.NewChallenges(),
		Gateway:    gw,
		Events:     opts.Events,
		Metrics:    opts.Metrics,
		Clock:      opts.Clock,
		validate:   validator.New(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Setup stores where the guild's talks go. Re-running overwrites.
func (o *Orchestrator) Setup(guild domain.GuildID, category, announcement domain.ChannelID) domain.GuildTalkSetting {
	st := domain.GuildTalkSetting{GuildID: guild, CategoryID: category, AnnouncementChannelID: announcement}
	o.Settings.Put(st)
	return st
}

// Wait blocks until background deliveries finish.
func (o *Orchestrator) Wait() {
	o.bg.Wait()
}

// Close stops pending deletions and waits for background work,
// including a deletion that is already under way. Tracked talks are
// left as they are.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.Reaper.Stop()
	o.expiring.Wait()
	o.bg.Wait()
	o.cancel()
	log.Info().Str("module", "orch").Int("talks", o.Registry.Len()).Msg("orchestrator closed")
}

// beginExpire registers a grace callback with Close. It reports false
// once Close has started.
func (o *Orchestrator) beginExpire() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.expiring.Add(1)
	return true
}

// goBackground runs fn on the background group unless Close has started.
func (o *Orchestrator) goBackground(fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	o.bg.Go(fn)
	return true
}

func (o *Orchestrator) platformCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(o.ctx, platformTimeout)
}

func (o *Orchestrator) publish(typ domain.EventType, talk domain.Talk, member domain.MemberID) {
	if o.Events == nil {
		return
	}
	o.Events.Publish(domain.Event{
		Type:      typ,
		GuildID:   talk.GuildID,
		ChannelID: talk.ChannelID,
		MemberID:  member,
		Name:      talk.DisplayName,
		At:        o.Clock.Now(),
	})
}

func (o *Orchestrator) platformFailed(op string, talk domain.Talk, member domain.MemberID, err error) {
	o.Metrics.PlatformError(op, err)
	log.Error().Err(err).
		Str("module", "orch").
		Str("op", op).
		Str("kind", telemetry.ErrorKind(err)).
		Str("channel", string(talk.ChannelID)).
		Str("member", string(member)).
		Msg("platform operation failed")
}

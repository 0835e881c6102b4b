package orch_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/TalkBot/internal/app"
	"github.com/dkeye/TalkBot/internal/app/orch"
	"github.com/dkeye/TalkBot/internal/core"
	"github.com/dkeye/TalkBot/internal/domain"
	"github.com/dkeye/TalkBot/internal/testutil"
)

const (
	guild  domain.GuildID  = "g1"
	alice  domain.MemberID = "alice"
	bob    domain.MemberID = "bob"
	mallet domain.MemberID = "mallet"
	grace                  = 60 * time.Second
)

type fixture struct {
	o      *orch.Orchestrator
	gw     *testutil.FakeGateway
	clock  *testutil.FakeClock
	events *testutil.RecordingSink
}

func newFixture(t *testing.T, gateOpen bool) *fixture {
	t.Helper()
	f := &fixture{
		gw:     testutil.NewFakeGateway(),
		clock:  testutil.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)),
		events: &testutil.RecordingSink{},
	}
	f.o = orch.New(f.gw, orch.Options{
		GracePeriod:   grace,
		GateOpenTalks: gateOpen,
		Clock:         f.clock,
		Events:        f.events,
	})
	f.o.Setup(guild, "cat", "announce")
	t.Cleanup(f.o.Close)
	return f
}

func (f *fixture) create(t *testing.T, name, password string) domain.Talk {
	t.Helper()
	talk, err := f.o.CreateTalk(context.Background(), orch.CreateTalkRequest{
		GuildID:          guild,
		RequesterID:      alice,
		Name:             name,
		PasswordRequired: password != "",
		Password:         password,
	})
	if err != nil {
		t.Fatalf("create talk: %v", err)
	}
	return talk
}

func (f *fixture) join(member domain.MemberID, channel domain.ChannelID) {
	f.gw.Connect(member, channel)
	f.o.OnOccupancyChange(context.Background(), orch.OccupancyEvent{GuildID: guild, ChannelID: channel, MemberID: member, Joined: true})
	f.settle()
}

// settle replays the voice updates the platform sends back for the
// bot's own moves and evictions.
func (f *fixture) settle() {
	for {
		changes := f.gw.TakeVoiceChanges()
		if len(changes) == 0 {
			return
		}
		for _, c := range changes {
			f.o.OnOccupancyChange(context.Background(), orch.OccupancyEvent{GuildID: c.Guild, ChannelID: c.From, MemberID: c.Member})
			if c.To != "" {
				f.o.OnOccupancyChange(context.Background(), orch.OccupancyEvent{GuildID: c.Guild, ChannelID: c.To, MemberID: c.Member, Joined: true})
			}
		}
	}
}

func (f *fixture) leave(member domain.MemberID, channel domain.ChannelID) {
	f.gw.Disconnect(member)
	f.o.OnOccupancyChange(context.Background(), orch.OccupancyEvent{GuildID: guild, ChannelID: channel, MemberID: member})
}

func TestCreateTalkRequiresSetup(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.o.CreateTalk(context.Background(), orch.CreateTalkRequest{GuildID: "other", RequesterID: alice, Name: "x"})
	if !errors.Is(err, core.ErrUnknownGuildSetting) {
		t.Fatalf("err = %v, want ErrUnknownGuildSetting", err)
	}
}

func TestCreateTalkValidation(t *testing.T) {
	f := newFixture(t, false)
	tests := []struct {
		name string
		req  orch.CreateTalkRequest
		want error
	}{
		{"empty name", orch.CreateTalkRequest{GuildID: guild, RequesterID: alice, Name: "   "}, core.ErrInvalidRequest},
		{"name too long", orch.CreateTalkRequest{GuildID: guild, RequesterID: alice, Name: strings.Repeat("a", 33)}, core.ErrInvalidRequest},
		{"password too long", orch.CreateTalkRequest{GuildID: guild, RequesterID: alice, Name: "x", PasswordRequired: true, Password: strings.Repeat("p", 21)}, core.ErrInvalidRequest},
		{"password missing", orch.CreateTalkRequest{GuildID: guild, RequesterID: alice, Name: "x", PasswordRequired: true}, core.ErrPasswordMissing},
		{"no requester", orch.CreateTalkRequest{GuildID: guild, Name: "x"}, core.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.o.CreateTalk(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if f.o.Registry.Len() != 0 {
		t.Fatalf("registry has %d talks after rejected requests", f.o.Registry.Len())
	}
}

func TestCreateTalkRegistersCreator(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "secret club", "xyz")

	if talk.DisplayName != "🔒 secret club" {
		t.Fatalf("display name = %q", talk.DisplayName)
	}
	if got := f.gw.ChannelName(talk.ChannelID); got != talk.DisplayName {
		t.Fatalf("platform name = %q, want %q", got, talk.DisplayName)
	}
	if !f.o.Registry.IsAuthorized(talk.ChannelID, alice) {
		t.Fatal("creator not authorized")
	}
	if f.events.Count(domain.EventTalkCreated) != 1 {
		t.Fatal("talk_created not published")
	}

	// The creator never sees a challenge.
	f.join(alice, talk.ChannelID)
	f.o.Wait()
	if n := len(f.gw.SentNotices()); n != 0 {
		t.Fatalf("creator got %d notices", n)
	}
	if n := len(f.gw.MoveLog()); n != 0 {
		t.Fatalf("creator was moved %d times", n)
	}
}

func TestCreateTalkPlatformFailure(t *testing.T) {
	f := newFixture(t, false)
	f.gw.CreateErr = fmt.Errorf("create: %w", core.ErrPlatformForbidden)
	_, err := f.o.CreateTalk(context.Background(), orch.CreateTalkRequest{GuildID: guild, RequesterID: alice, Name: "x"})
	if !errors.Is(err, core.ErrPlatformForbidden) {
		t.Fatalf("err = %v, want ErrPlatformForbidden", err)
	}
	if f.o.Registry.Len() != 0 {
		t.Fatal("talk registered without a channel")
	}
}

func TestCreateTalkRegisterConflictKeepsChannel(t *testing.T) {
	f := newFixture(t, false)
	first := f.create(t, "lounge", "")
	f.gw.ReuseID = first.ChannelID

	_, err := f.o.CreateTalk(context.Background(), orch.CreateTalkRequest{GuildID: guild, RequesterID: bob, Name: "other"})
	if !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
	if !f.gw.Exists(first.ChannelID) || len(f.gw.DeletedChannels()) != 0 {
		t.Fatal("conflicting create removed the tracked channel")
	}
	got, ok := f.o.Registry.Get(first.ChannelID)
	if !ok || got.CreatorID != alice {
		t.Fatalf("tracked talk = %+v, %v", got, ok)
	}
}

func TestOpenTalkAdmitsAnyone(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "lounge", "")

	f.join(bob, talk.ChannelID)
	f.o.Wait()
	if n := len(f.gw.MoveLog()); n != 0 {
		t.Fatalf("bob moved %d times", n)
	}
	if n := len(f.gw.SentNotices()); n != 0 {
		t.Fatalf("bob got %d notices", n)
	}
	if f.o.Reaper.Pending(talk.ChannelID) {
		t.Fatal("deletion still pending with bob inside")
	}
}

func TestGatedJoinEvictsAndChallengesOncePerAttempt(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "secret", "xyz")

	f.join(mallet, talk.ChannelID)
	f.o.Wait()

	moves := f.gw.MoveLog()
	if len(moves) != 1 || moves[0].Member != mallet || moves[0].Target != nil {
		t.Fatalf("moves = %+v, want one disconnect of mallet", moves)
	}
	if ch, ok := f.gw.MemberVoiceChannel(context.Background(), guild, mallet); ok {
		t.Fatalf("mallet still connected to %s", ch)
	}
	sent := f.gw.SentNotices()
	if len(sent) != 1 {
		t.Fatalf("sent %d notices, want 1", len(sent))
	}
	n := sent[0]
	if n.Member != mallet || n.Notice.Action == nil {
		t.Fatalf("notice = %+v", n)
	}
	if !strings.Contains(n.Notice.Body, talk.DisplayName) {
		t.Fatalf("notice body %q does not name %q", n.Notice.Body, talk.DisplayName)
	}
	if f.o.Registry.IsAuthorized(talk.ChannelID, mallet) {
		t.Fatal("mallet became authorized")
	}

	f.join(mallet, talk.ChannelID)
	f.o.Wait()
	sent = f.gw.SentNotices()
	if len(sent) != 2 {
		t.Fatalf("sent %d notices after second attempt, want 2", len(sent))
	}
	if sent[0].Notice.Action.ID != sent[1].Notice.Action.ID {
		t.Fatal("second attempt issued a new challenge token")
	}
}

func TestChallengeDeliveryFailureIsNonFatal(t *testing.T) {
	f := newFixture(t, false)
	f.gw.SendErr = fmt.Errorf("dm: %w", core.ErrPlatformForbidden)
	talk := f.create(t, "secret", "xyz")

	f.join(mallet, talk.ChannelID)
	f.o.Wait()
	if len(f.gw.MoveLog()) != 1 {
		t.Fatal("eviction skipped after failed delivery")
	}
}

func challengeToken(t *testing.T, f *fixture, member domain.MemberID) string {
	t.Helper()
	for _, n := range f.gw.SentNotices() {
		if n.Member == member && n.Notice.Action != nil {
			return n.Notice.Action.ID
		}
	}
	t.Fatalf("no challenge sent to %s", member)
	return ""
}

func TestCorrectPasswordIsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "secret", "xyz")
	f.join(bob, talk.ChannelID)
	f.o.Wait()
	token := challengeToken(t, f, bob)

	for i := 0; i < 2; i++ {
		out, err := f.o.SubmitPassword(context.Background(), token, bob, "xyz")
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if out.Result != app.PasswordCorrect {
			t.Fatalf("submit %d: result = %v", i, out.Result)
		}
		if out.Moved {
			t.Fatalf("submit %d: moved a disconnected member", i)
		}
	}
	got, _ := f.o.Registry.Get(talk.ChannelID)
	if len(got.Authorized) != 2 {
		t.Fatalf("authorized = %v, want [alice bob]", got.Authorized)
	}
	if d := f.o.Auth.MayEnter(got, bob); d != app.Allow {
		t.Fatalf("decision after password = %v, want allow", d)
	}
}

func TestIncorrectPasswordDoesNotMutate(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "secret", "xyz")
	f.join(bob, talk.ChannelID)
	f.o.Wait()
	token := challengeToken(t, f, bob)

	out, err := f.o.SubmitPassword(context.Background(), token, bob, "nope")
	if !errors.Is(err, core.ErrIncorrectPassword) || out.Result != app.PasswordIncorrect {
		t.Fatalf("result = %v, err = %v", out.Result, err)
	}
	got, _ := f.o.Registry.Get(talk.ChannelID)
	if len(got.Authorized) != 1 {
		t.Fatalf("authorized = %v after wrong password", got.Authorized)
	}
}

func TestCorrectPasswordMovesConnectedMember(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "secret", "xyz")
	f.gw.AddChannel(guild, "lobby")
	f.gw.Connect(bob, "lobby")

	out, err := f.o.SubmitPasswordFor(context.Background(), talk.ChannelID, bob, "xyz")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Moved {
		t.Fatal("connected member not moved")
	}
	if ch, _ := f.gw.MemberVoiceChannel(context.Background(), guild, bob); ch != talk.ChannelID {
		t.Fatalf("bob in %q, want %q", ch, talk.ChannelID)
	}
}

func TestCorrectPasswordMoveFailureFallsBack(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "secret", "xyz")
	f.gw.AddChannel(guild, "lobby")
	f.gw.Connect(bob, "lobby")
	f.gw.MoveErr = fmt.Errorf("move: %w", core.ErrPlatformForbidden)

	out, err := f.o.SubmitPasswordFor(context.Background(), talk.ChannelID, bob, "xyz")
	if err != nil || out.Result != app.PasswordCorrect {
		t.Fatalf("result = %v, err = %v", out.Result, err)
	}
	if out.Moved {
		t.Fatal("reported moved after failed move")
	}
}

func TestSubmitPasswordRejectsForeignToken(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "secret", "xyz")
	f.join(bob, talk.ChannelID)
	f.o.Wait()
	token := challengeToken(t, f, bob)

	if _, err := f.o.SubmitPassword(context.Background(), token, mallet, "xyz"); !errors.Is(err, core.ErrUnknownChallenge) {
		t.Fatalf("err = %v, want ErrUnknownChallenge", err)
	}
	if _, err := f.o.SubmitPassword(context.Background(), "bogus", bob, "xyz"); !errors.Is(err, core.ErrUnknownChallenge) {
		t.Fatalf("err = %v, want ErrUnknownChallenge", err)
	}
	if f.o.Registry.IsAuthorized(talk.ChannelID, mallet) {
		t.Fatal("foreign token authorized mallet")
	}
}

func TestRejoinWithinGracePreventsDeletion(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "lounge", "")

	f.join(alice, talk.ChannelID)
	f.leave(alice, talk.ChannelID)
	if !f.o.Reaper.Pending(talk.ChannelID) {
		t.Fatal("no deletion pending after talk became empty")
	}

	f.clock.Advance(30 * time.Second)
	f.join(bob, talk.ChannelID)
	f.clock.Advance(grace)

	if n := len(f.gw.DeletedChannels()); n != 0 {
		t.Fatalf("deleted %d channels", n)
	}
	if _, ok := f.o.Registry.Get(talk.ChannelID); !ok {
		t.Fatal("talk removed while occupied")
	}
}

func TestEmptyTalkDeletedExactlyOnce(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "secret", "xyz")
	f.join(bob, talk.ChannelID) // challenge issued
	f.o.Wait()

	f.join(alice, talk.ChannelID)
	f.leave(alice, talk.ChannelID)

	f.clock.Advance(grace - time.Second)
	if n := len(f.gw.DeletedChannels()); n != 0 {
		t.Fatalf("deleted before grace elapsed (%d)", n)
	}
	f.clock.Advance(time.Second)

	deleted := f.gw.DeletedChannels()
	if len(deleted) != 1 || deleted[0] != talk.ChannelID {
		t.Fatalf("deleted = %v, want [%s]", deleted, talk.ChannelID)
	}
	if _, ok := f.o.Registry.DisplayName(talk.ChannelID); ok {
		t.Fatal("display name survived deletion")
	}
	if _, ok := f.o.Registry.Get(talk.ChannelID); ok {
		t.Fatal("talk survived deletion")
	}
	if f.o.Challenges.Len() != 0 {
		t.Fatal("challenges survived deletion")
	}
	if f.events.Count(domain.EventTalkDeleted) != 1 {
		t.Fatal("talk_deleted not published once")
	}

	f.clock.Advance(10 * grace)
	if n := len(f.gw.DeletedChannels()); n != 1 {
		t.Fatalf("deleted %d times", n)
	}
}

func TestRepeatedEmptyTransitionsKeepDeadline(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "lounge", "")

	f.leave(alice, talk.ChannelID)
	f.clock.Advance(20 * time.Second)
	f.leave(bob, talk.ChannelID)
	if f.clock.Pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", f.clock.Pending())
	}

	f.clock.Advance(grace - 20*time.Second)
	if n := len(f.gw.DeletedChannels()); n != 1 {
		t.Fatalf("deleted %d times at the first deadline, want 1", n)
	}
	f.clock.Advance(grace)
	if n := len(f.gw.DeletedChannels()); n != 1 {
		t.Fatalf("deleted %d times, want 1", n)
	}
}

func TestEvictionLeaveKeepsDeadline(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "secret", "xyz")

	// Each retry is evicted and the platform reports mallet leaving the
	// empty talk. None of that may push the deletion back.
	f.clock.Advance(50 * time.Second)
	f.join(mallet, talk.ChannelID)
	f.clock.Advance(9 * time.Second)
	f.join(mallet, talk.ChannelID)
	f.o.Wait()
	if n := len(f.gw.MoveLog()); n != 2 {
		t.Fatalf("moves = %d, want 2 evictions", n)
	}
	if f.clock.Pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", f.clock.Pending())
	}

	f.clock.Advance(time.Second)
	deleted := f.gw.DeletedChannels()
	if len(deleted) != 1 || deleted[0] != talk.ChannelID {
		t.Fatalf("deleted = %v, want [%s] at the original deadline", deleted, talk.ChannelID)
	}
	if _, ok := f.o.Registry.Get(talk.ChannelID); ok {
		t.Fatal("talk survived deletion")
	}
}

func TestChallengeForReapedTalkIsDropped(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "secret", "xyz")
	// The talk goes away between the eviction and the challenge.
	f.gw.BeforeMove = func(domain.MemberID) { f.o.Registry.Remove(talk.ChannelID) }

	f.join(mallet, talk.ChannelID)
	f.o.Wait()
	if n := f.o.Challenges.Len(); n != 0 {
		t.Fatalf("challenges = %d after reap, want 0", n)
	}
	if n := len(f.gw.SentNotices()); n != 0 {
		t.Fatalf("sent %d notices for a removed talk", n)
	}
}

func TestSubmitPasswordForRemovedTalkDropsChallenge(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "secret", "xyz")
	f.join(bob, talk.ChannelID)
	f.o.Wait()
	token := challengeToken(t, f, bob)

	f.o.Registry.Remove(talk.ChannelID)
	out, err := f.o.SubmitPassword(context.Background(), token, bob, "xyz")
	if !errors.Is(err, core.ErrUnknownChannel) || out.Result != app.PasswordUnknownChannel {
		t.Fatalf("result = %v, err = %v", out.Result, err)
	}
	if n := f.o.Challenges.Len(); n != 0 {
		t.Fatalf("challenges = %d, want 0", n)
	}
}

func TestCloseWaitsForRunningDeletion(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "lounge", "")

	entered := make(chan struct{})
	release := make(chan struct{})
	f.gw.BeforeDelete = func(domain.ChannelID) {
		close(entered)
		<-release
	}
	go f.clock.Advance(grace)
	<-entered

	closed := make(chan struct{})
	go func() {
		f.o.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("Close returned while a deletion was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the deletion finished")
	}
	if deleted := f.gw.DeletedChannels(); len(deleted) != 1 || deleted[0] != talk.ChannelID {
		t.Fatalf("deleted = %v, want [%s]", deleted, talk.ChannelID)
	}
}

func TestNoDeletionAfterClose(t *testing.T) {
	f := newFixture(t, false)
	f.create(t, "lounge", "")

	f.o.Close()
	f.clock.Advance(grace)
	if n := len(f.gw.DeletedChannels()); n != 0 {
		t.Fatalf("deleted %d channels after Close", n)
	}
}

func TestUnusedTalkIsReclaimed(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "ghost town", "")
	f.clock.Advance(grace)
	if _, ok := f.o.Registry.Get(talk.ChannelID); ok {
		t.Fatal("never-joined talk not reclaimed")
	}
}

func TestFailedDeletionKeepsEntryForRetry(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "lounge", "")
	f.gw.DeleteErr = fmt.Errorf("delete: %w", core.ErrPlatformForbidden)

	f.clock.Advance(grace)
	if _, ok := f.o.Registry.Get(talk.ChannelID); !ok {
		t.Fatal("entry dropped after failed deletion")
	}

	f.gw.DeleteErr = nil
	f.join(alice, talk.ChannelID)
	f.leave(alice, talk.ChannelID)
	f.clock.Advance(grace)
	if _, ok := f.o.Registry.Get(talk.ChannelID); ok {
		t.Fatal("retry did not remove the talk")
	}
	if n := len(f.gw.DeletedChannels()); n != 2 {
		t.Fatalf("delete attempts = %d, want 2", n)
	}
}

func TestVanishedChannelIsReaped(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "lounge", "")
	f.gw.Vanish(talk.ChannelID)

	f.clock.Advance(grace)
	if _, ok := f.o.Registry.Get(talk.ChannelID); ok {
		t.Fatal("vanished talk still tracked")
	}
	if n := len(f.gw.DeletedChannels()); n != 0 {
		t.Fatalf("tried to delete a vanished channel %d times", n)
	}
}

func TestOnChannelDeleted(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "lounge", "")
	f.o.OnChannelDeleted(talk.ChannelID)
	if _, ok := f.o.Registry.Get(talk.ChannelID); ok {
		t.Fatal("talk still tracked")
	}
	if f.o.Reaper.Pending(talk.ChannelID) {
		t.Fatal("deletion still pending")
	}
	f.o.OnChannelDeleted(talk.ChannelID)
	if f.events.Count(domain.EventTalkDeleted) != 1 {
		t.Fatal("talk_deleted published more than once")
	}
}

func TestUntrackedChannelIgnored(t *testing.T) {
	f := newFixture(t, false)
	f.gw.AddChannel(guild, "general")
	f.join(mallet, "general")
	f.leave(mallet, "general")
	f.o.Wait()
	if len(f.gw.MoveLog()) != 0 || len(f.gw.SentNotices()) != 0 || f.clock.Pending() != 0 {
		t.Fatal("untracked channel triggered talk handling")
	}
}

func TestJoinTalkByName(t *testing.T) {
	f := newFixture(t, false)
	open := f.create(t, "Lounge", "")
	locked := f.create(t, "Vault", "xyz")
	f.gw.AddChannel(guild, "lobby")
	f.gw.Connect(bob, "lobby")
	ctx := context.Background()

	out, err := f.o.JoinTalk(ctx, guild, bob, "loun")
	if err != nil {
		t.Fatal(err)
	}
	if out.Talk.ChannelID != open.ChannelID || out.Decision != app.Allow || !out.Moved {
		t.Fatalf("open join = %+v", out)
	}

	out, err = f.o.JoinTalk(ctx, guild, bob, "VAULT")
	if err != nil {
		t.Fatal(err)
	}
	if out.Talk.ChannelID != locked.ChannelID || out.Decision != app.RequirePassword || out.Challenge == nil {
		t.Fatalf("locked join = %+v", out)
	}
	if _, err := f.o.SubmitPassword(ctx, out.Challenge.Token, bob, "xyz"); err != nil {
		t.Fatalf("answering join challenge: %v", err)
	}

	if _, err := f.o.JoinTalk(ctx, guild, bob, "nothing"); !errors.Is(err, core.ErrUnknownChannel) {
		t.Fatalf("err = %v, want ErrUnknownChannel", err)
	}
}

func TestJoinByIDDisconnectedMember(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "Lounge", "")
	out, err := f.o.JoinByID(context.Background(), talk.ChannelID, bob)
	if err != nil {
		t.Fatal(err)
	}
	if out.Decision != app.Allow || out.Moved {
		t.Fatalf("outcome = %+v, want allow without move", out)
	}
}

func TestListTalks(t *testing.T) {
	f := newFixture(t, false)
	open := f.create(t, "b-open", "")
	f.create(t, "a-locked", "xyz")
	gone := f.create(t, "c-gone", "")
	f.gw.Vanish(gone.ChannelID)
	f.join(bob, open.ChannelID)

	list := f.o.ListTalks(context.Background(), guild, bob)
	if len(list) != 2 {
		t.Fatalf("listed %d talks, want 2: %+v", len(list), list)
	}
	if list[0].Name > list[1].Name {
		t.Fatalf("rows not sorted by name: %q, %q", list[0].Name, list[1].Name)
	}
	for _, s := range list {
		switch s.ChannelID {
		case open.ChannelID:
			if !s.MayEnter || s.Protected || s.Members != 1 {
				t.Fatalf("open row = %+v", s)
			}
		default:
			if s.MayEnter || !s.Protected {
				t.Fatalf("locked row = %+v", s)
			}
		}
	}
	if _, ok := f.o.Registry.Get(gone.ChannelID); ok {
		t.Fatal("listing did not reap vanished talk")
	}
}

func TestGrant(t *testing.T) {
	f := newFixture(t, false)
	talk := f.create(t, "secret", "xyz")

	if _, err := f.o.Grant(talk.ChannelID, bob, mallet); !errors.Is(err, core.ErrNotCreator) {
		t.Fatalf("err = %v, want ErrNotCreator", err)
	}
	added, err := f.o.Grant(talk.ChannelID, alice, bob)
	if err != nil || !added {
		t.Fatalf("grant: added=%v err=%v", added, err)
	}
	if added, _ = f.o.Grant(talk.ChannelID, alice, bob); added {
		t.Fatal("second grant reported added")
	}

	f.join(bob, talk.ChannelID)
	f.o.Wait()
	if len(f.gw.MoveLog()) != 0 {
		t.Fatal("granted member was evicted")
	}
}

func TestGateOpenTalksDenies(t *testing.T) {
	f := newFixture(t, true)
	talk := f.create(t, "lounge", "")

	f.join(mallet, talk.ChannelID)
	f.o.Wait()
	if len(f.gw.MoveLog()) != 1 {
		t.Fatal("denied member not evicted")
	}
	sent := f.gw.SentNotices()
	if len(sent) != 1 || sent[0].Notice.Action != nil {
		t.Fatalf("sent = %+v, want one notice without a password action", sent)
	}
}

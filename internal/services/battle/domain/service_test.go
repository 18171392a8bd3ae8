package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/agorahq/arena/internal/platform/errors"
	"github.com/agorahq/arena/internal/services/battle/broadcast"
)

// fakeStore is an in-memory Store with the same optimistic concurrency
// semantics the sqlite implementation provides.
type fakeStore struct {
	mu       sync.Mutex
	battles  map[string]Battle
	messages map[string][]Message
	comments map[string][]Comment

	// beforeUpdate runs at the top of UpdateBattle, letting tests interleave
	// a competing write.
	beforeUpdate func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		battles:  make(map[string]Battle),
		messages: make(map[string][]Message),
		comments: make(map[string][]Comment),
	}
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (s *fakeStore) CreateBattle(_ context.Context, battle Battle, messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(battle.ChallengerID, battle.ChallengedID)
	for _, existing := range s.battles {
		if existing.Status.Terminal() {
			continue
		}
		if existing.TopicID == battle.TopicID && pairKey(existing.ChallengerID, existing.ChallengedID) == key {
			return ErrConflict
		}
	}
	s.battles[battle.ID] = battle
	s.messages[battle.ID] = append(s.messages[battle.ID], messages...)
	return nil
}

func (s *fakeStore) GetBattle(_ context.Context, battleID string) (Battle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	battle, ok := s.battles[battleID]
	if !ok {
		return Battle{}, ErrNotFound
	}
	return battle, nil
}

func (s *fakeStore) UpdateBattle(_ context.Context, battle Battle, expectedVersion int64, messages []Message) (Battle, error) {
	if s.beforeUpdate != nil {
		s.beforeUpdate()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.battles[battle.ID]
	if !ok {
		return Battle{}, ErrNotFound
	}
	if current.Version != expectedVersion {
		return Battle{}, ErrVersionMismatch
	}
	battle.Version = expectedVersion + 1
	s.battles[battle.ID] = battle
	s.messages[battle.ID] = append(s.messages[battle.ID], messages...)
	return battle, nil
}

func (s *fakeStore) ListBattles(_ context.Context, filter ListBattlesFilter) (BattlePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Battle
	for _, battle := range s.battles {
		if filter.Status != "" && battle.Status != filter.Status {
			continue
		}
		if filter.TopicID != "" && battle.TopicID != filter.TopicID {
			continue
		}
		if filter.UserID != "" && !battle.IsParticipant(filter.UserID) {
			continue
		}
		out = append(out, battle)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.PageSize > 0 && len(out) > filter.PageSize {
		out = out[:filter.PageSize]
	}
	return BattlePage{Battles: out}, nil
}

func (s *fakeStore) ActiveBattleForUser(_ context.Context, userID string) (Battle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, battle := range s.battles {
		if battle.Status == StatusActive && battle.IsParticipant(userID) {
			return battle, nil
		}
	}
	return Battle{}, ErrNotFound
}

func (s *fakeStore) ListStaleChallenges(_ context.Context, cutoff time.Time, limit int) ([]Battle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Battle
	for _, battle := range s.battles {
		if battle.Status != StatusPending && battle.Status != StatusNegotiating {
			continue
		}
		if battle.CreatedAt.After(cutoff) {
			continue
		}
		out = append(out, battle)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) ListOverdueActiveBattles(_ context.Context, now time.Time, limit int) ([]Battle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Battle
	for _, battle := range s.battles {
		if TurnExpired(battle, now) {
			out = append(out, battle)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) ListMessages(_ context.Context, battleID string, pageSize int, _ string) (MessagePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[battleID]
	if pageSize > 0 && len(msgs) > pageSize {
		msgs = msgs[:pageSize]
	}
	return MessagePage{Messages: msgs}, nil
}

func (s *fakeStore) AppendComment(_ context.Context, comment Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[comment.BattleID] = append(s.comments[comment.BattleID], comment)
	return nil
}

func (s *fakeStore) ListComments(_ context.Context, battleID string, pageSize int, _ string) (CommentPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	comments := s.comments[battleID]
	if pageSize > 0 && len(comments) > pageSize {
		comments = comments[:pageSize]
	}
	return CommentPage{Comments: comments}, nil
}

func (s *fakeStore) DeleteBattle(_ context.Context, battleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.battles, battleID)
	delete(s.messages, battleID)
	delete(s.comments, battleID)
	return nil
}

type recordedEvent struct {
	channel string
	event   broadcast.Event
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *fakeBroadcaster) Broadcast(channel string, event broadcast.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{channel: channel, event: event})
}

func (b *fakeBroadcaster) typesOn(channel string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var types []string
	for _, rec := range b.events {
		if rec.channel == channel {
			types = append(types, rec.event.Type)
		}
	}
	return types
}

type fakeBlocklist struct {
	blocked map[string]bool
}

func (b *fakeBlocklist) IsBlocked(_ context.Context, userID string) (bool, error) {
	return b.blocked[userID], nil
}

type rejectingFilter struct {
	rejected string
}

func (f *rejectingFilter) Review(_ context.Context, content string) error {
	if f.rejected != "" && strings.Contains(content, f.rejected) {
		return errors.New("flagged")
	}
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func seqIDs() func() (string, error) {
	var n int
	return func() (string, error) {
		n++
		return fmt.Sprintf("id-%03d", n), nil
	}
}

type fixture struct {
	svc   *Service
	store *fakeStore
	hub   *fakeBroadcaster
	clock *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeStore()
	hub := &fakeBroadcaster{}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(ServiceConfig{
		Store:         store,
		Broadcaster:   hub,
		Blocklist:     &fakeBlocklist{blocked: map[string]bool{"banned": true}},
		ContentFilter: &rejectingFilter{rejected: "slur"},
		Clock:         clock.Now,
		NewID:         seqIDs(),
	})
	return &fixture{svc: svc, store: store, hub: hub, clock: clock}
}

func (f *fixture) mustChallenge(t *testing.T, duration int) Battle {
	t.Helper()
	battle, err := f.svc.CreateChallenge(context.Background(), "alice", CreateChallengeInput{
		ChallengedID:    "bob",
		TopicID:         "topic-1",
		DurationSeconds: duration,
		Taunt:           "bring arguments, not vibes",
	})
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	return battle
}

func (f *fixture) mustActivate(t *testing.T, duration int) Battle {
	t.Helper()
	battle := f.mustChallenge(t, duration)
	battle, err := f.svc.RespondToChallenge(context.Background(), battle.ID, "bob", RespondToChallengeInput{Action: RespondActionAccept})
	if err != nil {
		t.Fatalf("RespondToChallenge(accept): %v", err)
	}
	return battle
}

func assertCode(t *testing.T, err error, want apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", want)
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperrors.Error, got %T: %v", err, err)
	}
	if appErr.Code != want {
		t.Fatalf("error code = %s, want %s", appErr.Code, want)
	}
}

func TestCreateChallenge(t *testing.T) {
	f := newFixture(t)
	battle := f.mustChallenge(t, 600)

	if battle.Status != StatusPending {
		t.Fatalf("status = %s, want PENDING", battle.Status)
	}
	if battle.ChallengerHP != 600 || battle.ChallengedHP != 600 {
		t.Fatalf("hp pools = %d/%d, want 600/600", battle.ChallengerHP, battle.ChallengedHP)
	}
	if battle.AwaitingUserID != "bob" {
		t.Fatalf("awaiting = %q, want bob", battle.AwaitingUserID)
	}
	if battle.ChallengerSide != SideA || battle.ChallengedSide != SideB {
		t.Fatalf("sides = %s/%s, want A/B", battle.ChallengerSide, battle.ChallengedSide)
	}
	if battle.CurrentTurnUserID != "" || battle.TurnStartedAt != nil {
		t.Fatal("pending battle must not hold a turn")
	}
	if battle.Version != 1 {
		t.Fatalf("version = %d, want 1", battle.Version)
	}

	page, err := f.svc.ListMessages(context.Background(), battle.ID, 0, "")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(page.Messages) != 1 || page.Messages[0].Role != RoleHost {
		t.Fatalf("expected one HOST taunt message, got %+v", page.Messages)
	}

	if got := f.hub.typesOn(broadcast.UserChannel("bob")); len(got) != 1 || got[0] != broadcast.EventBattleState {
		t.Fatalf("expected state push to challenged user, got %v", got)
	}
}

func TestCreateChallengeValidation(t *testing.T) {
	tests := []struct {
		name  string
		actor string
		input CreateChallengeInput
		want  apperrors.Code
	}{
		{
			name:  "self target",
			actor: "alice",
			input: CreateChallengeInput{ChallengedID: "alice", TopicID: "topic-1", DurationSeconds: 600},
			want:  apperrors.CodeChallengeSelfTarget,
		},
		{
			name:  "missing target",
			actor: "alice",
			input: CreateChallengeInput{TopicID: "topic-1", DurationSeconds: 600},
			want:  apperrors.CodeChallengeInvalidTarget,
		},
		{
			name:  "duration not on the menu",
			actor: "alice",
			input: CreateChallengeInput{ChallengedID: "bob", TopicID: "topic-1", DurationSeconds: 42},
			want:  apperrors.CodeChallengeInvalidDuration,
		},
		{
			name:  "taunt too long",
			actor: "alice",
			input: CreateChallengeInput{ChallengedID: "bob", TopicID: "topic-1", DurationSeconds: 600, Taunt: strings.Repeat("x", 501)},
			want:  apperrors.CodeChallengeTauntTooLong,
		},
		{
			name:  "blocklisted challenger",
			actor: "banned",
			input: CreateChallengeInput{ChallengedID: "bob", TopicID: "topic-1", DurationSeconds: 600},
			want:  apperrors.CodeUserBlocklisted,
		},
		{
			name:  "blocklisted challenged",
			actor: "alice",
			input: CreateChallengeInput{ChallengedID: "banned", TopicID: "topic-1", DurationSeconds: 600},
			want:  apperrors.CodeUserBlocklisted,
		},
		{
			name:  "taunt rejected by filter",
			actor: "alice",
			input: CreateChallengeInput{ChallengedID: "bob", TopicID: "topic-1", DurationSeconds: 600, Taunt: "a slur here"},
			want:  apperrors.CodeContentRejected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateChallenge(context.Background(), tt.actor, tt.input)
			assertCode(t, err, tt.want)
		})
	}
}

func TestCreateChallengeDuplicatePair(t *testing.T) {
	f := newFixture(t)
	f.mustChallenge(t, 600)

	// Same pair, same topic, opposite direction still collides.
	_, err := f.svc.CreateChallenge(context.Background(), "bob", CreateChallengeInput{
		ChallengedID:    "alice",
		TopicID:         "topic-1",
		DurationSeconds: 1800,
	})
	assertCode(t, err, apperrors.CodeChallengeDuplicate)

	// A different topic is fine.
	if _, err := f.svc.CreateChallenge(context.Background(), "bob", CreateChallengeInput{
		ChallengedID:    "alice",
		TopicID:         "topic-2",
		DurationSeconds: 600,
	}); err != nil {
		t.Fatalf("challenge on second topic: %v", err)
	}
}

func TestRespondAccept(t *testing.T) {
	f := newFixture(t)
	battle := f.mustChallenge(t, 600)

	updated, err := f.svc.RespondToChallenge(context.Background(), battle.ID, "bob", RespondToChallengeInput{Action: RespondActionAccept})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if updated.Status != StatusActive {
		t.Fatalf("status = %s, want ACTIVE", updated.Status)
	}
	if updated.CurrentTurnUserID != "alice" {
		t.Fatalf("turn holder = %q, want challenger alice", updated.CurrentTurnUserID)
	}
	if updated.TurnStartedAt == nil || !updated.TurnStartedAt.Equal(f.clock.Now()) {
		t.Fatalf("turn started at = %v, want server clock", updated.TurnStartedAt)
	}
	if updated.ChallengerHP != 600 || updated.ChallengedHP != 600 {
		t.Fatalf("hp pools = %d/%d, want full 600/600", updated.ChallengerHP, updated.ChallengedHP)
	}
	if updated.AwaitingUserID != "" {
		t.Fatal("active battle must not await a response")
	}
}

func TestRespondDecline(t *testing.T) {
	f := newFixture(t)
	battle := f.mustChallenge(t, 600)

	updated, err := f.svc.RespondToChallenge(context.Background(), battle.ID, "bob", RespondToChallengeInput{Action: RespondActionDecline})
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if updated.Status != StatusEnded {
		t.Fatalf("status = %s, want ENDED", updated.Status)
	}
	if updated.EndReason != EndReasonDeclined {
		t.Fatalf("end reason = %s, want declined", updated.EndReason)
	}
	if updated.WinnerID != "" {
		t.Fatalf("declined challenge has no winner, got %q", updated.WinnerID)
	}
	if got := f.hub.typesOn(battle.ID); len(got) == 0 || got[len(got)-1] != broadcast.EventBattleEnd {
		t.Fatalf("expected battle:end broadcast, got %v", got)
	}
}

func TestRespondCounterThenDecline(t *testing.T) {
	f := newFixture(t)
	battle := f.mustChallenge(t, 600)

	countered, err := f.svc.RespondToChallenge(context.Background(), battle.ID, "bob", RespondToChallengeInput{
		Action:                 RespondActionCounter,
		CounterDurationSeconds: 1800,
	})
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if countered.Status != StatusNegotiating {
		t.Fatalf("status = %s, want NEGOTIATING", countered.Status)
	}
	if countered.DurationSeconds != 1800 || countered.ChallengerHP != 1800 || countered.ChallengedHP != 1800 {
		t.Fatalf("counter must reset terms and pools, got %d (%d/%d)",
			countered.DurationSeconds, countered.ChallengerHP, countered.ChallengedHP)
	}
	if countered.AwaitingUserID != "alice" {
		t.Fatalf("awaiting = %q, want alice after bob's counter", countered.AwaitingUserID)
	}

	// Bob proposed the current terms, so bob cannot answer them.
	_, err = f.svc.RespondToChallenge(context.Background(), battle.ID, "bob", RespondToChallengeInput{Action: RespondActionAccept})
	assertCode(t, err, apperrors.CodeChallengeNotAwaitingUser)

	ended, err := f.svc.RespondToChallenge(context.Background(), battle.ID, "alice", RespondToChallengeInput{Action: RespondActionDecline})
	if err != nil {
		t.Fatalf("decline counter: %v", err)
	}
	if ended.Status != StatusEnded || ended.EndReason != EndReasonDeclined {
		t.Fatalf("got %s/%s, want ENDED/declined", ended.Status, ended.EndReason)
	}
}

func TestRespondGuards(t *testing.T) {
	f := newFixture(t)
	battle := f.mustChallenge(t, 600)

	_, err := f.svc.RespondToChallenge(context.Background(), battle.ID, "mallory", RespondToChallengeInput{Action: RespondActionAccept})
	assertCode(t, err, apperrors.CodeBattleNotParticipant)

	_, err = f.svc.RespondToChallenge(context.Background(), battle.ID, "alice", RespondToChallengeInput{Action: RespondActionAccept})
	assertCode(t, err, apperrors.CodeChallengeNotAwaitingUser)

	_, err = f.svc.RespondToChallenge(context.Background(), battle.ID, "bob", RespondToChallengeInput{Action: "maybe"})
	assertCode(t, err, apperrors.CodeChallengeInvalidAction)

	_, err = f.svc.RespondToChallenge(context.Background(), battle.ID, "bob", RespondToChallengeInput{
		Action: RespondActionCounter, CounterDurationSeconds: 999,
	})
	assertCode(t, err, apperrors.CodeChallengeInvalidDuration)

	if _, err := f.svc.RespondToChallenge(context.Background(), battle.ID, "bob", RespondToChallengeInput{Action: RespondActionDecline}); err != nil {
		t.Fatalf("decline: %v", err)
	}
	_, err = f.svc.RespondToChallenge(context.Background(), battle.ID, "bob", RespondToChallengeInput{Action: RespondActionAccept})
	assertCode(t, err, apperrors.CodeChallengeAlreadyResponded)
}

func TestSubmitGroundChargesAndPassesTurn(t *testing.T) {
	f := newFixture(t)
	battle := f.mustActivate(t, 600)

	f.clock.Advance(45 * time.Second)
	updated, msg, err := f.svc.SubmitGround(context.Background(), battle.ID, "alice", "here is my argument")
	if err != nil {
		t.Fatalf("SubmitGround: %v", err)
	}
	if updated.ChallengerHP != 555 {
		t.Fatalf("challenger HP = %d, want 555", updated.ChallengerHP)
	}
	if updated.ChallengedHP != 600 {
		t.Fatalf("challenged HP = %d, want untouched 600", updated.ChallengedHP)
	}
	if updated.CurrentTurnUserID != "bob" {
		t.Fatalf("turn holder = %q, want bob", updated.CurrentTurnUserID)
	}
	if updated.TurnStartedAt == nil || !updated.TurnStartedAt.Equal(f.clock.Now()) {
		t.Fatalf("turn restart = %v, want server clock", updated.TurnStartedAt)
	}
	if msg.HPChange != -45 || msg.TargetUserID != "alice" {
		t.Fatalf("charge = %d on %q, want -45 on alice", msg.HPChange, msg.TargetUserID)
	}
	if msg.Role != RoleParticipant {
		t.Fatalf("message role = %s, want PARTICIPANT", msg.Role)
	}

	types := f.hub.typesOn(battle.ID)
	if len(types) < 2 || types[len(types)-2] != broadcast.EventBattleMessage || types[len(types)-1] != broadcast.EventBattleTurn {
		t.Fatalf("expected battle:message then battle:turn, got %v", types)
	}
}

func TestSubmitGroundAlternatesTurns(t *testing.T) {
	f := newFixture(t)
	battle := f.mustActivate(t, 600)

	f.clock.Advance(10 * time.Second)
	updated, _, err := f.svc.SubmitGround(context.Background(), battle.ID, "alice", "opening")
	if err != nil {
		t.Fatalf("first ground: %v", err)
	}

	f.clock.Advance(20 * time.Second)
	updated, _, err = f.svc.SubmitGround(context.Background(), updated.ID, "bob", "rebuttal")
	if err != nil {
		t.Fatalf("second ground: %v", err)
	}
	if updated.ChallengerHP != 590 || updated.ChallengedHP != 580 {
		t.Fatalf("hp pools = %d/%d, want 590/580", updated.ChallengerHP, updated.ChallengedHP)
	}
	if updated.CurrentTurnUserID != "alice" {
		t.Fatalf("turn holder = %q, want alice again", updated.CurrentTurnUserID)
	}
}

func TestSubmitGroundExhaustionEndsBattle(t *testing.T) {
	f := newFixture(t)
	battle := f.mustActivate(t, 180)

	f.clock.Advance(200 * time.Second)
	updated, msg, err := f.svc.SubmitGround(context.Background(), battle.ID, "alice", "too late")
	if err != nil {
		t.Fatalf("SubmitGround: %v", err)
	}
	if updated.Status != StatusEnded || updated.EndReason != EndReasonHPZero {
		t.Fatalf("got %s/%s, want ENDED/hp_zero", updated.Status, updated.EndReason)
	}
	if updated.WinnerID != "bob" {
		t.Fatalf("winner = %q, want bob", updated.WinnerID)
	}
	if updated.ChallengerHP != 0 {
		t.Fatalf("challenger HP = %d, want 0 (charge capped at pool)", updated.ChallengerHP)
	}
	if updated.CurrentTurnUserID != "" || updated.TurnStartedAt != nil {
		t.Fatal("ended battle must clear turn fields")
	}
	if msg.HPChange != -180 {
		t.Fatalf("charge = %d, want -180", msg.HPChange)
	}
	if got := f.hub.typesOn(battle.ID); got[len(got)-1] != broadcast.EventBattleEnd {
		t.Fatalf("expected battle:end last, got %v", got)
	}
}

func TestSubmitGroundOutOfTurnLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	battle := f.mustActivate(t, 600)

	f.clock.Advance(30 * time.Second)
	_, _, err := f.svc.SubmitGround(context.Background(), battle.ID, "bob", "not my turn yet")
	assertCode(t, err, apperrors.CodeBattleNotYourTurn)

	stored, getErr := f.store.GetBattle(context.Background(), battle.ID)
	if getErr != nil {
		t.Fatalf("GetBattle: %v", getErr)
	}
	if stored.Version != battle.Version {
		t.Fatalf("version moved %d -> %d on a rejected submission", battle.Version, stored.Version)
	}
	if stored.ChallengerHP != 600 || stored.ChallengedHP != 600 {
		t.Fatalf("hp mutated to %d/%d on a rejected submission", stored.ChallengerHP, stored.ChallengedHP)
	}
}

func TestSubmitGroundValidation(t *testing.T) {
	f := newFixture(t)
	battle := f.mustActivate(t, 600)

	_, _, err := f.svc.SubmitGround(context.Background(), battle.ID, "alice", "   ")
	assertCode(t, err, apperrors.CodeGroundEmpty)

	_, _, err = f.svc.SubmitGround(context.Background(), battle.ID, "alice", strings.Repeat("x", 5001))
	assertCode(t, err, apperrors.CodeGroundTooLong)

	_, _, err = f.svc.SubmitGround(context.Background(), battle.ID, "alice", "contains a slur")
	assertCode(t, err, apperrors.CodeContentRejected)

	_, _, err = f.svc.SubmitGround(context.Background(), battle.ID, "mallory", "let me in")
	assertCode(t, err, apperrors.CodeBattleNotParticipant)

	pending := f.mustChallengeOnTopic(t, "topic-9")
	_, _, err = f.svc.SubmitGround(context.Background(), pending.ID, "alice", "eager")
	assertCode(t, err, apperrors.CodeBattleNotActive)
}

func (f *fixture) mustChallengeOnTopic(t *testing.T, topicID string) Battle {
	t.Helper()
	battle, err := f.svc.CreateChallenge(context.Background(), "alice", CreateChallengeInput{
		ChallengedID:    "bob",
		TopicID:         topicID,
		DurationSeconds: 600,
	})
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	return battle
}

func TestSubmitGroundLosesVersionRace(t *testing.T) {
	f := newFixture(t)
	battle := f.mustActivate(t, 600)

	// A competing writer commits between our read and our CAS.
	raced := false
	f.store.beforeUpdate = func() {
		if raced {
			return
		}
		raced = true
		f.store.mu.Lock()
		current := f.store.battles[battle.ID]
		current.Version++
		f.store.battles[battle.ID] = current
		f.store.mu.Unlock()
	}

	f.clock.Advance(10 * time.Second)
	_, _, err := f.svc.SubmitGround(context.Background(), battle.ID, "alice", "racing")
	assertCode(t, err, apperrors.CodeBattleTurnConflict)
}

func TestResign(t *testing.T) {
	f := newFixture(t)
	battle := f.mustActivate(t, 600)

	// Resigning out of turn is allowed.
	updated, err := f.svc.Resign(context.Background(), battle.ID, "bob")
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if updated.Status != StatusEnded || updated.EndReason != EndReasonResigned {
		t.Fatalf("got %s/%s, want ENDED/resigned", updated.Status, updated.EndReason)
	}
	if updated.WinnerID != "alice" {
		t.Fatalf("winner = %q, want alice", updated.WinnerID)
	}

	_, err = f.svc.Resign(context.Background(), battle.ID, "alice")
	assertCode(t, err, apperrors.CodeBattleAlreadyEnded)
}

func TestResignGuards(t *testing.T) {
	f := newFixture(t)
	battle := f.mustChallenge(t, 600)

	_, err := f.svc.Resign(context.Background(), battle.ID, "alice")
	assertCode(t, err, apperrors.CodeBattleNotActive)

	_, err = f.svc.Resign(context.Background(), battle.ID, "mallory")
	assertCode(t, err, apperrors.CodeBattleNotParticipant)
}

func TestForceEnd(t *testing.T) {
	f := newFixture(t)

	// Works on a battle that never went active.
	pending := f.mustChallenge(t, 600)
	ended, err := f.svc.ForceEnd(context.Background(), pending.ID, ForceEndInput{})
	if err != nil {
		t.Fatalf("ForceEnd pending: %v", err)
	}
	if ended.Status != StatusEnded || ended.EndReason != EndReasonAdminForceEnded {
		t.Fatalf("got %s/%s, want ENDED/admin_force_ended", ended.Status, ended.EndReason)
	}
	if ended.WinnerID != "" {
		t.Fatalf("winner = %q, want none", ended.WinnerID)
	}

	active := f.mustActivateOnTopic(t, "topic-2")
	_, err = f.svc.ForceEnd(context.Background(), active.ID, ForceEndInput{WinnerID: "mallory"})
	assertCode(t, err, apperrors.CodeBattleInvalidWinner)

	ended, err = f.svc.ForceEnd(context.Background(), active.ID, ForceEndInput{WinnerID: "bob", Note: "rule violation"})
	if err != nil {
		t.Fatalf("ForceEnd active: %v", err)
	}
	if ended.WinnerID != "bob" {
		t.Fatalf("winner = %q, want bob", ended.WinnerID)
	}

	_, err = f.svc.ForceEnd(context.Background(), active.ID, ForceEndInput{})
	assertCode(t, err, apperrors.CodeBattleAlreadyEnded)
}

func (f *fixture) mustActivateOnTopic(t *testing.T, topicID string) Battle {
	t.Helper()
	battle := f.mustChallengeOnTopic(t, topicID)
	battle, err := f.svc.RespondToChallenge(context.Background(), battle.ID, "bob", RespondToChallengeInput{Action: RespondActionAccept})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return battle
}

func TestGetBattleLazyReconcile(t *testing.T) {
	f := newFixture(t)
	battle := f.mustActivate(t, 180)

	f.clock.Advance(181 * time.Second)
	got, err := f.svc.GetBattle(context.Background(), battle.ID)
	if err != nil {
		t.Fatalf("GetBattle: %v", err)
	}
	if got.Status != StatusEnded || got.EndReason != EndReasonAbandoned {
		t.Fatalf("got %s/%s, want ENDED/abandoned", got.Status, got.EndReason)
	}
	if got.WinnerID != "bob" {
		t.Fatalf("winner = %q, want opponent bob", got.WinnerID)
	}
	if got.ChallengerHP != 0 {
		t.Fatalf("abandoning holder HP = %d, want 0", got.ChallengerHP)
	}
}

func TestGetBattleNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetBattle(context.Background(), "missing")
	assertCode(t, err, apperrors.CodeBattleNotFound)
}

func TestActiveBattleForUser(t *testing.T) {
	f := newFixture(t)
	battle := f.mustActivate(t, 600)

	got, err := f.svc.ActiveBattleForUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ActiveBattleForUser: %v", err)
	}
	if got.ID != battle.ID {
		t.Fatalf("battle = %q, want %q", got.ID, battle.ID)
	}

	// Once the holder's clock is drained, the lazy reconcile retires the
	// battle and the lookup reports not-found.
	f.clock.Advance(601 * time.Second)
	_, err = f.svc.ActiveBattleForUser(context.Background(), "alice")
	assertCode(t, err, apperrors.CodeBattleNotFound)

	stored, getErr := f.store.GetBattle(context.Background(), battle.ID)
	if getErr != nil {
		t.Fatalf("GetBattle: %v", getErr)
	}
	if stored.Status != StatusEnded || stored.EndReason != EndReasonAbandoned {
		t.Fatalf("stored battle %s/%s, want ENDED/abandoned", stored.Status, stored.EndReason)
	}
}

func TestListBattles(t *testing.T) {
	f := newFixture(t)
	f.mustChallengeOnTopic(t, "topic-1")
	f.clock.Advance(time.Second)
	f.mustActivateOnTopic(t, "topic-2")

	page, err := f.svc.ListBattles(context.Background(), ListBattlesFilter{Status: StatusActive})
	if err != nil {
		t.Fatalf("ListBattles: %v", err)
	}
	if len(page.Battles) != 1 || page.Battles[0].TopicID != "topic-2" {
		t.Fatalf("active filter returned %+v", page.Battles)
	}

	page, err = f.svc.ListBattles(context.Background(), ListBattlesFilter{UserID: "alice"})
	if err != nil {
		t.Fatalf("ListBattles: %v", err)
	}
	if len(page.Battles) != 2 {
		t.Fatalf("user filter returned %d battles, want 2", len(page.Battles))
	}

	_, err = f.svc.ListBattles(context.Background(), ListBattlesFilter{Status: "LIMBO"})
	assertCode(t, err, apperrors.CodeChallengeInvalidAction)
}

func TestPostComment(t *testing.T) {
	f := newFixture(t)
	battle := f.mustActivate(t, 600)

	comment, err := f.svc.PostComment(context.Background(), battle.ID, "carol", "great opening")
	if err != nil {
		t.Fatalf("PostComment: %v", err)
	}
	if comment.UserID != "carol" || comment.BattleID != battle.ID {
		t.Fatalf("comment = %+v", comment)
	}
	if got := f.hub.typesOn(battle.ID); got[len(got)-1] != broadcast.EventBattleComment {
		t.Fatalf("expected battle:comment broadcast, got %v", got)
	}

	_, err = f.svc.PostComment(context.Background(), battle.ID, "carol", strings.Repeat("x", 501))
	assertCode(t, err, apperrors.CodeCommentTooLong)

	_, err = f.svc.PostComment(context.Background(), battle.ID, "carol", " ")
	assertCode(t, err, apperrors.CodeCommentEmpty)

	_, err = f.svc.PostComment(context.Background(), battle.ID, "banned", "hello")
	assertCode(t, err, apperrors.CodeUserBlocklisted)

	// Commentary stays open after the battle ends.
	if _, err := f.svc.Resign(context.Background(), battle.ID, "alice"); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if _, err := f.svc.PostComment(context.Background(), battle.ID, "carol", "gg"); err != nil {
		t.Fatalf("comment after end: %v", err)
	}

	page, err := f.svc.ListComments(context.Background(), battle.ID, 0, "")
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(page.Comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(page.Comments))
	}
}

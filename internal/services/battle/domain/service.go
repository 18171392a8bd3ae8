package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/agorahq/arena/internal/platform/errors"
	"github.com/agorahq/arena/internal/platform/id"
	"github.com/agorahq/arena/internal/services/battle/broadcast"
)

const (
	maxGroundLength  = 5000
	maxTauntLength   = 500
	maxCommentLength = 500

	defaultPageSize = 20
	maxPageSize     = 100

	// defaultChallengeTTL bounds how long a PENDING or NEGOTIATING
	// challenge may wait before the sweep retires it.
	defaultChallengeTTL = 24 * time.Hour
)

// Store is the persistence boundary for battle state. Implementations must
// apply UpdateBattle and its transcript appends atomically, rejecting the
// write with ErrVersionMismatch when the expected version no longer matches.
// A successful update persists and returns the battle with Version bumped to
// expectedVersion+1.
type Store interface {
	CreateBattle(ctx context.Context, battle Battle, messages []Message) error
	GetBattle(ctx context.Context, battleID string) (Battle, error)
	UpdateBattle(ctx context.Context, battle Battle, expectedVersion int64, messages []Message) (Battle, error)
	ListBattles(ctx context.Context, filter ListBattlesFilter) (BattlePage, error)
	ActiveBattleForUser(ctx context.Context, userID string) (Battle, error)
	ListStaleChallenges(ctx context.Context, cutoff time.Time, limit int) ([]Battle, error)
	ListOverdueActiveBattles(ctx context.Context, now time.Time, limit int) ([]Battle, error)
	ListMessages(ctx context.Context, battleID string, pageSize int, pageToken string) (MessagePage, error)
	AppendComment(ctx context.Context, comment Comment) error
	ListComments(ctx context.Context, battleID string, pageSize int, pageToken string) (CommentPage, error)
	DeleteBattle(ctx context.Context, battleID string) error
}

// Broadcaster pushes events to live subscribers. Delivery is best-effort and
// must never block state transitions.
type Broadcaster interface {
	Broadcast(channel string, event broadcast.Event)
}

// Blocklist answers whether a user is barred from battles. The moderation
// source of truth lives outside this service.
type Blocklist interface {
	IsBlocked(ctx context.Context, userID string) (bool, error)
}

// ContentFilter vetoes submitted text. The profanity pipeline lives outside
// this service; a nil filter accepts everything.
type ContentFilter interface {
	Review(ctx context.Context, content string) error
}

// ListBattlesFilter narrows battle listings. Zero values match everything.
type ListBattlesFilter struct {
	Status    Status
	TopicID   string
	UserID    string
	PageSize  int
	PageToken string
}

// BattlePage is one page of battle listings.
type BattlePage struct {
	Battles       []Battle
	NextPageToken string
}

// MessagePage is one page of a battle transcript, oldest first.
type MessagePage struct {
	Messages      []Message
	NextPageToken string
}

// CommentPage is one page of observer comments, oldest first.
type CommentPage struct {
	Comments      []Comment
	NextPageToken string
}

// TurnChange is the battle:turn event payload.
type TurnChange struct {
	BattleID          string     `json:"battle_id"`
	CurrentTurnUserID string     `json:"current_turn_user_id"`
	TurnStartedAt     *time.Time `json:"turn_started_at,omitempty"`
	ChallengerHP      int        `json:"challenger_hp"`
	ChallengedHP      int        `json:"challenged_hp"`
}

// EndNotice is the battle:end event payload.
type EndNotice struct {
	BattleID  string     `json:"battle_id"`
	WinnerID  string     `json:"winner_id,omitempty"`
	EndReason EndReason  `json:"end_reason"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// ServiceConfig wires the battle service dependencies.
type ServiceConfig struct {
	Store         Store
	Broadcaster   Broadcaster
	Blocklist     Blocklist
	ContentFilter ContentFilter
	Clock         func() time.Time
	NewID         func() (string, error)
	ChallengeTTL  time.Duration
}

// Service orchestrates the battle lifecycle.
type Service struct {
	store        Store
	broadcaster  Broadcaster
	blocklist    Blocklist
	filter       ContentFilter
	clock        func() time.Time
	newID        func() (string, error)
	challengeTTL time.Duration
	tracer       trace.Tracer
}

// NewService constructs battle domain use-cases.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = defaultChallengeTTL
	}
	return &Service{
		store:        cfg.Store,
		broadcaster:  cfg.Broadcaster,
		blocklist:    cfg.Blocklist,
		filter:       cfg.ContentFilter,
		clock:        cfg.Clock,
		newID:        cfg.NewID,
		challengeTTL: cfg.ChallengeTTL,
		tracer:       otel.Tracer("arena/battle"),
	}
}

// CreateChallengeInput describes one challenge request.
type CreateChallengeInput struct {
	ChallengedID        string
	TopicID             string
	DurationSeconds     int
	Taunt               string
	ChallengerSide      Side
	ChallengerOpinionID string
	ChallengedOpinionID string
}

// CreateChallenge opens a PENDING battle between two users on a topic.
func (s *Service) CreateChallenge(ctx context.Context, challengerID string, input CreateChallengeInput) (Battle, error) {
	ctx, span := s.tracer.Start(ctx, "battle.CreateChallenge")
	defer span.End()

	challengerID = strings.TrimSpace(challengerID)
	challengedID := strings.TrimSpace(input.ChallengedID)
	topicID := strings.TrimSpace(input.TopicID)
	taunt := strings.TrimSpace(input.Taunt)

	if challengerID == "" {
		return Battle{}, apperrors.New(apperrors.CodeUnauthenticated, "challenger identity is required")
	}
	if challengedID == "" || topicID == "" {
		return Battle{}, apperrors.New(apperrors.CodeChallengeInvalidTarget, "challenged user and topic are required")
	}
	if challengedID == challengerID {
		return Battle{}, apperrors.New(apperrors.CodeChallengeSelfTarget, "cannot challenge yourself")
	}
	if !DurationAllowed(input.DurationSeconds) {
		return Battle{}, apperrors.WithMetadata(apperrors.CodeChallengeInvalidDuration,
			fmt.Sprintf("duration %d is not an allowed option", input.DurationSeconds),
			map[string]string{"Duration": strconv.Itoa(input.DurationSeconds)})
	}
	if len([]rune(taunt)) > maxTauntLength {
		return Battle{}, apperrors.New(apperrors.CodeChallengeTauntTooLong, "challenge taunt exceeds length limit")
	}

	challengerSide := input.ChallengerSide
	if challengerSide == "" {
		challengerSide = SideA
	}
	if !challengerSide.Valid() {
		return Battle{}, apperrors.New(apperrors.CodeChallengeInvalidTarget, "challenger side must be A or B")
	}

	for _, userID := range []string{challengerID, challengedID} {
		if err := s.checkBlocklist(ctx, userID); err != nil {
			return Battle{}, err
		}
	}
	if taunt != "" {
		if err := s.reviewContent(ctx, taunt); err != nil {
			return Battle{}, err
		}
	}

	now := s.clock().UTC()
	battleID, err := s.newID()
	if err != nil {
		return Battle{}, fmt.Errorf("generate battle id: %w", err)
	}
	span.SetAttributes(attribute.String("battle.id", battleID))

	battle := Battle{
		ID:                  battleID,
		TopicID:             topicID,
		ChallengerID:        challengerID,
		ChallengedID:        challengedID,
		ChallengerSide:      challengerSide,
		ChallengedSide:      challengerSide.Opposite(),
		ChallengerOpinionID: strings.TrimSpace(input.ChallengerOpinionID),
		ChallengedOpinionID: strings.TrimSpace(input.ChallengedOpinionID),
		Status:              StatusPending,
		DurationSeconds:     input.DurationSeconds,
		ChallengerHP:        input.DurationSeconds,
		ChallengedHP:        input.DurationSeconds,
		AwaitingUserID:      challengedID,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	var messages []Message
	if taunt != "" {
		tauntMsg, msgErr := s.newMessage(battleID, RoleHost, challengerID, taunt, 0, challengedID, now)
		if msgErr != nil {
			return Battle{}, msgErr
		}
		messages = append(messages, tauntMsg)
	}

	if err := s.store.CreateBattle(ctx, battle, messages); err != nil {
		if errors.Is(err, ErrConflict) {
			return Battle{}, apperrors.Wrap(apperrors.CodeChallengeDuplicate,
				"unresolved battle already exists for this pair and topic", err)
		}
		return Battle{}, fmt.Errorf("create battle: %w", err)
	}

	s.broadcastState(battle)
	s.pushToUser(battle.ChallengedID, broadcast.Event{Type: broadcast.EventBattleState, Payload: battle})
	return battle, nil
}

// Challenge response actions.
const (
	RespondActionAccept  = "accept"
	RespondActionDecline = "decline"
	RespondActionCounter = "counter"
)

// RespondToChallengeInput describes one answer to an open challenge.
type RespondToChallengeInput struct {
	Action                 string
	CounterDurationSeconds int
}

// RespondToChallenge resolves or renegotiates an open challenge. While
// PENDING only the challenged party may answer; after a counter the gate
// swaps to whichever side did not propose the current terms.
func (s *Service) RespondToChallenge(ctx context.Context, battleID, userID string, input RespondToChallengeInput) (Battle, error) {
	ctx, span := s.tracer.Start(ctx, "battle.RespondToChallenge",
		trace.WithAttributes(attribute.String("battle.id", battleID), attribute.String("battle.action", input.Action)))
	defer span.End()

	action := strings.ToLower(strings.TrimSpace(input.Action))
	switch action {
	case RespondActionAccept, RespondActionDecline, RespondActionCounter:
	default:
		return Battle{}, apperrors.New(apperrors.CodeChallengeInvalidAction,
			fmt.Sprintf("unknown challenge action %q", input.Action))
	}

	battle, err := s.loadBattle(ctx, battleID)
	if err != nil {
		return Battle{}, err
	}
	if !battle.IsParticipant(userID) {
		return Battle{}, apperrors.New(apperrors.CodeBattleNotParticipant, "only participants can respond to a challenge")
	}
	if battle.Status != StatusPending && battle.Status != StatusNegotiating {
		return Battle{}, apperrors.New(apperrors.CodeChallengeAlreadyResponded, "challenge has already been resolved")
	}
	if userID != battle.AwaitingUserID {
		return Battle{}, apperrors.New(apperrors.CodeChallengeNotAwaitingUser, "challenge is awaiting the other party")
	}

	now := s.clock().UTC()
	expected := battle.Version

	var messages []Message
	switch action {
	case RespondActionAccept:
		battle.Status = StatusActive
		battle.CurrentTurnUserID = battle.ChallengerID // challenger always opens
		battle.TurnStartedAt = &now
		battle.AwaitingUserID = ""
		msg, msgErr := s.newMessage(battle.ID, RoleSystem, "",
			fmt.Sprintf("Battle started. %s opens with %d seconds on each clock.", battle.ChallengerID, battle.DurationSeconds),
			0, "", now)
		if msgErr != nil {
			return Battle{}, msgErr
		}
		messages = append(messages, msg)

	case RespondActionDecline:
		battle = endBattle(battle, "", EndReasonDeclined, now)
		msg, msgErr := s.newMessage(battle.ID, RoleSystem, "", "Challenge declined.", 0, "", now)
		if msgErr != nil {
			return Battle{}, msgErr
		}
		messages = append(messages, msg)

	case RespondActionCounter:
		if !DurationAllowed(input.CounterDurationSeconds) {
			return Battle{}, apperrors.WithMetadata(apperrors.CodeChallengeInvalidDuration,
				fmt.Sprintf("counter duration %d is not an allowed option", input.CounterDurationSeconds),
				map[string]string{"Duration": strconv.Itoa(input.CounterDurationSeconds)})
		}
		battle.Status = StatusNegotiating
		battle.DurationSeconds = input.CounterDurationSeconds
		battle.ChallengerHP = input.CounterDurationSeconds
		battle.ChallengedHP = input.CounterDurationSeconds
		battle.AwaitingUserID = battle.Opponent(userID)
		msg, msgErr := s.newMessage(battle.ID, RoleSystem, "",
			fmt.Sprintf("Counter-proposal: %d seconds per side.", input.CounterDurationSeconds),
			0, "", now)
		if msgErr != nil {
			return Battle{}, msgErr
		}
		messages = append(messages, msg)
	}

	battle.UpdatedAt = now
	updated, err := s.commit(ctx, battle, expected, messages)
	if err != nil {
		return Battle{}, err
	}

	if updated.Status == StatusEnded {
		s.broadcastEnd(updated)
	} else {
		s.broadcastState(updated)
	}
	s.pushToUser(updated.Opponent(userID), broadcast.Event{Type: broadcast.EventBattleState, Payload: updated})
	return updated, nil
}

// SubmitGround applies one turn: it charges the turn holder's HP for the
// elapsed wall-clock time, appends the argument to the transcript, and either
// ends the battle on exhaustion or passes the turn. The whole transition is a
// single compare-and-swap against the battle row, so a racing duplicate
// submission loses cleanly instead of double-charging.
func (s *Service) SubmitGround(ctx context.Context, battleID, userID, content string) (Battle, Message, error) {
	ctx, span := s.tracer.Start(ctx, "battle.SubmitGround",
		trace.WithAttributes(attribute.String("battle.id", battleID)))
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return Battle{}, Message{}, apperrors.New(apperrors.CodeGroundEmpty, "ground content is required")
	}
	if len([]rune(content)) > maxGroundLength {
		return Battle{}, Message{}, apperrors.WithMetadata(apperrors.CodeGroundTooLong,
			"ground content exceeds length limit",
			map[string]string{"MaxLength": strconv.Itoa(maxGroundLength)})
	}
	if err := s.reviewContent(ctx, content); err != nil {
		return Battle{}, Message{}, err
	}

	battle, err := s.loadBattle(ctx, battleID)
	if err != nil {
		return Battle{}, Message{}, err
	}
	if battle.Status.Terminal() {
		return Battle{}, Message{}, apperrors.New(apperrors.CodeBattleAlreadyEnded, "battle has already ended")
	}
	if battle.Status != StatusActive {
		return Battle{}, Message{}, apperrors.New(apperrors.CodeBattleNotActive, "battle is not active")
	}
	if !battle.IsParticipant(userID) {
		return Battle{}, Message{}, apperrors.New(apperrors.CodeBattleNotParticipant, "only participants can submit grounds")
	}
	if userID != battle.CurrentTurnUserID {
		return Battle{}, Message{}, apperrors.New(apperrors.CodeBattleNotYourTurn, "it is the opponent's turn")
	}

	now := s.clock().UTC()
	expected := battle.Version
	remaining := battle.HPFor(userID)
	cost := TurnCost(*battle.TurnStartedAt, now, remaining)
	newHP := remaining - cost

	ground, err := s.newMessage(battle.ID, RoleParticipant, userID, content, -cost, userID, now)
	if err != nil {
		return Battle{}, Message{}, err
	}
	messages := []Message{ground}

	battle = battle.withHP(userID, newHP)
	if newHP <= 0 {
		winner := battle.Opponent(userID)
		battle = endBattle(battle, winner, EndReasonHPZero, now)
		result, msgErr := s.newMessage(battle.ID, RoleSystem, "",
			fmt.Sprintf("%s ran out of time. %s wins the battle.", userID, winner), 0, "", now)
		if msgErr != nil {
			return Battle{}, Message{}, msgErr
		}
		messages = append(messages, result)
	} else {
		battle.CurrentTurnUserID = battle.Opponent(userID)
		battle.TurnStartedAt = &now
		pass, msgErr := s.newMessage(battle.ID, RoleSystem, "",
			fmt.Sprintf("Turn passes to %s.", battle.CurrentTurnUserID), 0, "", now)
		if msgErr != nil {
			return Battle{}, Message{}, msgErr
		}
		messages = append(messages, pass)
	}
	battle.UpdatedAt = now

	updated, err := s.commit(ctx, battle, expected, messages)
	if err != nil {
		return Battle{}, Message{}, err
	}

	s.broadcast(updated.ID, broadcast.Event{Type: broadcast.EventBattleMessage, Payload: ground})
	if updated.Status.Terminal() {
		s.broadcastEnd(updated)
	} else {
		s.broadcast(updated.ID, broadcast.Event{Type: broadcast.EventBattleTurn, Payload: TurnChange{
			BattleID:          updated.ID,
			CurrentTurnUserID: updated.CurrentTurnUserID,
			TurnStartedAt:     updated.TurnStartedAt,
			ChallengerHP:      updated.ChallengerHP,
			ChallengedHP:      updated.ChallengedHP,
		}})
		s.pushToUser(updated.CurrentTurnUserID, broadcast.Event{Type: broadcast.EventBattleTurn, Payload: TurnChange{
			BattleID:          updated.ID,
			CurrentTurnUserID: updated.CurrentTurnUserID,
			TurnStartedAt:     updated.TurnStartedAt,
			ChallengerHP:      updated.ChallengerHP,
			ChallengedHP:      updated.ChallengedHP,
		}})
	}
	return updated, ground, nil
}

// Resign immediately ends an active battle in the opponent's favor,
// regardless of HP split or whose turn it is.
func (s *Service) Resign(ctx context.Context, battleID, userID string) (Battle, error) {
	ctx, span := s.tracer.Start(ctx, "battle.Resign",
		trace.WithAttributes(attribute.String("battle.id", battleID)))
	defer span.End()

	battle, err := s.loadBattle(ctx, battleID)
	if err != nil {
		return Battle{}, err
	}
	if !battle.IsParticipant(userID) {
		return Battle{}, apperrors.New(apperrors.CodeBattleNotParticipant, "only participants can resign")
	}
	if battle.Status.Terminal() {
		return Battle{}, apperrors.New(apperrors.CodeBattleAlreadyEnded, "battle has already ended")
	}
	if battle.Status != StatusActive {
		return Battle{}, apperrors.New(apperrors.CodeBattleNotActive, "battle is not active")
	}

	now := s.clock().UTC()
	expected := battle.Version
	winner := battle.Opponent(userID)
	battle = endBattle(battle, winner, EndReasonResigned, now)
	battle.UpdatedAt = now

	msg, err := s.newMessage(battle.ID, RoleSystem, "",
		fmt.Sprintf("%s resigned. %s wins the battle.", userID, winner), 0, "", now)
	if err != nil {
		return Battle{}, err
	}

	updated, err := s.commit(ctx, battle, expected, []Message{msg})
	if err != nil {
		return Battle{}, err
	}
	s.broadcastEnd(updated)
	s.pushToUser(winner, broadcast.Event{Type: broadcast.EventBattleEnd, Payload: endNotice(updated)})
	return updated, nil
}

// ForceEndInput carries admin moderation parameters.
type ForceEndInput struct {
	WinnerID string
	Note     string
}

// ForceEnd terminates any non-terminal battle on behalf of moderation. The
// winner is optional and must be a participant when set.
func (s *Service) ForceEnd(ctx context.Context, battleID string, input ForceEndInput) (Battle, error) {
	ctx, span := s.tracer.Start(ctx, "battle.ForceEnd",
		trace.WithAttributes(attribute.String("battle.id", battleID)))
	defer span.End()

	battle, err := s.loadBattle(ctx, battleID)
	if err != nil {
		return Battle{}, err
	}
	if battle.Status.Terminal() {
		return Battle{}, apperrors.New(apperrors.CodeBattleAlreadyEnded, "battle has already ended")
	}

	winnerID := strings.TrimSpace(input.WinnerID)
	if winnerID != "" && !battle.IsParticipant(winnerID) {
		return Battle{}, apperrors.New(apperrors.CodeBattleInvalidWinner, "winner must be a battle participant")
	}

	now := s.clock().UTC()
	expected := battle.Version
	battle = endBattle(battle, winnerID, EndReasonAdminForceEnded, now)
	battle.UpdatedAt = now

	content := "Battle ended by a moderator."
	if note := strings.TrimSpace(input.Note); note != "" {
		content = fmt.Sprintf("Battle ended by a moderator: %s", note)
	}
	msg, err := s.newMessage(battle.ID, RoleSystem, "", content, 0, "", now)
	if err != nil {
		return Battle{}, err
	}

	updated, err := s.commit(ctx, battle, expected, []Message{msg})
	if err != nil {
		return Battle{}, err
	}
	s.broadcastEnd(updated)
	return updated, nil
}

// GetBattle loads one battle, lazily reconciling an overdue turn before
// returning so readers never observe a battle that should already have been
// abandoned.
func (s *Service) GetBattle(ctx context.Context, battleID string) (Battle, error) {
	battle, err := s.loadBattle(ctx, battleID)
	if err != nil {
		return Battle{}, err
	}
	return s.reconcileOnRead(ctx, battle)
}

// ActiveBattleForUser returns the user's current active battle, lazily
// reconciling it first. A battle retired by that reconciliation reports
// not-found, matching what a subsequent query would see.
func (s *Service) ActiveBattleForUser(ctx context.Context, userID string) (Battle, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Battle{}, apperrors.New(apperrors.CodeUnauthenticated, "user identity is required")
	}
	battle, err := s.store.ActiveBattleForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Battle{}, apperrors.Wrap(apperrors.CodeBattleNotFound, "no active battle", err)
		}
		return Battle{}, fmt.Errorf("load active battle: %w", err)
	}
	reconciled, err := s.reconcileOnRead(ctx, battle)
	if err != nil {
		return Battle{}, err
	}
	if reconciled.Status.Terminal() {
		return Battle{}, apperrors.New(apperrors.CodeBattleNotFound, "no active battle")
	}
	return reconciled, nil
}

// ListBattles returns a filtered battle listing, newest first.
func (s *Service) ListBattles(ctx context.Context, filter ListBattlesFilter) (BattlePage, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return BattlePage{}, apperrors.New(apperrors.CodeChallengeInvalidAction,
			fmt.Sprintf("unknown status filter %q", filter.Status))
	}
	filter.PageSize = clampPageSize(filter.PageSize)
	page, err := s.store.ListBattles(ctx, filter)
	if err != nil {
		return BattlePage{}, fmt.Errorf("list battles: %w", err)
	}
	return page, nil
}

// ListMessages returns a battle's transcript page, oldest first.
func (s *Service) ListMessages(ctx context.Context, battleID string, pageSize int, pageToken string) (MessagePage, error) {
	if _, err := s.loadBattle(ctx, battleID); err != nil {
		return MessagePage{}, err
	}
	page, err := s.store.ListMessages(ctx, battleID, clampPageSize(pageSize), strings.TrimSpace(pageToken))
	if err != nil {
		return MessagePage{}, fmt.Errorf("list messages: %w", err)
	}
	return page, nil
}

// PostComment appends observer chat to a battle. Comments are not turn-gated
// and stay open after a battle ends.
func (s *Service) PostComment(ctx context.Context, battleID, userID, content string) (Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Comment{}, apperrors.New(apperrors.CodeCommentEmpty, "comment content is required")
	}
	if len([]rune(content)) > maxCommentLength {
		return Comment{}, apperrors.WithMetadata(apperrors.CodeCommentTooLong,
			"comment content exceeds length limit",
			map[string]string{"MaxLength": strconv.Itoa(maxCommentLength)})
	}
	if err := s.checkBlocklist(ctx, userID); err != nil {
		return Comment{}, err
	}
	if err := s.reviewContent(ctx, content); err != nil {
		return Comment{}, err
	}

	battle, err := s.loadBattle(ctx, battleID)
	if err != nil {
		return Comment{}, err
	}

	commentID, err := s.newID()
	if err != nil {
		return Comment{}, fmt.Errorf("generate comment id: %w", err)
	}
	comment := Comment{
		ID:        commentID,
		BattleID:  battle.ID,
		UserID:    userID,
		Content:   content,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.store.AppendComment(ctx, comment); err != nil {
		return Comment{}, fmt.Errorf("append comment: %w", err)
	}
	s.broadcast(battle.ID, broadcast.Event{Type: broadcast.EventBattleComment, Payload: comment})
	return comment, nil
}

// ListComments returns a battle's observer chat page, oldest first.
func (s *Service) ListComments(ctx context.Context, battleID string, pageSize int, pageToken string) (CommentPage, error) {
	if _, err := s.loadBattle(ctx, battleID); err != nil {
		return CommentPage{}, err
	}
	page, err := s.store.ListComments(ctx, battleID, clampPageSize(pageSize), strings.TrimSpace(pageToken))
	if err != nil {
		return CommentPage{}, fmt.Errorf("list comments: %w", err)
	}
	return page, nil
}

// loadBattle fetches one battle and maps storage sentinels to domain errors.
func (s *Service) loadBattle(ctx context.Context, battleID string) (Battle, error) {
	battleID = strings.TrimSpace(battleID)
	if battleID == "" {
		return Battle{}, apperrors.New(apperrors.CodeBattleNotFound, "battle id is required")
	}
	battle, err := s.store.GetBattle(ctx, battleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Battle{}, apperrors.Wrap(apperrors.CodeBattleNotFound, "battle not found", err)
		}
		return Battle{}, fmt.Errorf("load battle: %w", err)
	}
	return battle, nil
}

// commit applies one CAS transition and maps a lost race to a conflict error.
func (s *Service) commit(ctx context.Context, battle Battle, expectedVersion int64, messages []Message) (Battle, error) {
	updated, err := s.store.UpdateBattle(ctx, battle, expectedVersion, messages)
	if err != nil {
		if errors.Is(err, ErrVersionMismatch) {
			return Battle{}, apperrors.Wrap(apperrors.CodeBattleTurnConflict, "battle transition raced another update", err)
		}
		return Battle{}, fmt.Errorf("update battle: %w", err)
	}
	return updated, nil
}

func (s *Service) newMessage(battleID string, role Role, userID, content string, hpChange int, targetUserID string, at time.Time) (Message, error) {
	msgID, err := s.newID()
	if err != nil {
		return Message{}, fmt.Errorf("generate message id: %w", err)
	}
	return Message{
		ID:           msgID,
		BattleID:     battleID,
		Role:         role,
		UserID:       userID,
		Content:      content,
		HPChange:     hpChange,
		TargetUserID: targetUserID,
		CreatedAt:    at,
	}, nil
}

func (s *Service) checkBlocklist(ctx context.Context, userID string) error {
	if s.blocklist == nil {
		return nil
	}
	blocked, err := s.blocklist.IsBlocked(ctx, userID)
	if err != nil {
		return fmt.Errorf("check blocklist: %w", err)
	}
	if blocked {
		return apperrors.New(apperrors.CodeUserBlocklisted, "user is not allowed to participate in battles")
	}
	return nil
}

func (s *Service) reviewContent(ctx context.Context, content string) error {
	if s.filter == nil {
		return nil
	}
	if err := s.filter.Review(ctx, content); err != nil {
		return apperrors.Wrap(apperrors.CodeContentRejected, "content rejected by filter", err)
	}
	return nil
}

func (s *Service) broadcast(battleID string, event broadcast.Event) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Broadcast(battleID, event)
}

func (s *Service) pushToUser(userID string, event broadcast.Event) {
	if s.broadcaster == nil || userID == "" {
		return
	}
	s.broadcaster.Broadcast(broadcast.UserChannel(userID), event)
}

func (s *Service) broadcastState(battle Battle) {
	s.broadcast(battle.ID, broadcast.Event{Type: broadcast.EventBattleState, Payload: battle})
}

func (s *Service) broadcastEnd(battle Battle) {
	s.broadcast(battle.ID, broadcast.Event{Type: broadcast.EventBattleEnd, Payload: endNotice(battle)})
}

func endNotice(battle Battle) EndNotice {
	return EndNotice{
		BattleID:  battle.ID,
		WinnerID:  battle.WinnerID,
		EndReason: battle.EndReason,
		EndedAt:   battle.EndedAt,
	}
}

// endBattle moves a battle into its terminal state.
func endBattle(battle Battle, winnerID string, reason EndReason, at time.Time) Battle {
	battle.Status = StatusEnded
	battle.WinnerID = winnerID
	battle.EndReason = reason
	battle.EndedAt = &at
	battle.CurrentTurnUserID = ""
	battle.TurnStartedAt = nil
	battle.AwaitingUserID = ""
	return battle
}

func clampPageSize(size int) int {
	if size <= 0 {
		return defaultPageSize
	}
	if size > maxPageSize {
		return maxPageSize
	}
	return size
}

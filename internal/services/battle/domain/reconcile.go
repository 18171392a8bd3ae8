package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/agorahq/arena/internal/services/battle/broadcast"
)

// reconcileBatchSize bounds how many rows a single sweep pass touches.
const reconcileBatchSize = 100

// ReconcileReport summarizes one sweep pass.
type ReconcileReport struct {
	ExpiredChallenges int `json:"expired_challenges"`
	AbandonedBattles  int `json:"abandoned_battles"`
	Errors            int `json:"errors"`
}

// Reconcile runs both sweeps: it retires challenges that sat unanswered past
// the TTL and abandons active battles whose turn holder drained their clock
// without submitting. Each row is handled independently so one bad record
// cannot stall the pass. A row that loses its version race is skipped without
// counting as an error; the competing writer already advanced that battle.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	ctx, span := s.tracer.Start(ctx, "battle.Reconcile")
	defer span.End()

	var report ReconcileReport
	now := s.clock().UTC()

	expired, errCount := s.expireStaleChallenges(ctx, now)
	report.ExpiredChallenges = expired
	report.Errors += errCount

	abandoned, errCount := s.checkAbandonedBattles(ctx, now)
	report.AbandonedBattles = abandoned
	report.Errors += errCount

	span.SetAttributes(
		attribute.Int("reconcile.expired_challenges", report.ExpiredChallenges),
		attribute.Int("reconcile.abandoned_battles", report.AbandonedBattles),
		attribute.Int("reconcile.errors", report.Errors),
	)
	return report, nil
}

func (s *Service) expireStaleChallenges(ctx context.Context, now time.Time) (expired, errCount int) {
	cutoff := now.Add(-s.challengeTTL)
	stale, err := s.store.ListStaleChallenges(ctx, cutoff, reconcileBatchSize)
	if err != nil {
		log.Printf("reconcile: list stale challenges: %v", err)
		return 0, 1
	}

	for _, battle := range stale {
		if battle.Status != StatusPending && battle.Status != StatusNegotiating {
			continue
		}
		expectedVersion := battle.Version
		battle = endBattle(battle, "", EndReasonAbandoned, now)
		battle.UpdatedAt = now

		msg, err := s.newMessage(battle.ID, RoleSystem, "", "Challenge expired without a response.", 0, "", now)
		if err != nil {
			log.Printf("reconcile: challenge %s: %v", battle.ID, err)
			errCount++
			continue
		}
		updated, err := s.store.UpdateBattle(ctx, battle, expectedVersion, []Message{msg})
		if err != nil {
			if errors.Is(err, ErrVersionMismatch) {
				continue
			}
			log.Printf("reconcile: expire challenge %s: %v", battle.ID, err)
			errCount++
			continue
		}
		expired++
		s.broadcastEnd(updated)
		s.pushToUser(updated.ChallengerID, broadcast.Event{Type: broadcast.EventBattleEnd, Payload: endNotice(updated)})
		s.pushToUser(updated.ChallengedID, broadcast.Event{Type: broadcast.EventBattleEnd, Payload: endNotice(updated)})
	}
	return expired, errCount
}

func (s *Service) checkAbandonedBattles(ctx context.Context, now time.Time) (abandoned, errCount int) {
	overdue, err := s.store.ListOverdueActiveBattles(ctx, now, reconcileBatchSize)
	if err != nil {
		log.Printf("reconcile: list overdue battles: %v", err)
		return 0, 1
	}

	for _, battle := range overdue {
		if !TurnExpired(battle, now) {
			continue
		}
		if _, err := s.endAbandoned(ctx, battle, now); err != nil {
			if errors.Is(err, ErrVersionMismatch) {
				continue
			}
			log.Printf("reconcile: abandon battle %s: %v", battle.ID, err)
			errCount++
			continue
		}
		abandoned++
	}
	return abandoned, errCount
}

// endAbandoned charges the turn holder's remaining HP and ends the battle in
// the opponent's favor. Callers racing a live submission get
// ErrVersionMismatch back untranslated; the submission's outcome stands.
func (s *Service) endAbandoned(ctx context.Context, battle Battle, now time.Time) (Battle, error) {
	holder := battle.CurrentTurnUserID
	winner := battle.Opponent(holder)
	drained := battle.HPFor(holder)
	expectedVersion := battle.Version

	battle = battle.withHP(holder, 0)
	battle = endBattle(battle, winner, EndReasonAbandoned, now)
	battle.UpdatedAt = now

	charge, err := s.newMessage(battle.ID, RoleSystem, "",
		fmt.Sprintf("%s abandoned the battle. %s wins.", holder, winner), -drained, holder, now)
	if err != nil {
		return Battle{}, err
	}

	updated, err := s.store.UpdateBattle(ctx, battle, expectedVersion, []Message{charge})
	if err != nil {
		return Battle{}, err
	}
	s.broadcastEnd(updated)
	s.pushToUser(updated.ChallengerID, broadcast.Event{Type: broadcast.EventBattleEnd, Payload: endNotice(updated)})
	s.pushToUser(updated.ChallengedID, broadcast.Event{Type: broadcast.EventBattleEnd, Payload: endNotice(updated)})
	return updated, nil
}

// reconcileOnRead lazily abandons a battle whose turn expired before any
// sweep caught it, so reads never serve a battle that is already over in
// wall-clock terms.
func (s *Service) reconcileOnRead(ctx context.Context, battle Battle) (Battle, error) {
	now := s.clock().UTC()
	if !TurnExpired(battle, now) {
		return battle, nil
	}
	updated, err := s.endAbandoned(ctx, battle, now)
	if err != nil {
		if errors.Is(err, ErrVersionMismatch) {
			// A concurrent writer advanced the battle; serve their result.
			return s.loadBattle(ctx, battle.ID)
		}
		return Battle{}, fmt.Errorf("reconcile battle %s: %w", battle.ID, err)
	}
	return updated, nil
}

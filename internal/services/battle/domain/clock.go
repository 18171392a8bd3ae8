package domain

import "time"

// TurnCost converts wall-clock time spent on the current turn into the HP
// charge for the turn holder. The charge is floored to whole seconds and
// capped at the holder's remaining HP so a pool never goes negative. Elapsed
// time is always computed from server timestamps; client-reported time is
// never trusted.
func TurnCost(turnStartedAt, now time.Time, remainingHP int) int {
	if remainingHP <= 0 {
		return 0
	}
	elapsed := int(now.Sub(turnStartedAt) / time.Second)
	if elapsed <= 0 {
		return 0
	}
	if elapsed > remainingHP {
		return remainingHP
	}
	return elapsed
}

// ProjectHP returns both HP pools as observed at the given instant. Only the
// turn holder's pool drains while a battle is ACTIVE; the opponent's pool is
// frozen until the turn passes. Non-active battles project their stored
// values unchanged.
func ProjectHP(b Battle, now time.Time) (challengerHP, challengedHP int) {
	challengerHP = b.ChallengerHP
	challengedHP = b.ChallengedHP
	if b.Status != StatusActive || b.TurnStartedAt == nil {
		return challengerHP, challengedHP
	}
	switch b.CurrentTurnUserID {
	case b.ChallengerID:
		challengerHP -= TurnCost(*b.TurnStartedAt, now, challengerHP)
	case b.ChallengedID:
		challengedHP -= TurnCost(*b.TurnStartedAt, now, challengedHP)
	}
	return challengerHP, challengedHP
}

// TurnExpired reports whether the current turn holder's HP pool is fully
// drained at the given instant, meaning the battle is due for abandonment
// reconciliation even though no submission arrived.
func TurnExpired(b Battle, now time.Time) bool {
	if b.Status != StatusActive || b.TurnStartedAt == nil {
		return false
	}
	remaining := b.HPFor(b.CurrentTurnUserID)
	return TurnCost(*b.TurnStartedAt, now, remaining) >= remaining
}

// Package domain implements the battle lifecycle: challenge negotiation, the
// turn engine with its HP-as-time clock, and the reconciliation sweeps that
// retire stale state.
package domain

import (
	"errors"
	"time"
)

// Storage sentinels surfaced by Store implementations.
var (
	// ErrNotFound indicates a battle record was not found.
	ErrNotFound = errors.New("battle not found")
	// ErrConflict indicates a write collided with an existing unresolved battle.
	ErrConflict = errors.New("battle conflict")
	// ErrVersionMismatch indicates an optimistic update lost a race.
	ErrVersionMismatch = errors.New("battle version mismatch")
)

// Status is the battle lifecycle state.
type Status string

const (
	// StatusPending marks a challenge that has not been answered yet.
	StatusPending Status = "PENDING"
	// StatusNegotiating marks a challenge countered with different terms.
	StatusNegotiating Status = "NEGOTIATING"
	// StatusActive marks a battle with turns underway.
	StatusActive Status = "ACTIVE"
	// StatusEnded is the terminal state.
	StatusEnded Status = "ENDED"
)

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusNegotiating, StatusActive, StatusEnded:
		return true
	}
	return false
}

// Terminal reports whether the status rejects all further mutation.
func (s Status) Terminal() bool {
	return s == StatusEnded
}

// Side is the stance a participant defends. The two sides of a battle are
// always complementary and fixed at creation.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Valid reports whether the side is a known stance.
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// Opposite returns the complementary side.
func (s Side) Opposite() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// EndReason explains how a battle reached its terminal state.
type EndReason string

const (
	EndReasonHPZero          EndReason = "hp_zero"
	EndReasonResigned        EndReason = "resigned"
	EndReasonDeclined        EndReason = "declined"
	EndReasonAbandoned       EndReason = "abandoned"
	EndReasonAdminForceEnded EndReason = "admin_force_ended"
)

// Role classifies who authored a battle message.
type Role string

const (
	// RoleHost is the narrator framing (challenge taunts, host commentary).
	RoleHost Role = "HOST"
	// RoleSystem is mechanical notices: turn changes, HP charges, results.
	RoleSystem Role = "SYSTEM"
	// RoleParticipant is a combatant's own submitted ground.
	RoleParticipant Role = "PARTICIPANT"
)

// AllowedDurations is the fixed set of battle durations (and therefore HP
// pool sizes) a challenge may propose, in seconds.
var AllowedDurations = map[int]struct{}{
	180:  {},
	600:  {},
	1800: {},
	3600: {},
}

// DurationAllowed reports whether the proposed duration is one of the fixed options.
func DurationAllowed(seconds int) bool {
	_, ok := AllowedDurations[seconds]
	return ok
}

// Battle is the aggregate root for one 1v1 debate contest.
type Battle struct {
	ID      string `json:"id"`
	TopicID string `json:"topic_id"`

	ChallengerID        string `json:"challenger_id"`
	ChallengedID        string `json:"challenged_id"`
	ChallengerSide      Side   `json:"challenger_side"`
	ChallengedSide      Side   `json:"challenged_side"`
	ChallengerOpinionID string `json:"challenger_opinion_id,omitempty"`
	ChallengedOpinionID string `json:"challenged_opinion_id,omitempty"`

	Status          Status `json:"status"`
	DurationSeconds int    `json:"duration_seconds"`
	ChallengerHP    int    `json:"challenger_hp"`
	ChallengedHP    int    `json:"challenged_hp"`

	// CurrentTurnUserID holds the turn holder while ACTIVE; empty otherwise.
	CurrentTurnUserID string     `json:"current_turn_user_id,omitempty"`
	TurnStartedAt     *time.Time `json:"turn_started_at,omitempty"`

	// AwaitingUserID holds the party who must answer the open challenge
	// while PENDING or NEGOTIATING; empty otherwise.
	AwaitingUserID string `json:"awaiting_user_id,omitempty"`

	WinnerID  string     `json:"winner_id,omitempty"`
	EndReason EndReason  `json:"end_reason,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// Version is the optimistic concurrency token; every committed
	// transition increments it.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsParticipant reports whether the user is one of the two combatants.
func (b Battle) IsParticipant(userID string) bool {
	return userID != "" && (userID == b.ChallengerID || userID == b.ChallengedID)
}

// Opponent returns the other combatant's id, or empty for non-participants.
func (b Battle) Opponent(userID string) string {
	switch userID {
	case b.ChallengerID:
		return b.ChallengedID
	case b.ChallengedID:
		return b.ChallengerID
	}
	return ""
}

// HPFor returns the stored HP pool for the given participant.
func (b Battle) HPFor(userID string) int {
	switch userID {
	case b.ChallengerID:
		return b.ChallengerHP
	case b.ChallengedID:
		return b.ChallengedHP
	}
	return 0
}

// withHP returns a copy with the participant's HP pool replaced.
func (b Battle) withHP(userID string, hp int) Battle {
	switch userID {
	case b.ChallengerID:
		b.ChallengerHP = hp
	case b.ChallengedID:
		b.ChallengedHP = hp
	}
	return b
}

// Message is one immutable entry in a battle's canonical transcript.
type Message struct {
	ID       string `json:"id"`
	BattleID string `json:"battle_id"`
	Role     Role   `json:"role"`
	// UserID identifies the author for participant messages; empty for
	// SYSTEM entries.
	UserID  string `json:"user_id,omitempty"`
	Content string `json:"content"`
	// HPChange is the signed delta applied at this moment, zero when the
	// entry carried no charge. TargetUserID names who it applied to.
	HPChange     int       `json:"hp_change,omitempty"`
	TargetUserID string    `json:"target_user_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Comment is observer chat attached to a battle, decoupled from the turn
// machine.
type Comment struct {
	ID        string    `json:"id"`
	BattleID  string    `json:"battle_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

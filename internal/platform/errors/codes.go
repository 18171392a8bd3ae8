// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeInvalidRequest marks a request body that could not be decoded.
	CodeInvalidRequest Code = "INVALID_REQUEST"

	// Identity errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeUserBlocklisted Code = "USER_BLOCKLISTED"
	CodeCronKeyInvalid  Code = "CRON_KEY_INVALID"
	CodeAdminRequired   Code = "ADMIN_REQUIRED"

	// Challenge errors
	CodeChallengeSelfTarget       Code = "CHALLENGE_SELF_TARGET"
	CodeChallengeInvalidTarget    Code = "CHALLENGE_INVALID_TARGET"
	CodeChallengeInvalidDuration  Code = "CHALLENGE_INVALID_DURATION"
	CodeChallengeDuplicate        Code = "CHALLENGE_DUPLICATE"
	CodeChallengeInvalidAction    Code = "CHALLENGE_INVALID_ACTION"
	CodeChallengeNotAwaitingUser  Code = "CHALLENGE_NOT_AWAITING_USER"
	CodeChallengeAlreadyResponded Code = "CHALLENGE_ALREADY_RESPONDED"
	CodeChallengeTauntTooLong     Code = "CHALLENGE_TAUNT_TOO_LONG"

	// Battle errors
	CodeBattleNotFound       Code = "BATTLE_NOT_FOUND"
	CodeBattleNotActive      Code = "BATTLE_NOT_ACTIVE"
	CodeBattleAlreadyEnded   Code = "BATTLE_ALREADY_ENDED"
	CodeBattleNotParticipant Code = "BATTLE_NOT_PARTICIPANT"
	CodeBattleNotYourTurn    Code = "BATTLE_NOT_YOUR_TURN"
	CodeBattleTurnConflict   Code = "BATTLE_TURN_CONFLICT"
	CodeBattleInvalidWinner  Code = "BATTLE_INVALID_WINNER"

	// Ground errors
	CodeGroundEmpty     Code = "GROUND_EMPTY"
	CodeGroundTooLong   Code = "GROUND_TOO_LONG"
	CodeContentRejected Code = "CONTENT_REJECTED"

	// Comment errors
	CodeCommentEmpty   Code = "COMMENT_EMPTY"
	CodeCommentTooLong Code = "COMMENT_TOO_LONG"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"
)

// GRPCCode maps domain codes to gRPC status codes.
//
// The HTTP layer derives response statuses from this classification so both
// surfaces agree on the error taxonomy.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidRequest,
		CodeChallengeSelfTarget,
		CodeChallengeInvalidTarget,
		CodeChallengeInvalidDuration,
		CodeChallengeInvalidAction,
		CodeChallengeTauntTooLong,
		CodeGroundEmpty,
		CodeGroundTooLong,
		CodeContentRejected,
		CodeCommentEmpty,
		CodeCommentTooLong,
		CodeBattleInvalidWinner:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeChallengeAlreadyResponded,
		CodeBattleNotActive,
		CodeBattleAlreadyEnded:
		return codes.FailedPrecondition

	// Aborted - optimistic concurrency race lost
	case CodeBattleTurnConflict:
		return codes.Aborted

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeBattleNotFound:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeChallengeDuplicate,
		CodeConflict:
		return codes.AlreadyExists

	// PermissionDenied - identity present but not entitled
	case CodeUserBlocklisted,
		CodeCronKeyInvalid,
		CodeAdminRequired,
		CodeChallengeNotAwaitingUser,
		CodeBattleNotParticipant,
		CodeBattleNotYourTurn:
		return codes.PermissionDenied

	// Unauthenticated - no identity
	case CodeUnauthenticated:
		return codes.Unauthenticated

	default:
		return codes.Internal
	}
}

package errors

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestErrorMatchesByCode(t *testing.T) {
	err := New(CodeBattleNotYourTurn, "wrong turn")
	wrapped := fmt.Errorf("submit ground: %w", err)

	if !errors.Is(wrapped, New(CodeBattleNotYourTurn, "")) {
		t.Fatal("expected errors.Is to match by code")
	}
	if errors.Is(wrapped, New(CodeBattleNotActive, "")) {
		t.Fatal("expected mismatched codes not to match")
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("row locked")
	err := Wrap(CodeBattleTurnConflict, "transition raced", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable through Unwrap")
	}
}

func TestGRPCCodeClassification(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeChallengeInvalidDuration, codes.InvalidArgument},
		{CodeGroundEmpty, codes.InvalidArgument},
		{CodeBattleAlreadyEnded, codes.FailedPrecondition},
		{CodeBattleTurnConflict, codes.Aborted},
		{CodeBattleNotFound, codes.NotFound},
		{CodeChallengeDuplicate, codes.AlreadyExists},
		{CodeBattleNotYourTurn, codes.PermissionDenied},
		{CodeUnauthenticated, codes.Unauthenticated},
		{CodeUnknown, codes.Internal},
	}
	for _, tc := range tests {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.code, tc.want, got)
		}
	}
}

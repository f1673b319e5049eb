package txwatch

import (
	"errors"
	"fmt"
	"testing"

	xerrors "github.com/zer0-os/ZAI/internal/errors"
)

func TestIsRecordError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		target xerrors.Code
		want   bool
	}{
		{"not found matches", ErrRecordNotFound, CodeTxNotFound, true},
		{"confirmed matches", ErrRecordConfirmed, CodeTxConfirmed, true},
		{"conflict matches", ErrRecordConflict, CodeTxConflict, true},
		{"exhausted matches", ErrRecordExhausted, CodeTxExhausted, true},
		{"wrapped error matches", fmt.Errorf("claim: %w", ErrRecordExhausted), CodeTxExhausted, true},
		{"wrong code", ErrRecordNotFound, CodeTxExhausted, false},
		{"foreign error", errors.New("broker down"), CodeTxNotFound, false},
		{"nil error", nil, CodeTxNotFound, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRecordError(tc.err, tc.target); got != tc.want {
				t.Fatalf("IsRecordError(%v, %s) = %v, want %v", tc.err, tc.target, got, tc.want)
			}
		})
	}
}

func TestIsValidStatus(t *testing.T) {
	for _, status := range []Status{StatusPending, StatusChecking, StatusConfirmed, StatusFailed} {
		if !IsValidStatus(status) {
			t.Fatalf("expected %s to be valid", status)
		}
	}
	if IsValidStatus(Status("unknown")) {
		t.Fatal("expected unknown status to be invalid")
	}
}

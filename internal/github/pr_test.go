package github

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"testing"
)

func exitErrWithStderr(stderr string) error {
	return &exec.ExitError{Stderr: []byte(stderr)}
}

func TestClassifyGHError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    error
		wantMsg string
	}{
		{
			name: "no PR found",
			err:  exitErrWithStderr("GraphQL: no pull request found for branch \"fix/x\""),
			want: ErrNoPRFound,
		},
		{
			name: "auth failure 401",
			err:  exitErrWithStderr("HTTP 401: Bad credentials"),
			want: ErrAuthFailed,
		},
		{
			name: "auth failure login prompt",
			err:  exitErrWithStderr("To get started with GitHub CLI, please run: gh auth login"),
			want: ErrAuthFailed,
		},
		{
			name:    "other exit error keeps stderr",
			err:     exitErrWithStderr("could not resolve to a Repository"),
			wantMsg: "could not resolve to a Repository",
		},
		{
			name:    "non-exit error wrapped",
			err:     fmt.Errorf("binary not found"),
			wantMsg: "gh command failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyGHError(tt.err)
			if tt.want != nil {
				if !errors.Is(got, tt.want) {
					t.Errorf("classifyGHError() = %v, want %v", got, tt.want)
				}
				return
			}
			if !strings.Contains(got.Error(), tt.wantMsg) {
				t.Errorf("classifyGHError() = %v, want message containing %q", got, tt.wantMsg)
			}
		})
	}
}

package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	errInsufficient := errors.New("insufficient gil")

	tests := []struct {
		name     string
		err      error
		wantKind Kind
		wantCode string
	}{
		{
			name:     "terminal fault",
			err:      NewTerminal(CodeInsufficientFunds, errInsufficient),
			wantKind: Terminal,
			wantCode: CodeInsufficientFunds,
		},
		{
			name:     "wrapped terminal fault",
			err:      fmt.Errorf("debit usr-1: %w", NewTerminal(CodeUnknownAccount, nil)),
			wantKind: Terminal,
			wantCode: CodeUnknownAccount,
		},
		{
			name:     "transient fault",
			err:      NewTransient(CodeConflict, errors.New("version mismatch")),
			wantKind: Transient,
			wantCode: CodeConflict,
		},
		{
			name:     "untagged error defaults to transient",
			err:      errors.New("connection reset by peer"),
			wantKind: Transient,
			wantCode: CodeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKind, KindOf(tt.err))
			assert.Equal(t, tt.wantCode, CodeOf(tt.err))
			assert.Equal(t, tt.wantKind == Terminal, IsTerminal(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewTransient(CodePublishFailed, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "transient fault (publish_failed): boom", err.Error())
	assert.Equal(t, "terminal fault: unknown_account", NewTerminal(CodeUnknownAccount, nil).Error())
	assert.False(t, IsTerminal(nil))
}

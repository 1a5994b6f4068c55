package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from RunStatus
		to   RunStatus
		want bool
	}{
		{"draft to validated", StatusDraft, StatusValidated, true},
		{"validated to calculating", StatusValidated, StatusCalculating, true},
		{"calculating to calculated", StatusCalculating, StatusCalculated, true},
		{"calculated to approved", StatusCalculated, StatusApproved, true},
		{"draft to failed", StatusDraft, StatusFailed, true},
		{"calculating to failed", StatusCalculating, StatusFailed, true},
		{"no skip ahead", StatusDraft, StatusCalculated, false},
		{"no going back", StatusValidated, StatusDraft, false},
		{"no revisit", StatusCalculated, StatusCalculating, false},
		{"approved is terminal", StatusApproved, StatusFailed, false},
		{"failed is terminal", StatusFailed, StatusDraft, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestRunStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusApproved.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusDraft.IsTerminal())
	assert.False(t, StatusValidated.IsTerminal())
	assert.False(t, StatusCalculating.IsTerminal())
	assert.False(t, StatusCalculated.IsTerminal())
}

func TestParseFrequency(t *testing.T) {
	for _, valid := range []string{"PERIODIC", "MONTHLY", "ANNUAL"} {
		freq, ok := ParseFrequency(valid)
		assert.True(t, ok)
		assert.Equal(t, Frequency(valid), freq)
	}

	_, ok := ParseFrequency("WEEKLY")
	assert.False(t, ok)
	_, ok = ParseFrequency("monthly")
	assert.False(t, ok)
}

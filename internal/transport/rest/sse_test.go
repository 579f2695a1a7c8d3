package rest

import (
	"testing"

	"github.com/baechuer/waitline/internal/contracts/event"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	assert.True(t, contains([]string{"a", "b"}, "b"))
	assert.False(t, contains([]string{"a", "b"}, "c"))
	assert.False(t, contains(nil, "a"))
}

func TestApplyQueuePositions_WritesMatchingRow(t *testing.T) {
	var got *event.Frame
	write := func(f event.Frame) bool {
		got = &f
		return true
	}

	m := event.QueuePositionsMessage{QueuedParties: []event.QueuePositionEntry{
		{PartyID: "p1", Row: 1},
		{PartyID: "p2", Row: 2},
	}}

	applyQueuePositions(write, "p2", m, zerolog.Nop())

	assert.NotNil(t, got)
	assert.Equal(t, event.StatusQueuePositionUpdate, got.Status)
	assert.Equal(t, 2, *got.Position)
}

func TestApplyQueuePositions_IgnoresAbsentParty(t *testing.T) {
	called := false
	write := func(f event.Frame) bool {
		called = true
		return true
	}

	m := event.QueuePositionsMessage{QueuedParties: []event.QueuePositionEntry{{PartyID: "p1", Row: 1}}}
	applyQueuePositions(write, "unknown", m, zerolog.Nop())

	assert.False(t, called)
}

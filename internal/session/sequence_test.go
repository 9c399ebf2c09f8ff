package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequencerLatestWins(t *testing.T) {
	var s Sequencer
	first := s.Begin()
	second := s.Begin()

	assert.False(t, s.Current(first))
	assert.True(t, s.Current(second))

	applied := ""
	assert.False(t, s.Apply(first, func() { applied = "first" }))
	assert.True(t, s.Apply(second, func() { applied = "second" }))
	assert.Equal(t, "second", applied)

	// Applying does not retire the ticket; a repeated apply still wins
	// until a newer request begins.
	assert.True(t, s.Current(second))
	s.Begin()
	assert.False(t, s.Apply(second, func() { applied = "late" }))
	assert.Equal(t, "second", applied)
}

package reminder

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindercal/internal/model"
)

func at(d, h, m int) time.Time {
	return time.Date(2024, 6, d, h, m, 0, 0, time.UTC)
}

func TestBuildSlotPayloadCreate(t *testing.T) {
	p, err := BuildSlotPayload(nil, SlotDraft{
		Start: at(5, 9, 15),
		End:   at(5, 10, 45),
		Title: "  Stretch ",
		Color: "",
		Audio: WithAudio(3),
	})
	require.NoError(t, err)

	assert.Nil(t, p.ID)
	assert.Equal(t, 3, p.Weekday)
	assert.Equal(t, 555, p.StartMin)
	assert.Equal(t, 645, p.EndMin)
	assert.Equal(t, "Stretch", p.Title)
	assert.Equal(t, model.DefaultColor, p.Color)
	assert.True(t, p.IsEnabled)
	assert.Equal(t, 555, p.SortOrder)
	require.NotNil(t, p.AudioID)
	assert.Equal(t, int64(3), *p.AudioID)
	assert.Nil(t, p.Note)
}

func TestBuildSlotPayloadNextMidnight(t *testing.T) {
	p, err := BuildSlotPayload(nil, SlotDraft{Start: at(5, 23, 0), End: at(6, 0, 0), Title: "Late"})
	require.NoError(t, err)
	assert.Equal(t, 1380, p.StartMin)
	assert.Equal(t, 1440, p.EndMin)

	p, err = BuildSlotPayload(nil, SlotDraft{Start: at(5, 23, 59), End: at(6, 0, 0), Title: "Last minute"})
	require.NoError(t, err)
	assert.Equal(t, 1439, p.StartMin)
	assert.Equal(t, 1440, p.EndMin)
}

func TestBuildSlotPayloadRejections(t *testing.T) {
	cases := []struct {
		name  string
		draft SlotDraft
		want  error
	}{
		{"zero start", SlotDraft{End: at(5, 10, 0), Title: "x"}, ErrInvalidTime},
		{"zero end", SlotDraft{Start: at(5, 10, 0), Title: "x"}, ErrInvalidTime},
		{"crosses day", SlotDraft{Start: at(5, 23, 0), End: at(6, 0, 30), Title: "x"}, ErrCrossDay},
		{"two days later midnight", SlotDraft{Start: at(5, 9, 0), End: at(7, 0, 0), Title: "x"}, ErrCrossDay},
		{"empty", SlotDraft{Start: at(5, 9, 0), End: at(5, 9, 0), Title: "x"}, ErrEmptyRange},
		{"inverted", SlotDraft{Start: at(5, 10, 0), End: at(5, 9, 0), Title: "x"}, ErrEmptyRange},
		{"sub-minute", SlotDraft{Start: at(5, 9, 0), End: at(5, 9, 0).Add(40 * time.Second), Title: "x"}, ErrEmptyRange},
		{"blank title", SlotDraft{Start: at(5, 9, 0), End: at(5, 10, 0), Title: "  "}, ErrTitleRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildSlotPayload(nil, tc.draft)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestBuildSlotPayloadUsesStartLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	start := time.Date(2024, 6, 2, 22, 0, 0, 0, loc) // Sunday locally, Sunday 14:00 UTC
	end := time.Date(2024, 6, 2, 16, 0, 0, 0, time.UTC)

	p, err := BuildSlotPayload(nil, SlotDraft{Start: start, End: end, Title: "Evening"})
	require.NoError(t, err)
	assert.Equal(t, 7, p.Weekday)
	assert.Equal(t, 1320, p.StartMin)
	assert.Equal(t, 1440, p.EndMin)
}

func TestBuildSlotPayloadCarriesExistingSlot(t *testing.T) {
	audio := int64(4)
	existing := model.Slot{
		ID:        11,
		Weekday:   1,
		StartMin:  60,
		EndMin:    90,
		Title:     "Old",
		Note:      json.RawMessage(`{"k":"v"}`),
		AudioID:   &audio,
		IsEnabled: false,
		SortOrder: 7,
	}
	idx := IndexSlots([]model.Slot{existing})
	draft := SlotDraft{SlotID: 11, Start: at(5, 9, 0), End: at(5, 9, 30), Title: "New", Color: "bg-info"}

	p, err := BuildSlotPayload(idx, draft)
	require.NoError(t, err)
	require.NotNil(t, p.ID)
	assert.Equal(t, int64(11), *p.ID)
	assert.JSONEq(t, `{"k":"v"}`, string(p.Note))
	require.NotNil(t, p.AudioID)
	assert.Equal(t, int64(4), *p.AudioID)
	assert.False(t, p.IsEnabled)
	assert.Equal(t, 7, p.SortOrder)
	assert.Equal(t, "bg-info", p.Color)

	draft.Audio = NoAudio()
	p, err = BuildSlotPayload(idx, draft)
	require.NoError(t, err)
	assert.Nil(t, p.AudioID)

	draft.Audio = WithAudio(-2)
	p, err = BuildSlotPayload(idx, draft)
	require.NoError(t, err)
	assert.Nil(t, p.AudioID)

	draft.Audio = WithAudio(9)
	p, err = BuildSlotPayload(idx, draft)
	require.NoError(t, err)
	assert.Equal(t, int64(9), *p.AudioID)
}

func TestBuildSlotPayloadZeroSortOrderFallsBackToStart(t *testing.T) {
	idx := IndexSlots([]model.Slot{{ID: 2, Weekday: 3, StartMin: 0, EndMin: 30, Title: "x", IsEnabled: true}})
	p, err := BuildSlotPayload(idx, SlotDraft{SlotID: 2, Start: at(5, 8, 0), End: at(5, 8, 30), Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, 480, p.SortOrder)
	assert.True(t, p.IsEnabled)
}

func TestBuildSlotPayloadUnknownExistingIsCreateShaped(t *testing.T) {
	p, err := BuildSlotPayload(SlotIndex{}, SlotDraft{SlotID: 99, Start: at(5, 8, 0), End: at(5, 8, 30), Title: "x"})
	require.NoError(t, err)
	require.NotNil(t, p.ID)
	assert.Equal(t, int64(99), *p.ID)
	assert.True(t, p.IsEnabled)
	assert.Nil(t, p.AudioID)
}

func TestMovedEnd(t *testing.T) {
	start := at(5, 9, 0)
	assert.Equal(t, at(5, 9, 30), MovedEnd(start, time.Time{}))
	assert.Equal(t, at(5, 11, 0), MovedEnd(start, at(5, 11, 0)))
}

func TestNewEventRange(t *testing.T) {
	start, end := NewEventRange(at(5, 3, 10))
	assert.Equal(t, at(5, 5, 30), start)
	assert.Equal(t, at(5, 6, 0), end)

	start, end = NewEventRange(time.Date(2024, 6, 5, 14, 47, 31, 0, time.UTC))
	assert.Equal(t, at(5, 14, 30), start)
	assert.Equal(t, at(5, 15, 0), end)

	start, end = NewEventRange(at(5, 23, 45))
	assert.Equal(t, at(5, 23, 30), start)
	assert.Equal(t, at(6, 0, 0), end)

	_, err := BuildSlotPayload(nil, SlotDraft{Start: start, End: end, Title: "x"})
	assert.NoError(t, err)
}

func TestBuildSlotPayloadEndsAtSkippedMidnight(t *testing.T) {
	loc := santiago(t)
	start := time.Date(2024, 9, 7, 23, 0, 0, 0, loc)
	// The first instant of Sunday 2024-09-08 is 01:00 local time.
	end := model.StartOfDay(time.Date(2024, 9, 8, 0, 0, 0, 0, time.UTC), loc)

	p, err := BuildSlotPayload(nil, SlotDraft{Start: start, End: end, Title: "Late"})
	require.NoError(t, err)
	assert.Equal(t, 6, p.Weekday)
	assert.Equal(t, 1380, p.StartMin)
	assert.Equal(t, model.MinutesPerDay, p.EndMin)

	_, err = BuildSlotPayload(nil, SlotDraft{Start: start, End: end.Add(time.Minute), Title: "Late"})
	assert.ErrorIs(t, err, ErrCrossDay)
}

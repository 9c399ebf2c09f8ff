package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindercal/internal/model"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestFallbackPresets(t *testing.T) {
	disabled := slot(2, 1, 60, 90)
	disabled.IsEnabled = false
	zero := slot(3, 1, 60, 60)
	untitledSlot := slot(5, 2, 600, 645)
	untitledSlot.Title = ""
	untitledSlot.AudioID = int64Ptr(0)
	withSort := slot(6, 2, 120, 180)
	withSort.SortOrder = 4
	withSort.AudioID = int64Ptr(8)

	noWeekday := slot(10, 0, 60, 90)
	negativeStart := slot(11, 3, -30, 90)
	pastMidnight := slot(12, 3, 1400, 1500)

	presets := FallbackPresets([]model.Slot{disabled, zero, noWeekday, negativeStart, pastMidnight, untitledSlot, withSort})
	require.Len(t, presets, 2)

	p := presets[0]
	assert.Equal(t, model.PresetID("slot-5"), p.ID)
	assert.Equal(t, "Untitled", p.Name)
	assert.Equal(t, 45, p.DurationMin)
	assert.Nil(t, p.AudioID)
	assert.True(t, p.Enabled())
	assert.True(t, p.IsFallback)
	assert.Equal(t, int64(5), p.SourceSlotID)
	assert.Equal(t, 600, *p.SortOrder)

	assert.Equal(t, 4, *presets[1].SortOrder)
	assert.Equal(t, int64(8), *presets[1].AudioID)

	assert.NotNil(t, FallbackPresets(nil))
}

func TestActivePresets(t *testing.T) {
	presets := []model.Preset{
		{ID: "1", Name: "b", SortOrder: intPtr(5)},
		{ID: "2", Name: "a"},
		{ID: "3", Name: "c", SortOrder: intPtr(1)},
		{ID: "4", Name: "off", IsEnabled: boolPtr(false), SortOrder: intPtr(0)},
		{ID: "5", Name: "a2", SortOrder: intPtr(5)},
	}
	got := ActivePresets(presets)
	names := make([]string, 0, len(got))
	for _, p := range got {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"c", "a2", "b", "a"}, names)
}

func TestPresetDropDraft(t *testing.T) {
	start := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)

	d := PresetDropDraft(model.Preset{Name: " ", DurationMin: 0, AudioID: int64Ptr(2)}, start)
	assert.Equal(t, "Untitled", d.Title)
	assert.Equal(t, start.Add(30*time.Minute), d.End)

	p, err := BuildSlotPayload(nil, d)
	require.NoError(t, err)
	assert.Equal(t, 540, p.StartMin)
	assert.Equal(t, 570, p.EndMin)
	assert.Equal(t, int64(2), *p.AudioID)

	late := time.Date(2024, 6, 5, 23, 50, 0, 0, time.UTC)
	_, err = BuildSlotPayload(nil, PresetDropDraft(model.Preset{Name: "x", DurationMin: 30}, late))
	assert.ErrorIs(t, err, ErrCrossDay)

	_, err = BuildSlotPayload(nil, PresetDropDraft(model.Preset{Name: "x", DurationMin: 10}, late))
	assert.NoError(t, err)
}

func TestBuildPresetPayload(t *testing.T) {
	_, err := BuildPresetPayload(PresetDraft{Name: "  ", DurationMin: 30}, nil)
	assert.ErrorIs(t, err, ErrPresetNameRequired)

	_, err = BuildPresetPayload(PresetDraft{Name: "x", DurationMin: 0}, nil)
	assert.ErrorIs(t, err, ErrPresetDuration)

	_, err = BuildPresetPayload(PresetDraft{Name: "x", DurationMin: 1440}, nil)
	assert.ErrorIs(t, err, ErrPresetDuration)

	p, err := BuildPresetPayload(PresetDraft{
		Name:        " Water ",
		DurationMin: 15,
		Color:       "<b>",
		AudioID:     int64Ptr(0),
		SortOrder:   intPtr(-1),
	}, nil)
	require.NoError(t, err)
	assert.Nil(t, p.ID)
	assert.Equal(t, "Water", p.Name)
	assert.Equal(t, model.DefaultColor, p.Color)
	assert.Nil(t, p.AudioID)
	assert.Nil(t, p.SortOrder)
	assert.True(t, p.IsEnabled)

	current := model.Preset{ID: "7", IsEnabled: boolPtr(false)}
	p, err = BuildPresetPayload(PresetDraft{ID: 7, Name: "Water", DurationMin: 1439, SortOrder: intPtr(0)}, &current)
	require.NoError(t, err)
	assert.Equal(t, int64(7), *p.ID)
	assert.False(t, p.IsEnabled)
	assert.Equal(t, 0, *p.SortOrder)
}

func TestPresetTogglePayload(t *testing.T) {
	_, err := PresetTogglePayload(model.Preset{ID: "slot-3", IsFallback: true}, false)
	assert.ErrorIs(t, err, ErrPresetNotPersisted)

	p, err := PresetTogglePayload(model.Preset{
		ID:          "12",
		Name:        "",
		DurationMin: 5000,
		Color:       "bg-warning",
		AudioID:     int64Ptr(3),
		SortOrder:   intPtr(2),
	}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(12), *p.ID)
	assert.Equal(t, "Untitled", p.Name)
	assert.Equal(t, 30, p.DurationMin)
	assert.Equal(t, "bg-warning", p.Color)
	assert.False(t, p.IsEnabled)
	assert.Equal(t, 2, *p.SortOrder)
}

func TestBuildAudioPayload(t *testing.T) {
	_, err := BuildAudioPayload(AudioDraft{GCSURL: "   "}, nil)
	assert.ErrorIs(t, err, ErrAudioURLRequired)

	p, err := BuildAudioPayload(AudioDraft{GCSURL: " gs://bucket/a.mp3 "}, nil)
	require.NoError(t, err)
	assert.Equal(t, "gs://bucket/a.mp3", p.GCSURL)
	assert.Empty(t, p.Name)
	assert.Nil(t, p.ID)
	assert.Nil(t, p.IsActive)

	current := model.Audio{ID: 4, IsActive: boolPtr(false)}
	p, err = BuildAudioPayload(AudioDraft{ID: 4, GCSURL: "gs://b/x", Name: "Bell"}, &current)
	require.NoError(t, err)
	assert.Equal(t, int64(4), *p.ID)
	assert.Equal(t, "Bell", p.Name)
	require.NotNil(t, p.IsActive)
	assert.False(t, *p.IsActive)
}

func TestBuildCreateUserPayload(t *testing.T) {
	_, err := BuildCreateUserPayload(UserDraft{Username: "ann", Password: "pw", Confirm: "pw"})
	assert.ErrorIs(t, err, ErrUserFieldsRequired)

	_, err = BuildCreateUserPayload(UserDraft{Username: "ann", Password: "pw", Confirm: "pw", Role: "owner"})
	assert.ErrorIs(t, err, ErrUserFieldsRequired)

	_, err = BuildCreateUserPayload(UserDraft{Username: "ann", Password: "pw", Confirm: "px", Role: "admin"})
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	p, err := BuildCreateUserPayload(UserDraft{Username: " ann ", Password: "pw", Confirm: "pw", Role: "Admin"})
	require.NoError(t, err)
	assert.Equal(t, model.CreateUserPayload{Username: "ann", Password: "pw", Role: "admin"}, p)
}

func TestBuildResetPasswordPayload(t *testing.T) {
	_, err := BuildResetPasswordPayload(3, "", "")
	assert.ErrorIs(t, err, ErrPasswordRequired)

	_, err = BuildResetPasswordPayload(0, "pw", "pw")
	assert.ErrorIs(t, err, ErrPasswordRequired)

	_, err = BuildResetPasswordPayload(3, "pw", "other")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	p, err := BuildResetPasswordPayload(3, "pw", "pw")
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ID)
}

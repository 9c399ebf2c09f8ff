package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindercal/internal/model"
	"remindercal/internal/reminder"
)

func TestSettingsLoadAttemptsBoth(t *testing.T) {
	backend := &fakeBackend{
		audioErr: errBackend,
		presets:  []model.Preset{{ID: "1", Name: "Walk", DurationMin: 20}},
	}
	s := NewSettings(backend, nil)

	assert.ErrorIs(t, s.Load(context.Background()), errBackend)
	assert.Len(t, s.Presets(), 1)
	assert.Empty(t, s.Audios())
}

func TestTogglePresetUpdatesAfterConfirm(t *testing.T) {
	backend := &fakeBackend{presets: []model.Preset{{ID: "5", Name: "Walk", DurationMin: 20}}}
	s := NewSettings(backend, nil)
	require.NoError(t, s.Load(context.Background()))

	require.NoError(t, s.TogglePreset(context.Background(), 5, false))
	p, ok := s.Preset(5)
	require.True(t, ok)
	assert.False(t, p.Enabled())
	require.Len(t, backend.presetSaves, 1)
	assert.False(t, backend.presetSaves[0].IsEnabled)
	assert.Equal(t, int64(5), *backend.presetSaves[0].ID)

	backend.presetSaveEr = errBackend
	assert.ErrorIs(t, s.TogglePreset(context.Background(), 5, true), errBackend)
	p, _ = s.Preset(5)
	assert.False(t, p.Enabled())

	assert.ErrorIs(t, s.TogglePreset(context.Background(), 77, true), ErrPresetNotFound)
}

func TestSavePresetKeepsEnabledFlag(t *testing.T) {
	disabled := false
	backend := &fakeBackend{presets: []model.Preset{{ID: "5", Name: "Walk", DurationMin: 20, IsEnabled: &disabled}}}
	s := NewSettings(backend, nil)
	require.NoError(t, s.Load(context.Background()))

	require.NoError(t, s.SavePreset(context.Background(), reminder.PresetDraft{ID: 5, Name: "Long walk", DurationMin: 45}))
	require.Len(t, backend.presetSaves, 1)
	assert.False(t, backend.presetSaves[0].IsEnabled)

	err := s.SavePreset(context.Background(), reminder.PresetDraft{Name: "", DurationMin: 45})
	assert.ErrorIs(t, err, reminder.ErrPresetNameRequired)
	assert.Len(t, backend.presetSaves, 1)
}

func TestSaveAudioCarriesActiveFlag(t *testing.T) {
	active := false
	backend := &fakeBackend{audios: []model.Audio{{ID: 2, GCSURL: "gs://b/a.mp3", IsActive: &active}}}
	s := NewSettings(backend, nil)
	require.NoError(t, s.Load(context.Background()))

	require.NoError(t, s.SaveAudio(context.Background(), reminder.AudioDraft{ID: 2, GCSURL: "gs://b/b.mp3"}))
	require.Len(t, backend.audioSaves, 1)
	require.NotNil(t, backend.audioSaves[0].IsActive)
	assert.False(t, *backend.audioSaves[0].IsActive)

	assert.ErrorIs(t, s.SaveAudio(context.Background(), reminder.AudioDraft{}), reminder.ErrAudioURLRequired)
}

func TestUsersReloadDropsStaleResponse(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	backend := &fakeBackend{usersFn: func(call int) ([]model.User, error) {
		if call == 1 {
			close(started)
			<-release
			return []model.User{{ID: 1, Username: "old"}}, nil
		}
		return []model.User{{ID: 2, Username: "new"}}, nil
	}}
	u := NewUsers(backend, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, u.Reload(context.Background()))
	}()
	<-started
	require.NoError(t, u.Reload(context.Background()))
	close(release)
	wg.Wait()

	assert.Equal(t, []model.User{{ID: 2, Username: "new"}}, u.List())
}

func TestUsersCreateValidatesLocally(t *testing.T) {
	backend := &fakeBackend{}
	u := NewUsers(backend, nil)

	err := u.Create(context.Background(), reminder.UserDraft{Username: "ann", Password: "a", Confirm: "b", Role: "user"})
	assert.ErrorIs(t, err, reminder.ErrPasswordMismatch)
	assert.Empty(t, backend.userCreate)

	require.NoError(t, u.Create(context.Background(), reminder.UserDraft{Username: "ann", Password: "a", Confirm: "a", Role: "user"}))
	assert.Len(t, backend.userCreate, 1)
	assert.Equal(t, 1, backend.userCalls)
}

func TestRequireLogin(t *testing.T) {
	backend := &fakeBackend{loggedIn: true}
	redirect, err := RequireLogin(context.Background(), backend, "/calendar")
	require.NoError(t, err)
	assert.Empty(t, redirect)

	backend.loggedIn = false
	redirect, err = RequireLogin(context.Background(), backend, "/calendar")
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.Equal(t, "/login?next=/calendar", redirect)

	backend.statusErr = errBackend
	redirect, err = RequireLogin(context.Background(), backend, "/")
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.Equal(t, "/login", redirect)
}

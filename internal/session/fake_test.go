package session

import (
	"context"
	"errors"
	"sync"

	"remindercal/internal/model"
)

// fakeBackend is an in-memory backend. scheduleFn, when set, overrides the
// schedule response per call (1-based).
type fakeBackend struct {
	mu sync.Mutex

	schedule   model.Schedule
	scheduleFn func(call int) (model.Schedule, error)
	calls      int

	saved        []model.SlotPayload
	deleted      []int64
	saveErr      error
	presets      []model.Preset
	presetErr    error
	presetSaves  []model.PresetPayload
	presetSaveEr error
	audios       []model.Audio
	audioErr     error
	audioSaves   []model.AudioPayload

	users      []model.User
	usersFn    func(call int) ([]model.User, error)
	userCalls  int
	userCreate []model.CreateUserPayload

	loggedIn  bool
	statusErr error
}

var errBackend = errors.New("backend down")

func (f *fakeBackend) Schedule(ctx context.Context) (model.Schedule, error) {
	f.mu.Lock()
	f.calls++
	call, fn, s := f.calls, f.scheduleFn, f.schedule
	f.mu.Unlock()
	if fn != nil {
		return fn(call)
	}
	return s, nil
}

func (f *fakeBackend) SaveSlot(ctx context.Context, p model.SlotPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, p)
	return nil
}

func (f *fakeBackend) DeleteSlot(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) Presets(ctx context.Context) ([]model.Preset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.presetErr != nil {
		return nil, f.presetErr
	}
	return append([]model.Preset{}, f.presets...), nil
}

func (f *fakeBackend) SavePreset(ctx context.Context, p model.PresetPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.presetSaveEr != nil {
		return f.presetSaveEr
	}
	f.presetSaves = append(f.presetSaves, p)
	return nil
}

func (f *fakeBackend) DeletePreset(ctx context.Context, id int64) error {
	return nil
}

func (f *fakeBackend) Audios(ctx context.Context) ([]model.Audio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.audioErr != nil {
		return nil, f.audioErr
	}
	return append([]model.Audio{}, f.audios...), nil
}

func (f *fakeBackend) SaveAudio(ctx context.Context, p model.AudioPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audioSaves = append(f.audioSaves, p)
	return nil
}

func (f *fakeBackend) DeleteAudio(ctx context.Context, id int64) error {
	return nil
}

func (f *fakeBackend) Users(ctx context.Context) ([]model.User, error) {
	f.mu.Lock()
	f.userCalls++
	call, fn, users := f.userCalls, f.usersFn, f.users
	f.mu.Unlock()
	if fn != nil {
		return fn(call)
	}
	return users, nil
}

func (f *fakeBackend) CreateUser(ctx context.Context, p model.CreateUserPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCreate = append(f.userCreate, p)
	return nil
}

func (f *fakeBackend) DeleteUser(ctx context.Context, id int64) error {
	return nil
}

func (f *fakeBackend) ResetPassword(ctx context.Context, p model.ResetPasswordPayload) error {
	return nil
}

func (f *fakeBackend) SessionStatus(ctx context.Context) (bool, error) {
	return f.loggedIn, f.statusErr
}

func (f *fakeBackend) LoginURL(next string) string {
	if next == "" || next == "/" {
		return "/login"
	}
	return "/login?next=" + next
}

func (f *fakeBackend) savedPayloads() []model.SlotPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SlotPayload{}, f.saved...)
}

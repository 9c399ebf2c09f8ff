package session

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	appLog "remindercal/internal/log"
	"remindercal/internal/metrics"
	"remindercal/internal/model"
	"remindercal/internal/reminder"
)

// SettingsBackend is the part of the backend API the preset and audio
// settings use.
type SettingsBackend interface {
	Presets(ctx context.Context) ([]model.Preset, error)
	SavePreset(ctx context.Context, p model.PresetPayload) error
	DeletePreset(ctx context.Context, id int64) error
	Audios(ctx context.Context) ([]model.Audio, error)
	SaveAudio(ctx context.Context, p model.AudioPayload) error
	DeleteAudio(ctx context.Context, id int64) error
}

// Settings caches the preset and audio lists.
type Settings struct {
	backend SettingsBackend
	metrics *metrics.Metrics

	mu      sync.RWMutex
	presets []model.Preset
	audios  []model.Audio
}

func NewSettings(backend SettingsBackend, m *metrics.Metrics) *Settings {
	return &Settings{backend: backend, metrics: m}
}

// Load fetches audios and presets concurrently. Both are always attempted;
// the first failure is returned.
func (s *Settings) Load(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return s.loadAudios(ctx) })
	g.Go(func() error { return s.loadPresets(ctx) })
	if err := g.Wait(); err != nil {
		appLog.Error("load reminder settings failed", err)
		return err
	}
	return nil
}

func (s *Settings) loadAudios(ctx context.Context) error {
	audios, err := s.backend.Audios(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.audios = audios
	s.mu.Unlock()
	return nil
}

func (s *Settings) loadPresets(ctx context.Context) error {
	presets, err := s.backend.Presets(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.presets = presets
	s.mu.Unlock()
	return nil
}

func (s *Settings) Presets() []model.Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Preset{}, s.presets...)
}

func (s *Settings) Audios() []model.Audio {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Audio{}, s.audios...)
}

// Preset finds a cached preset by numeric id.
func (s *Settings) Preset(id int64) (model.Preset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.presets {
		if n, ok := p.ID.Int(); ok && n == id {
			return p, true
		}
	}
	return model.Preset{}, false
}

// Audio finds a cached audio by id.
func (s *Settings) Audio(id int64) (model.Audio, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.audios {
		if a.ID == id {
			return a, true
		}
	}
	return model.Audio{}, false
}

// SavePreset validates and saves a preset, then reloads the preset list.
func (s *Settings) SavePreset(ctx context.Context, d reminder.PresetDraft) error {
	var current *model.Preset
	if d.ID > 0 {
		if p, ok := s.Preset(d.ID); ok {
			current = &p
		}
	}
	p, err := reminder.BuildPresetPayload(d, current)
	if err != nil {
		return err
	}
	err = s.backend.SavePreset(ctx, p)
	s.metrics.ObserveMutation("preset_save", err)
	if err != nil {
		return err
	}
	return s.loadPresets(ctx)
}

func (s *Settings) DeletePreset(ctx context.Context, id int64) error {
	err := s.backend.DeletePreset(ctx, id)
	s.metrics.ObserveMutation("preset_delete", err)
	if err != nil {
		return err
	}
	return s.loadPresets(ctx)
}

// TogglePreset flips a preset's enabled flag. The cache changes only after
// the backend confirmed the save.
func (s *Settings) TogglePreset(ctx context.Context, id int64, enabled bool) error {
	p, ok := s.Preset(id)
	if !ok {
		return ErrPresetNotFound
	}
	payload, err := reminder.PresetTogglePayload(p, enabled)
	if err != nil {
		return err
	}
	err = s.backend.SavePreset(ctx, payload)
	s.metrics.ObserveMutation("preset_toggle", err)
	if err != nil {
		appLog.Error("toggle preset enabled failed", err, "preset_id", id)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.presets {
		if n, ok := s.presets[i].ID.Int(); ok && n == id {
			v := enabled
			s.presets[i].IsEnabled = &v
		}
	}
	return nil
}

// SaveAudio validates and saves an audio entry, then reloads both lists
// since presets embed their audio.
func (s *Settings) SaveAudio(ctx context.Context, d reminder.AudioDraft) error {
	var current *model.Audio
	if d.ID > 0 {
		if a, ok := s.Audio(d.ID); ok {
			current = &a
		}
	}
	p, err := reminder.BuildAudioPayload(d, current)
	if err != nil {
		return err
	}
	err = s.backend.SaveAudio(ctx, p)
	s.metrics.ObserveMutation("audio_save", err)
	if err != nil {
		return err
	}
	return s.Load(ctx)
}

func (s *Settings) DeleteAudio(ctx context.Context, id int64) error {
	err := s.backend.DeleteAudio(ctx, id)
	s.metrics.ObserveMutation("audio_delete", err)
	if err != nil {
		return err
	}
	return s.Load(ctx)
}

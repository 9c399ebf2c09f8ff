package reminder

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"remindercal/internal/model"
)

const (
	defaultPresetMinutes = 30
	maxPresetMinutes     = 1439
	untitled             = "Untitled"
)

// FallbackPresets derives one synthetic preset per enabled, valid slot. They are used when the backend has no presets.
func FallbackPresets(slots []model.Slot) []model.Preset {
	out := make([]model.Preset, 0, len(slots))
	for _, s := range slots {
		if !s.IsEnabled || !s.Valid() {
			continue
		}
		duration := s.Duration()

		name := s.Title
		if name == "" {
			name = untitled
		}
		sortOrder := s.SortOrder
		if sortOrder == 0 {
			sortOrder = s.StartMin
		}
		enabled := true

		out = append(out, model.Preset{
			ID:           model.PresetID("slot-" + strconv.FormatInt(s.ID, 10)),
			Name:         name,
			DurationMin:  duration,
			Color:        model.NormalizeColor(s.Color),
			AudioID:      model.PositiveIDPtr(s.AudioID),
			IsEnabled:    &enabled,
			SortOrder:    &sortOrder,
			IsFallback:   true,
			SourceSlotID: s.ID,
		})
	}
	return out
}

// ActivePresets returns the enabled presets ordered by sort order, then name.
// Presets without a sort order come last.
func ActivePresets(presets []model.Preset) []model.Preset {
	out := make([]model.Preset, 0, len(presets))
	for _, p := range presets {
		if p.Enabled() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].SortOrder, out[j].SortOrder
		switch {
		case a != nil && b != nil && *a != *b:
			return *a < *b
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// DropDuration is the length given to an occurrence created by dropping p.
func DropDuration(p model.Preset) time.Duration {
	minutes := p.DurationMin
	if minutes < 1 {
		minutes = defaultPresetMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// PresetDropDraft builds the slot draft for dropping p at start.
func PresetDropDraft(p model.Preset, start time.Time) SlotDraft {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = untitled
	}
	return SlotDraft{
		Start: start,
		End:   start.Add(DropDuration(p)),
		Title: name,
		Color: p.Color,
		Audio: AudioFrom(p.AudioID),
	}
}

// PresetDraft is the editable part of a preset.
type PresetDraft struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DurationMin int    `json:"duration_min"`
	Color       string `json:"color"`
	AudioID     *int64 `json:"audio_id"`
	SortOrder   *int   `json:"sort_order"`
}

// BuildPresetPayload validates a preset edit. current is the cached preset
// being edited, if any; its enabled flag is preserved.
func BuildPresetPayload(d PresetDraft, current *model.Preset) (model.PresetPayload, error) {
	p := model.PresetPayload{
		Name:        strings.TrimSpace(d.Name),
		DurationMin: d.DurationMin,
		Color:       model.NormalizeColor(d.Color),
		AudioID:     model.PositiveIDPtr(d.AudioID),
		IsEnabled:   current == nil || current.Enabled(),
		SortOrder:   model.NonNegativeIntPtr(d.SortOrder),
	}
	if d.ID > 0 {
		id := d.ID
		p.ID = &id
	}
	if err := validateStruct(p, map[string]*ValidationError{
		"Name":        ErrPresetNameRequired,
		"DurationMin": ErrPresetDuration,
	}); err != nil {
		return model.PresetPayload{}, err
	}
	return p, nil
}

// PresetTogglePayload re-serializes a cached preset with only its enabled
// flag changed. Out-of-range durations fall back to 30 minutes.
func PresetTogglePayload(p model.Preset, enabled bool) (model.PresetPayload, error) {
	id, ok := p.ID.Int()
	if !ok || p.IsFallback {
		return model.PresetPayload{}, ErrPresetNotPersisted
	}

	duration := p.DurationMin
	if duration < 1 || duration > maxPresetMinutes {
		duration = defaultPresetMinutes
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = untitled
	}

	return model.PresetPayload{
		ID:          &id,
		Name:        name,
		DurationMin: duration,
		Color:       model.NormalizeColor(p.Color),
		AudioID:     model.PositiveIDPtr(p.AudioID),
		IsEnabled:   enabled,
		SortOrder:   model.NonNegativeIntPtr(p.SortOrder),
	}, nil
}

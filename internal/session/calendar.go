package session

import (
	"context"
	"errors"
	"sync"
	"time"

	appLog "remindercal/internal/log"
	"remindercal/internal/metrics"
	"remindercal/internal/model"
	"remindercal/internal/reminder"
)

var (
	ErrSlotNotFound   = errors.New("slot data is missing, refreshing")
	ErrPresetNotFound = errors.New("preset data is missing, please refresh and try again")
)

// CalendarBackend is the part of the backend API the week calendar uses.
type CalendarBackend interface {
	Schedule(ctx context.Context) (model.Schedule, error)
	SaveSlot(ctx context.Context, p model.SlotPayload) error
	DeleteSlot(ctx context.Context, id int64) error
}

// Snapshot is a copy of the calendar cache.
type Snapshot struct {
	Timezone string
	Location *time.Location
	Slots    []model.Slot
	Audios   []model.Audio
	Presets  []model.Preset
	LoadedAt time.Time
}

// Calendar holds the week calendar state for one page lifetime: the last
// loaded slots, audios and presets plus the reload sequencer. Caches are
// only ever replaced wholesale by a reload.
type Calendar struct {
	backend  CalendarBackend
	metrics  *metrics.Metrics
	fallback *time.Location
	now      func() time.Time

	seq Sequencer

	mu       sync.RWMutex
	timezone string
	loc      *time.Location
	slots    []model.Slot
	slotIdx  reminder.SlotIndex
	audios   []model.Audio
	presets  []model.Preset
	presetBy map[model.PresetID]model.Preset
	loadedAt time.Time
}

type CalendarOption func(*Calendar)

// WithMetrics records reloads and mutations on m.
func WithMetrics(m *metrics.Metrics) CalendarOption {
	return func(c *Calendar) {
		c.metrics = m
	}
}

// WithFallbackLocation is used when the backend timezone cannot be loaded.
func WithFallbackLocation(loc *time.Location) CalendarOption {
	return func(c *Calendar) {
		if loc != nil {
			c.fallback = loc
		}
	}
}

func NewCalendar(backend CalendarBackend, opts ...CalendarOption) *Calendar {
	c := &Calendar{
		backend:  backend,
		fallback: time.Local,
		now:      time.Now,
		slotIdx:  reminder.SlotIndex{},
		presetBy: map[model.PresetID]model.Preset{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.loc = c.fallback
	return c
}

// Reload fetches the schedule and replaces the caches, unless a newer
// reload started meanwhile, in which case the response is dropped.
func (c *Calendar) Reload(ctx context.Context) error {
	ticket := c.seq.Begin()
	sched, err := c.backend.Schedule(ctx)
	if err != nil {
		c.metrics.ObserveReload("schedule", metrics.ReloadFailed)
		appLog.Error("load reminder schedule failed", err)
		return err
	}

	applied := c.seq.Apply(ticket, func() {
		c.replace(sched)
	})
	if !applied {
		c.metrics.ObserveReload("schedule", metrics.ReloadStale)
		appLog.Debug("stale schedule response dropped", "ticket", ticket)
		return nil
	}
	c.metrics.ObserveReload("schedule", metrics.ReloadApplied)
	c.metrics.SetCachedSlots(len(sched.Slots))
	appLog.Info("reminder schedule loaded",
		"timezone", sched.Timezone,
		"slots", len(sched.Slots),
		"presets", len(sched.Presets),
		"audios", len(sched.Audios),
	)
	return nil
}

func (c *Calendar) replace(sched model.Schedule) {
	tz := sched.Timezone
	if tz == "" {
		tz = model.DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		appLog.Error("unknown schedule timezone, using fallback", err, "timezone", tz, "fallback", c.fallback.String())
		loc = c.fallback
	}

	presets := sched.Presets
	if len(presets) == 0 {
		presets = reminder.FallbackPresets(sched.Slots)
	}
	presetBy := make(map[model.PresetID]model.Preset, len(presets))
	for _, p := range presets {
		if p.ID == "" {
			continue
		}
		presetBy[p.ID] = p
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.timezone = tz
	c.loc = loc
	c.slots = append([]model.Slot(nil), sched.Slots...)
	c.slotIdx = reminder.IndexSlots(sched.Slots)
	c.audios = append([]model.Audio(nil), sched.Audios...)
	c.presets = append([]model.Preset(nil), presets...)
	c.presetBy = presetBy
	c.loadedAt = c.now()
}

// Snapshot returns a copy of the current cache.
func (c *Calendar) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Timezone: c.timezone,
		Location: c.loc,
		Slots:    append([]model.Slot{}, c.slots...),
		Audios:   append([]model.Audio{}, c.audios...),
		Presets:  append([]model.Preset{}, c.presets...),
		LoadedAt: c.loadedAt,
	}
}

// Location is the zone occurrences are materialized in.
func (c *Calendar) Location() *time.Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loc
}

// Slot implements reminder.SlotLookup over the cache.
func (c *Calendar) Slot(id int64) (model.Slot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slotIdx.Slot(id)
}

// Preset looks up a cached (or fallback) preset.
func (c *Calendar) Preset(id model.PresetID) (model.Preset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.presetBy[id]
	return p, ok
}

// Events materializes the cached slots for [start, end). Bounds are
// interpreted in the calendar location.
func (c *Calendar) Events(start, end time.Time) []model.Occurrence {
	c.mu.RLock()
	slots := c.slots
	loc := c.loc
	c.mu.RUnlock()
	return reminder.Materialize(slots, start.In(loc), end.In(loc))
}

// SaveSlot validates a create/edit draft, saves it and reloads. The range
// is read in the calendar location.
func (c *Calendar) SaveSlot(ctx context.Context, d reminder.SlotDraft) error {
	if !d.Start.IsZero() {
		d.Start = d.Start.In(c.Location())
	}
	p, err := reminder.BuildSlotPayload(c, d)
	if err != nil {
		return err
	}
	return c.mutate(ctx, "slot_save", func() error {
		return c.backend.SaveSlot(ctx, p)
	})
}

// MoveOccurrence saves a dragged or resized occurrence of slotID as the
// slot's new weekly range. A zero end means start plus 30 minutes.
func (c *Calendar) MoveOccurrence(ctx context.Context, slotID int64, start, end time.Time) error {
	s, ok := c.Slot(slotID)
	if !ok {
		if err := c.Reload(ctx); err != nil {
			appLog.Error("reload after missing slot failed", err, "slot_id", slotID)
		}
		return ErrSlotNotFound
	}
	return c.SaveSlot(ctx, reminder.SlotDraft{
		SlotID: slotID,
		Start:  start,
		End:    reminder.MovedEnd(start, end),
		Title:  s.Title,
		Color:  s.Color,
		Audio:  reminder.AudioFrom(s.AudioID),
	})
}

// DropPreset creates a new slot from a preset dropped at start.
func (c *Calendar) DropPreset(ctx context.Context, presetID model.PresetID, start time.Time) error {
	p, ok := c.Preset(presetID)
	if !ok {
		return ErrPresetNotFound
	}
	return c.SaveSlot(ctx, reminder.PresetDropDraft(p, start))
}

// DeleteSlot deletes a slot and reloads.
func (c *Calendar) DeleteSlot(ctx context.Context, id int64) error {
	return c.mutate(ctx, "slot_delete", func() error {
		return c.backend.DeleteSlot(ctx, id)
	})
}

// mutate runs a backend mutation and, when it succeeds, reloads. A failed
// reload is logged; the mutation itself still succeeded.
func (c *Calendar) mutate(ctx context.Context, op string, fn func() error) error {
	err := fn()
	c.metrics.ObserveMutation(op, err)
	if err != nil {
		appLog.Error("reminder mutation failed", err, "op", op)
		return err
	}
	if err := c.Reload(ctx); err != nil {
		appLog.Error("reload after mutation failed", err, "op", op)
	}
	return nil
}

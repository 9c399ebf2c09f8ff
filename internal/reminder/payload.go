package reminder

import (
	"encoding/json"
	"strings"
	"time"

	"remindercal/internal/model"
)

// DefaultEventDuration is applied when a moved occurrence has no end or a
// dropped preset has no usable duration.
const DefaultEventDuration = 30 * time.Minute

// SlotLookup resolves cached slots by id.
type SlotLookup interface {
	Slot(id int64) (model.Slot, bool)
}

// SlotIndex is a SlotLookup over an in-memory map.
type SlotIndex map[int64]model.Slot

func (idx SlotIndex) Slot(id int64) (model.Slot, bool) {
	s, ok := idx[id]
	return s, ok
}

// IndexSlots builds a SlotIndex keyed by slot id.
func IndexSlots(slots []model.Slot) SlotIndex {
	idx := make(SlotIndex, len(slots))
	for _, s := range slots {
		idx[s.ID] = s
	}
	return idx
}

// AudioChoice distinguishes "leave the audio of an existing slot as is"
// (the zero value) from an explicit selection, which may be none.
type AudioChoice struct {
	set bool
	id  *int64
}

// KeepAudio carries the existing slot's audio forward.
var KeepAudio = AudioChoice{}

// NoAudio clears the audio.
func NoAudio() AudioChoice {
	return AudioChoice{set: true}
}

// WithAudio selects an audio by id; non-positive ids mean none.
func WithAudio(id int64) AudioChoice {
	return AudioChoice{set: true, id: &id}
}

// AudioFrom selects an optional audio id, nil meaning none.
func AudioFrom(id *int64) AudioChoice {
	return AudioChoice{set: true, id: id}
}

// SlotDraft is a proposed slot range, typically from a calendar gesture.
// SlotID is zero when creating.
type SlotDraft struct {
	SlotID int64
	Start  time.Time
	End    time.Time
	Title  string
	Color  string
	Audio  AudioChoice
}

// BuildSlotPayload converts a concrete time range into a weekly slot payload.
// The range must stay within one local calendar day of Start's location,
// ending no later than the first instant of the following day.
func BuildSlotPayload(slots SlotLookup, d SlotDraft) (model.SlotPayload, error) {
	if d.Start.IsZero() || d.End.IsZero() {
		return model.SlotPayload{}, ErrInvalidTime
	}

	start := d.Start
	end := d.End.In(start.Location())

	startMin := minuteOfDay(start)
	var endMin int
	if model.DateKey(start) == model.DateKey(end) {
		endMin = minuteOfDay(end)
	} else {
		nextDay := model.StartOfDay(model.CivilDate(start).AddDate(0, 0, 1), start.Location())
		if !end.Equal(nextDay) {
			return model.SlotPayload{}, ErrCrossDay
		}
		endMin = model.MinutesPerDay
	}
	if endMin <= startMin {
		return model.SlotPayload{}, ErrEmptyRange
	}

	title := strings.TrimSpace(d.Title)
	if title == "" {
		return model.SlotPayload{}, ErrTitleRequired
	}

	var (
		existing model.Slot
		found    bool
	)
	if d.SlotID != 0 && slots != nil {
		existing, found = slots.Slot(d.SlotID)
	}

	audio := d.Audio.id
	if !d.Audio.set {
		audio = nil
		if found {
			audio = existing.AudioID
		}
	}

	p := model.SlotPayload{
		Weekday:   model.ISOWeekday(start),
		StartMin:  startMin,
		EndMin:    endMin,
		Title:     title,
		Color:     model.NormalizeColor(d.Color),
		AudioID:   model.PositiveIDPtr(audio),
		IsEnabled: true,
		SortOrder: startMin,
	}
	if found {
		if len(existing.Note) > 0 {
			p.Note = append(json.RawMessage(nil), existing.Note...)
		}
		p.IsEnabled = existing.IsEnabled
		if existing.SortOrder != 0 {
			p.SortOrder = existing.SortOrder
		}
	}
	if d.SlotID != 0 {
		id := d.SlotID
		p.ID = &id
	}
	return p, nil
}

// MovedEnd returns end, or start plus DefaultEventDuration when end is unset.
func MovedEnd(start, end time.Time) time.Time {
	if end.IsZero() {
		return start.Add(DefaultEventDuration)
	}
	return end
}

// NewEventRange is the default range offered for a new reminder at now:
// the current half hour, never earlier than 05:30, lasting 30 minutes.
func NewEventRange(now time.Time) (time.Time, time.Time) {
	minutes := minuteOfDay(now)
	minutes -= minutes % 30
	if minutes < EarliestVisibleMinute {
		minutes = EarliestVisibleMinute
	}
	start := model.WallClock(now, minutes, now.Location())
	return start, start.Add(DefaultEventDuration)
}

// EarliestVisibleMinute is the first minute of day shown in week views.
const EarliestVisibleMinute = 5*60 + 30

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

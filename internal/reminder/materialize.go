package reminder

import (
	"sort"
	"time"

	"remindercal/internal/model"
)

// Materialize expands enabled weekly slots into dated occurrences for every
// calendar day in [rangeStart, rangeEnd). Both bounds are reduced to their
// calendar date in rangeStart's location, and occurrence times are expressed
// in that location.
//
// The result is always a fresh slice sorted by start time; callers must not
// rely on any particular order among occurrences that start together.
func Materialize(slots []model.Slot, rangeStart, rangeEnd time.Time) []model.Occurrence {
	loc := rangeStart.Location()
	first := model.CivilDate(rangeStart)
	last := model.CivilDate(rangeEnd.In(loc))

	out := make([]model.Occurrence, 0)
	if !first.Before(last) {
		return out
	}

	var byWeekday [8][]model.Slot
	for _, s := range slots {
		if !s.IsEnabled || !s.Valid() {
			continue
		}
		byWeekday[s.Weekday] = append(byWeekday[s.Weekday], s)
	}

	for wd := 1; wd <= 7; wd++ {
		group := byWeekday[wd]
		if len(group) == 0 {
			continue
		}
		for _, day := range weekdayDates(wd, first, last) {
			for _, s := range group {
				out = append(out, occurrenceOf(s, day, loc))
			}
		}
	}

	SortOccurrences(out)
	return out
}

// SortOccurrences orders occurrences by start, then by identity.
func SortOccurrences(occs []model.Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		if !occs[i].Start.Equal(occs[j].Start) {
			return occs[i].Start.Before(occs[j].Start)
		}
		return occs[i].ID < occs[j].ID
	})
}

// weekdayDates returns the calendar dates in [first, last) falling on the
// given ISO weekday. Dates are UTC midnights as returned by model.CivilDate.
func weekdayDates(isoWeekday int, first, last time.Time) []time.Time {
	var days []time.Time
	offset := (isoWeekday - model.ISOWeekday(first) + 7) % 7
	for d := first.AddDate(0, 0, offset); d.Before(last); d = d.AddDate(0, 0, 7) {
		days = append(days, d)
	}
	return days
}

func occurrenceOf(s model.Slot, day time.Time, loc *time.Location) model.Occurrence {
	return model.Occurrence{
		ID:      model.OccurrenceID(s.ID, day),
		SlotID:  s.ID,
		Title:   s.Title,
		Color:   model.NormalizeColor(s.Color),
		AudioID: model.PositiveIDPtr(s.AudioID),
		Start:   model.WallClock(day, s.StartMin, loc),
		End:     model.WallClock(day, s.EndMin, loc),
	}
}

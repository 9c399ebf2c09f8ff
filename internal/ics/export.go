package ics

import (
	"fmt"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"remindercal/internal/model"
	"remindercal/internal/reminder"
)

const (
	productID   = "-//remindercal//weekly reminders//EN"
	uidSuffix   = "@remindercal"
	localLayout = "20060102T150405"

	// timezoneYears is how far ahead VTIMEZONE observances are listed.
	timezoneYears = 5
)

var byDay = [8]string{"", "MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// SlotUID is the VEVENT UID of a slot.
func SlotUID(slotID int64) string {
	return "slot-" + strconv.FormatInt(slotID, 10) + uidSuffix
}

// EncodeSlots renders enabled, valid slots as a weekly recurring iCalendar
// feed. Each VEVENT starts at the slot's first occurrence on or after ref's
// date in loc.
func EncodeSlots(slots []model.Slot, loc *time.Location, name string, ref time.Time) string {
	if loc == nil {
		loc = time.UTC
	}
	ref = ref.In(loc)
	day := model.CivilDate(ref)

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}
	tzid := tzidOf(loc)
	if tzid != "" {
		cal.SetXWRTimezone(tzid)
		addTimezone(cal, tzid, loc, model.StartOfDay(day, loc), timezoneYears)
	}

	// One week from ref yields exactly one occurrence per renderable slot.
	for _, occ := range reminder.Materialize(slots, model.StartOfDay(day, loc), model.StartOfDay(day.AddDate(0, 0, 7), loc)) {
		ev := cal.AddEvent(SlotUID(occ.SlotID))
		ev.SetDtStampTime(ref.UTC())
		setLocalTime(ev, ical.ComponentPropertyDtStart, occ.Start, tzid)
		setLocalTime(ev, ical.ComponentPropertyDtEnd, occ.End, tzid)
		ev.AddRrule("FREQ=WEEKLY;BYDAY=" + byDay[model.ISOWeekday(occ.Start)])
		ev.SetSummary(occ.Title)
		ev.SetProperty(ical.ComponentPropertyCategories, occ.Color)
	}
	return cal.Serialize()
}

// setLocalTime writes t as a TZID-qualified local time, or as floating time
// when the zone has no IANA name.
func setLocalTime(ev *ical.VEvent, prop ical.ComponentProperty, t time.Time, tzid string) {
	if tzid == "" {
		ev.SetProperty(prop, t.Format(localLayout))
		return
	}
	ev.SetProperty(prop, t.Format(localLayout), &ical.KeyValues{Key: "TZID", Value: []string{tzid}})
}

func tzidOf(loc *time.Location) string {
	name := loc.String()
	if name == "" || name == "Local" {
		return ""
	}
	if _, err := time.LoadLocation(name); err != nil {
		return ""
	}
	return name
}

// addTimezone emits the VTIMEZONE referenced by TZID parameters. Each offset
// period of loc from the one containing from until years later becomes one
// STANDARD or DAYLIGHT observance.
func addTimezone(cal *ical.Calendar, tzid string, loc *time.Location, from time.Time, years int) {
	tz := cal.AddTimezone(tzid)
	until := from.AddDate(years, 0, 0)

	t := from.In(loc)
	for {
		start, end := t.ZoneBounds()
		name, offset := t.Zone()
		prev := offset
		dtstart := "19700101T000000"
		if !start.IsZero() {
			_, prev = start.Add(-time.Second).Zone()
			dtstart = start.In(time.FixedZone("", prev)).Format(localLayout)
		}

		var obs interface {
			SetProperty(ical.ComponentProperty, string, ...ical.PropertyParameter)
		}
		if t.IsDST() {
			obs = tz.AddDaylight()
		} else {
			obs = tz.AddStandard()
		}
		obs.SetProperty(ical.ComponentPropertyDtStart, dtstart)
		obs.SetProperty(ical.ComponentProperty("TZOFFSETFROM"), formatOffset(prev))
		obs.SetProperty(ical.ComponentProperty("TZOFFSETTO"), formatOffset(offset))
		if name != "" {
			obs.SetProperty(ical.ComponentProperty("TZNAME"), name)
		}

		if end.IsZero() || !end.Before(until) {
			return
		}
		t = end
	}
}

// formatOffset renders a UTC offset in seconds as +HHMM (or +HHMMSS).
func formatOffset(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	out := fmt.Sprintf("%s%02d%02d", sign, seconds/3600, seconds/60%60)
	if s := seconds % 60; s != 0 {
		out += fmt.Sprintf("%02d", s)
	}
	return out
}

package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "remindercal/internal/log"
	"remindercal/internal/model"
	"remindercal/internal/reminder"
)

var isoWeekday = map[rrule.Weekday]int{
	rrule.MO: 1, rrule.TU: 2, rrule.WE: 3, rrule.TH: 4,
	rrule.FR: 5, rrule.SA: 6, rrule.SU: 7,
}

var errNotWeekly = errors.New("not a single-day weekly event")

// ParseSlots reads weekly recurring VEVENTs back into slot drafts in loc.
// Events that do not map onto one weekly slot (other frequencies, several
// weekdays, all-day or multi-day ranges) are logged and skipped.
func ParseSlots(body []byte, loc *time.Location) ([]reminder.SlotDraft, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	var drafts []reminder.SlotDraft
	for _, ve := range cal.Events() {
		uid := ""
		if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
			uid = p.Value
		}
		d, perr := parseVEvent(ve, loc)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "uid", uid, "reason", perr.Error())
			continue
		}
		drafts = append(drafts, d)
	}

	appLog.Info("ics parse completed", "event_count", len(drafts))
	return drafts, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (reminder.SlotDraft, error) {
	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return reminder.SlotDraft{}, errors.New("missing DTSTART")
	}
	start, allDay, err := parseTimeProp(startProp, loc)
	if err != nil {
		return reminder.SlotDraft{}, fmt.Errorf("DTSTART: %w", err)
	}
	if allDay {
		return reminder.SlotDraft{}, errors.New("all-day event")
	}
	// BYDAY is relative to DTSTART's own zone.
	eventWeekday := model.ISOWeekday(start)
	start = start.In(loc)

	var end time.Time
	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, _, err = parseTimeProp(endProp, loc)
		if err != nil {
			return reminder.SlotDraft{}, fmt.Errorf("DTEND: %w", err)
		}
	}
	end = reminder.MovedEnd(start, end).In(loc)

	ruleProp := ve.GetProperty(ical.ComponentPropertyRrule)
	if ruleProp == nil {
		return reminder.SlotDraft{}, errNotWeekly
	}
	if err := checkWeekly(ruleProp.Value, eventWeekday); err != nil {
		return reminder.SlotDraft{}, err
	}

	d := reminder.SlotDraft{
		Start: start,
		End:   end,
		Audio: reminder.NoAudio(),
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		d.Title = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		d.Color = strings.TrimSpace(strings.Split(p.Value, ",")[0])
	}

	if _, err := reminder.BuildSlotPayload(nil, d); err != nil {
		return reminder.SlotDraft{}, err
	}
	return d, nil
}

// checkWeekly accepts FREQ=WEEKLY rules with interval 1 and at most one
// BYDAY entry matching weekday.
func checkWeekly(raw string, weekday int) error {
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return fmt.Errorf("RRULE: %w", err)
	}
	if opt.Freq != rrule.WEEKLY || opt.Interval > 1 {
		return errNotWeekly
	}
	switch len(opt.Byweekday) {
	case 0:
		return nil
	case 1:
		if wd, ok := isoWeekday[opt.Byweekday[0]]; ok && wd == weekday {
			return nil
		}
	}
	return errNotWeekly
}

// parseTimeProp parses a DTSTART/DTEND value honoring VALUE=DATE, a UTC
// "Z" suffix and TZID. Floating times are read in loc.
func parseTimeProp(p *ical.IANAProperty, loc *time.Location) (time.Time, bool, error) {
	v := strings.TrimSpace(p.Value)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	if vs := p.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") || !strings.Contains(v, "T") {
		t, err := time.ParseInLocation("20060102", v, loc)
		return t, true, err
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	}

	in := loc
	if tzs := p.ICalParameters["TZID"]; len(tzs) > 0 {
		if tz, err := time.LoadLocation(tzs[0]); err == nil {
			in = tz
		} else {
			appLog.Warn("unknown TZID, using schedule zone", "tzid", tzs[0])
		}
	}
	t, err := time.ParseInLocation(localLayout, v, in)
	return t, false, err
}

var textUnescaper = strings.NewReplacer(`\,`, ",", `\;`, ";", `\n`, "\n", `\N`, "\n", `\\`, `\`)

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}

package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the exclusive upper bound of a slot start and the
// inclusive upper bound of a slot end (end of day).
const MinutesPerDay = 1440

// DefaultTimezone is used when the backend schedule omits a timezone.
const DefaultTimezone = "Asia/Shanghai"

// Slot is a weekly recurring reminder template as stored by the backend.
type Slot struct {
	ID       int64 `json:"id"`
	Weekday  int   `json:"weekday"`   // ISO weekday, Monday=1 .. Sunday=7
	StartMin int   `json:"start_min"` // minutes after local midnight
	EndMin   int   `json:"end_min"`   // 1440 means the following midnight

	Title string `json:"title"`
	Color string `json:"color"`

	// Note is opaque to the client and carried forward verbatim on edits.
	Note json.RawMessage `json:"note,omitempty"`

	AudioID   *int64 `json:"audio_id"`
	IsEnabled bool   `json:"is_enabled"`
	SortOrder int    `json:"sort_order"`
}

// Valid reports whether the slot describes a renderable weekly range.
func (s Slot) Valid() bool {
	if s.Weekday < 1 || s.Weekday > 7 {
		return false
	}
	if s.StartMin < 0 || s.StartMin >= MinutesPerDay {
		return false
	}
	return s.EndMin > s.StartMin && s.EndMin <= MinutesPerDay
}

// Duration returns the slot length in minutes (zero or negative when invalid).
func (s Slot) Duration() int {
	return s.EndMin - s.StartMin
}

// Occurrence is a single dated instance of a Slot. It is derived on demand
// and never persisted.
type Occurrence struct {
	// ID is "slot-<slotID>-<YYYY-MM-DD>", unique per slot and calendar day.
	ID     string `json:"id"`
	SlotID int64  `json:"slot_id"`

	Title   string `json:"title"`
	Color   string `json:"color"`
	AudioID *int64 `json:"audio_id,omitempty"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// OccurrenceID builds the stable identity of a slot instance on day.
func OccurrenceID(slotID int64, day time.Time) string {
	return "slot-" + strconv.FormatInt(slotID, 10) + "-" + DateKey(day)
}

// DateKey formats t as a local calendar date (YYYY-MM-DD).
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// CivilDate returns t's calendar date in t's location as a UTC midnight.
// Day arithmetic on the result never crosses a DST transition.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartOfDay returns the first instant in loc of date's calendar day (date's
// own year, month and day). Where a DST change skips local midnight, that is
// the transition instant, e.g. 01:00 in America/Santiago on 2024-09-08.
func StartOfDay(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if ty, tm, td := t.Date(); ty == y && tm == m && td == d {
		return t
	}
	// time.Date resolved the missing midnight into the previous evening;
	// the day begins where that zone period ends.
	if _, end := t.ZoneBounds(); !end.IsZero() {
		return end
	}
	return t
}

// WallClock returns the instant in loc that is minutes past the start of
// date's calendar day, read as a wall clock. 1440 is the start of the next
// day. Minutes that fall in a skipped hour at midnight are pushed forward by
// the size of the gap.
func WallClock(date time.Time, minutes int, loc *time.Location) time.Time {
	day := CivilDate(date)
	if minutes >= MinutesPerDay {
		return StartOfDay(day.AddDate(0, 0, 1), loc)
	}
	t := time.Date(day.Year(), day.Month(), day.Day(), 0, minutes, 0, 0, loc)
	if CivilDate(t).Equal(day) {
		return t
	}
	return StartOfDay(day, loc).Add(time.Duration(minutes) * time.Minute)
}

// ISOWeekday maps t's weekday onto 1..7 with Sunday as 7.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// PresetID is a preset identifier. The backend sends numbers; synthetic
// presets derived from slots use "slot-<id>".
type PresetID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (p *PresetID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PresetID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = PresetID(n.String())
	return nil
}

// Int returns the numeric form of the id, if it has one.
func (p PresetID) Int() (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(p)), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Preset is a reusable reminder template that can be dropped onto the week.
type Preset struct {
	ID          PresetID `json:"id"`
	Name        string   `json:"name"`
	DurationMin int      `json:"duration_min"`
	Color       string   `json:"color"`
	AudioID     *int64   `json:"audio_id"`
	Audio       *Audio   `json:"audio,omitempty"`

	// IsEnabled is tri-state on the wire; absent means enabled.
	IsEnabled *bool `json:"is_enabled,omitempty"`
	SortOrder *int  `json:"sort_order"`

	IsFallback   bool  `json:"is_fallback,omitempty"`
	SourceSlotID int64 `json:"source_slot_id,omitempty"`
}

// Enabled reports whether the preset is enabled; only an explicit false disables it.
func (p Preset) Enabled() bool {
	return p.IsEnabled == nil || *p.IsEnabled
}

// Audio is a reminder sound stored in a cloud bucket.
type Audio struct {
	ID       int64  `json:"id"`
	Name     string `json:"name,omitempty"`
	GCSURL   string `json:"gcs_url"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// DisplayName is the trimmed name, else the last URL path segment, else
// "Untitled Audio".
func (a Audio) DisplayName() string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	u := strings.TrimSpace(a.GCSURL)
	if u == "" {
		return "Untitled Audio"
	}
	parts := strings.Split(u, "/")
	if last := strings.TrimSpace(parts[len(parts)-1]); last != "" {
		return last
	}
	return "Untitled Audio"
}

// User is a dashboard account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Schedule is the full reminder state returned by the backend.
type Schedule struct {
	Timezone string   `json:"timezone"`
	Slots    []Slot   `json:"slots"`
	Audios   []Audio  `json:"audios"`
	Presets  []Preset `json:"presets"`
}

// SlotPayload is the body of a slot save request. ID is omitted on create.
type SlotPayload struct {
	ID        *int64          `json:"id,omitempty"`
	Weekday   int             `json:"weekday"`
	StartMin  int             `json:"start_min"`
	EndMin    int             `json:"end_min"`
	Title     string          `json:"title"`
	Color     string          `json:"color"`
	Note      json.RawMessage `json:"note"`
	AudioID   *int64          `json:"audio_id"`
	IsEnabled bool            `json:"is_enabled"`
	SortOrder int             `json:"sort_order"`
}

// PresetPayload is the body of a preset save request.
type PresetPayload struct {
	ID          *int64 `json:"id,omitempty"`
	Name        string `json:"name" validate:"required"`
	DurationMin int    `json:"duration_min" validate:"min=1,max=1439"`
	Color       string `json:"color" validate:"required"`
	AudioID     *int64 `json:"audio_id" validate:"omitempty,min=1"`
	IsEnabled   bool   `json:"is_enabled"`
	SortOrder   *int   `json:"sort_order" validate:"omitempty,min=0"`
}

// AudioPayload is the body of an audio save request.
type AudioPayload struct {
	ID       *int64 `json:"id,omitempty"`
	GCSURL   string `json:"gcs_url" validate:"required"`
	Name     string `json:"name,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// CreateUserPayload is the body of a user create request.
type CreateUserPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=superadmin admin user"`
}

// ResetPasswordPayload is the body of a password reset request.
type ResetPasswordPayload struct {
	ID       int64  `json:"id" validate:"required,min=1"`
	Password string `json:"password" validate:"required"`
}

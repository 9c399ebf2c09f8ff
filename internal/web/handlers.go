package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"remindercal/internal/ics"
	appLog "remindercal/internal/log"
	"remindercal/internal/model"
	"remindercal/internal/reminder"
	"remindercal/internal/session"
)

const dateLayout = "2006-01-02"

// maxEventRangeDays bounds a single /api/events request.
const maxEventRangeDays = 366

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Occurrences []model.Occurrence `json:"occurrences"`
	RangeStart  time.Time          `json:"range_start"`
	RangeEnd    time.Time          `json:"range_end"`
	Timezone    string             `json:"timezone"`
	WeekStart   string             `json:"week_start"`
}

// handleEvents materializes the cached slots over a date range.
//
// GET /api/events?start=YYYY-MM-DD&end=YYYY-MM-DD
// GET /api/events?days=7&backfill=1
//
// Dates are calendar days in the schedule timezone; end is exclusive.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	loc := s.calendar.Location()
	q := r.URL.Query()

	var firstDay, lastDay time.Time
	if q.Get("start") != "" || q.Get("end") != "" {
		var err error
		firstDay, err = time.Parse(dateLayout, q.Get("start"))
		if err != nil {
			badRequest(w, r, "start must be YYYY-MM-DD")
			return
		}
		lastDay, err = time.Parse(dateLayout, q.Get("end"))
		if err != nil {
			badRequest(w, r, "end must be YYYY-MM-DD")
			return
		}
		if lastDay.Before(firstDay) {
			badRequest(w, r, "end is before start")
			return
		}
	} else {
		days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
		if days <= 0 {
			days = s.cfg.HorizonDays
		}
		backfill := parseIntDefault(q.Get("backfill"), 0)
		if backfill < 0 {
			backfill = 0
		}
		if days > maxEventRangeDays || backfill > maxEventRangeDays {
			badRequest(w, r, "range exceeds "+strconv.Itoa(maxEventRangeDays)+" days")
			return
		}
		today := model.CivilDate(s.now().In(loc))
		firstDay = today.AddDate(0, 0, -backfill)
		lastDay = today.AddDate(0, 0, days)
	}
	if lastDay.After(firstDay.AddDate(0, 0, maxEventRangeDays)) {
		badRequest(w, r, "range exceeds "+strconv.Itoa(maxEventRangeDays)+" days")
		return
	}
	rangeStart := model.StartOfDay(firstDay, loc)
	rangeEnd := model.StartOfDay(lastDay, loc)

	occs := s.calendar.Events(rangeStart, rangeEnd)
	if occs == nil {
		occs = []model.Occurrence{}
	}
	appLog.Debug("api events request",
		"range_start", rangeStart.Format(time.RFC3339),
		"range_end", rangeEnd.Format(time.RFC3339),
		"count", len(occs),
	)

	render.JSON(w, r, eventsResponse{
		Occurrences: occs,
		RangeStart:  rangeStart,
		RangeEnd:    rangeEnd,
		Timezone:    loc.String(),
		WeekStart:   s.cfg.WeekStart,
	})
}

type scheduleResponse struct {
	Timezone      string         `json:"timezone"`
	Slots         []model.Slot   `json:"slots"`
	Audios        []model.Audio  `json:"audios"`
	Presets       []model.Preset `json:"presets"`
	ActivePresets []model.Preset `json:"active_presets"`
	LoadedAt      time.Time      `json:"loaded_at"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	snap := s.calendar.Snapshot()
	render.JSON(w, r, scheduleResponse{
		Timezone:      snap.Timezone,
		Slots:         snap.Slots,
		Audios:        snap.Audios,
		Presets:       snap.Presets,
		ActivePresets: reminder.ActivePresets(snap.Presets),
		LoadedAt:      snap.LoadedAt,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.calendar.Reload(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.handleSchedule(w, r)
}

type sessionResponse struct {
	LoggedIn bool   `json:"logged_in"`
	LoginURL string `json:"login_url,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.login == nil {
		render.JSON(w, r, sessionResponse{LoggedIn: true})
		return
	}
	next := r.URL.Query().Get("next")
	loginURL, err := session.RequireLogin(r.Context(), s.login, next)
	render.JSON(w, r, sessionResponse{LoggedIn: err == nil, LoginURL: loginURL})
}

// handleICS serves the enabled slots as a weekly iCalendar feed.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	snap := s.calendar.Snapshot()
	body := ics.EncodeSlots(snap.Slots, snap.Location, "Reminders", s.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="reminders.ics"`)
	_, _ = w.Write([]byte(body))
}

// audioField tells an absent audio_id (keep) apart from null (none).
type audioField struct {
	set bool
	id  *int64
}

func (a *audioField) UnmarshalJSON(b []byte) error {
	a.set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		a.id = nil
		return nil
	}
	var id int64
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	a.id = &id
	return nil
}

func (a audioField) choice() reminder.AudioChoice {
	if !a.set {
		return reminder.KeepAudio
	}
	return reminder.AudioFrom(a.id)
}

type slotRequest struct {
	ID      int64      `json:"id"`
	Start   time.Time  `json:"start"`
	End     time.Time  `json:"end"`
	Title   string     `json:"title"`
	Color   string     `json:"color"`
	AudioID audioField `json:"audio_id"`
}

// handleSaveSlot creates (id 0) or edits a slot from a concrete time range.
func (s *Server) handleSaveSlot(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := s.calendar.SaveSlot(r.Context(), reminder.SlotDraft{
		SlotID: req.ID,
		Start:  req.Start,
		End:    req.End,
		Title:  req.Title,
		Color:  req.Color,
		Audio:  req.AudioID.choice(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, r)
}

type moveRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// handleMoveSlot applies a drag or resize of one occurrence to its slot.
func (s *Server) handleMoveSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.calendar.MoveOccurrence(r.Context(), id, req.Start, req.End); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, r)
}

func (s *Server) handleDeleteSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.calendar.DeleteSlot(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, r)
}

type dropRequest struct {
	Start time.Time `json:"start"`
}

// handleDropPreset creates a slot from a preset dropped on the week.
// Fallback presets use "slot-<id>" ids.
func (s *Server) handleDropPreset(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var req dropRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Start.IsZero() {
		s.writeError(w, r, reminder.ErrInvalidTime)
		return
	}
	if err := s.calendar.DropPreset(r.Context(), model.PresetID(id), req.Start); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, r)
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	if err := s.settings.Load(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, s.settings.Presets())
}

func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	var req reminder.PresetDraft
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.settings.SavePreset(r.Context(), req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.reloadCalendar(r)
	writeOK(w, r)
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleTogglePreset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req toggleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.settings.TogglePreset(r.Context(), id, req.Enabled); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.reloadCalendar(r)
	writeOK(w, r)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.settings.DeletePreset(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.reloadCalendar(r)
	writeOK(w, r)
}

type audioView struct {
	model.Audio
	DisplayName string `json:"display_name"`
}

func (s *Server) handleListAudios(w http.ResponseWriter, r *http.Request) {
	if err := s.settings.Load(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	audios := s.settings.Audios()
	out := make([]audioView, 0, len(audios))
	for _, a := range audios {
		out = append(out, audioView{Audio: a, DisplayName: a.DisplayName()})
	}
	render.JSON(w, r, out)
}

func (s *Server) handleSaveAudio(w http.ResponseWriter, r *http.Request) {
	var req reminder.AudioDraft
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.settings.SaveAudio(r.Context(), req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.reloadCalendar(r)
	writeOK(w, r)
}

func (s *Server) handleDeleteAudio(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.settings.DeleteAudio(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.reloadCalendar(r)
	writeOK(w, r)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Reload(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, s.users.List())
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req reminder.UserDraft
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.users.Create(r.Context(), req); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, r)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.users.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, r)
}

type passwordRequest struct {
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req passwordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.users.ResetPassword(r.Context(), id, req.Password, req.Confirm); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, r)
}

// reloadCalendar refreshes the calendar after a settings change, since
// presets and audios are part of the schedule.
func (s *Server) reloadCalendar(r *http.Request) {
	if err := s.calendar.Reload(r.Context()); err != nil {
		appLog.Error("calendar reload after settings change failed", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		badRequest(w, r, "invalid JSON body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, r, "invalid id")
		return 0, false
	}
	return id, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

package web

import (
	"embed"
	"html/template"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/disintegration/imaging"

	appLog "remindercal/internal/log"
	"remindercal/internal/model"
)

//go:embed templates/calendar.html
var templateFS embed.FS

var calendarTmpl = template.Must(template.ParseFS(templateFS, "templates/calendar.html"))

type weekPage struct {
	Title     string
	Range     string
	Timezone  string
	WeekStart string
	Days      []dayView
}

type dayView struct {
	Label  string
	Today  bool
	Events []eventView
}

type eventView struct {
	ID    string
	Time  string
	Title string
	Color string
}

// weekStartOf returns the start of the first day of t's week.
func weekStartOf(t time.Time, weekStart string) time.Time {
	day := model.CivilDate(t)
	offset := model.ISOWeekday(day) - 1
	if weekStart == "sunday" {
		offset = int(day.Weekday())
	}
	return model.StartOfDay(day.AddDate(0, 0, -offset), t.Location())
}

func (s *Server) buildWeek(anchor time.Time) weekPage {
	loc := s.calendar.Location()
	start := weekStartOf(anchor.In(loc), s.cfg.WeekStart)
	firstDay := model.CivilDate(start)
	end := model.StartOfDay(firstDay.AddDate(0, 0, 7), loc)
	today := model.DateKey(s.now().In(loc))

	byDay := map[string][]eventView{}
	for _, occ := range s.calendar.Events(start, end) {
		key := model.DateKey(occ.Start)
		byDay[key] = append(byDay[key], eventView{
			ID:    occ.ID,
			Time:  clock(occ.Start, occ.Start) + "-" + clock(occ.Start, occ.End),
			Title: occ.Title,
			Color: occ.Color,
		})
	}

	page := weekPage{
		Title:     "Reminders",
		Range:     firstDay.Format("Jan 2") + " - " + firstDay.AddDate(0, 0, 6).Format("Jan 2, 2006"),
		Timezone:  loc.String(),
		WeekStart: s.cfg.WeekStart,
		Days:      make([]dayView, 0, 7),
	}
	for i := 0; i < 7; i++ {
		day := firstDay.AddDate(0, 0, i)
		key := model.DateKey(day)
		page.Days = append(page.Days, dayView{
			Label:  day.Format("Mon 01/02"),
			Today:  key == today,
			Events: byDay[key],
		})
	}
	return page
}

// clock formats t as HH:MM, showing the start of the following day as 24:00.
func clock(day, t time.Time) string {
	if model.DateKey(t) != model.DateKey(day) && t.Equal(model.StartOfDay(t, t.Location())) {
		return "24:00"
	}
	return t.Format("15:04")
}

// handleCalendarPage renders the week containing ?date=YYYY-MM-DD (default
// today). The root element carries data-ready for the capture job.
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	anchor := s.now()
	if v := r.URL.Query().Get("date"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		anchor = model.StartOfDay(t, s.calendar.Location())
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := calendarTmpl.Execute(w, s.buildWeek(anchor)); err != nil {
		appLog.Error("render calendar page failed", err)
	}
}

// handlePreview serves the last captured PNG. ?w=<px> returns a resized
// copy keeping the aspect ratio.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	path := s.cfg.Capture.Output
	width, _ := strconv.Atoi(r.URL.Query().Get("w"))
	if width <= 0 {
		http.ServeFile(w, r, path)
		return
	}

	img, err := imaging.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		appLog.Error("open preview failed", err, "path", path)
		http.Error(w, "preview unavailable", http.StatusInternalServerError)
		return
	}
	if width < img.Bounds().Dx() {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		appLog.Error("encode preview failed", err)
	}
}

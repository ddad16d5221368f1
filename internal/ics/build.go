package ics

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "timetable2ics/internal/log"
	"timetable2ics/internal/model"
)

// DefaultProductID is the PRODID written when Meta leaves it empty.
const DefaultProductID = "-//386JP//MuSchoolTimetable//JP"

// floatingLayout formats wall-clock times without a zone suffix.
const floatingLayout = "20060102T150405"

// Meta carries calendar-level properties.
type Meta struct {
	ProductID string
}

// Build assembles one VCALENDAR holding a weekly recurring VEVENT per
// event. DTSTART, DTEND, UNTIL and EXDATE are written as floating local
// times; DTSTAMP is UTC.
func Build(events []model.CalendarEvent, meta Meta) *ical.Calendar {
	cal := ical.NewCalendar()
	if meta.ProductID == "" {
		meta.ProductID = DefaultProductID
	}
	cal.SetProductId(meta.ProductID)

	for _, ev := range events {
		ve := cal.AddEvent(ev.UID)
		ve.SetDtStampTime(ev.Stamp)
		ve.SetSummary(ev.Summary)
		ve.SetLocation(ev.Location)
		ve.SetDescription(ev.Description)
		ve.SetProperty(ical.ComponentPropertyDtStart, formatFloating(ev.Start))
		ve.SetProperty(ical.ComponentPropertyDtEnd, formatFloating(ev.End))
		ve.AddRrule("FREQ=WEEKLY;UNTIL=" + formatFloating(ev.Until))
		for _, ex := range ev.ExDates {
			ve.AddExdate(formatFloating(ex))
		}
	}

	return cal
}

// Serialize renders cal with CRLF line endings regardless of the host OS.
func Serialize(cal *ical.Calendar) string {
	return cal.Serialize(ical.WithNewLineWindows)
}

// WriteFile serializes cal to path via a temp file in the same directory
// and a rename, so readers never see a partial calendar.
func WriteFile(cal *ical.Calendar, path string) error {
	if path == "" {
		return errors.New("output path is empty")
	}
	if cal == nil {
		return errors.New("calendar is nil")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".timetable2ics-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := cal.SerializeTo(tmp, ical.WithNewLineWindows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	appLog.Info("calendar written", "path", path, "events", len(cal.Events()))
	return nil
}

func formatFloating(t time.Time) string {
	return t.Format(floatingLayout)
}

package schedule

import (
	"time"

	appErrors "timetable2ics/internal/errors"
)

var weekdays = map[string]time.Weekday{
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
	"Sunday":    time.Sunday,
}

// ParseWeekday resolves an English day name as written in the timetable.
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdays[name]
	if !ok {
		return 0, appErrors.Lookup("weekday", name)
	}
	return wd, nil
}

// FirstOnOrAfter returns the first date on or after from that falls on wd.
func FirstOnOrAfter(from time.Time, wd time.Weekday) time.Time {
	delta := int(wd) - int(from.Weekday())
	if delta < 0 {
		delta += 7
	}
	return from.AddDate(0, 0, delta)
}

package synth

import (
	"strconv"
	"strings"
	"time"

	appErrors "timetable2ics/internal/errors"
	appLog "timetable2ics/internal/log"
	"timetable2ics/internal/model"
	"timetable2ics/internal/schedule"
)

// URLPlacement controls where the URL of an online class is written.
type URLPlacement string

const (
	URLInLocation    URLPlacement = "location"
	URLInDescription URLPlacement = "description"
	URLInBoth        URLPlacement = "both"
	URLNowhere       URLPlacement = "none"
)

const (
	defaultUIDPrefix   = "mu-timetable-"
	defaultUIDDomain   = "dev.386.jp"
	defaultOnlineLabel = "Online"

	uidTimeLayout = "20060102T150405"
)

// Options holds the per-run constants the synthesizer stamps on events.
type Options struct {
	Institution string

	// UIDPrefix and UIDDomain frame every generated UID:
	// escape(prefix+institution+"_"+termStart+"_"+row+"_"+part)+"@"+domain.
	UIDPrefix string
	UIDDomain string

	OnlineLabel string
	OnlineURL   URLPlacement

	// Now supplies DTSTAMP. If nil, time.Now is used.
	Now func() time.Time
}

// Synthesizer turns validated rows into recurring calendar events.
type Synthesizer struct {
	sched *schedule.Schedule
	opts  Options
}

// New creates a Synthesizer over a resolved schedule.
func New(sched *schedule.Schedule, opts Options) *Synthesizer {
	if opts.UIDPrefix == "" {
		opts.UIDPrefix = defaultUIDPrefix
	}
	if opts.UIDDomain == "" {
		opts.UIDDomain = defaultUIDDomain
	}
	if opts.OnlineLabel == "" {
		opts.OnlineLabel = defaultOnlineLabel
	}
	switch opts.OnlineURL {
	case URLInLocation, URLInDescription, URLInBoth, URLNowhere:
	default:
		opts.OnlineURL = URLInLocation
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Synthesizer{sched: sched, opts: opts}
}

// SynthesizeAll converts rows in order and stops at the first failure.
func (s *Synthesizer) SynthesizeAll(rows []model.Row) ([]model.CalendarEvent, error) {
	events := make([]model.CalendarEvent, 0, len(rows))
	for i, row := range rows {
		evs, err := s.Synthesize(i, row)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}
	return events, nil
}

// SplitsAtLunch reports whether row runs across the lunch break.
func (s *Synthesizer) SplitsAtLunch(row model.Row) bool {
	l := s.sched.LunchBreakAfter
	return row.PeriodSpan > 1 && row.Period <= l && row.LastPeriod() > l
}

type span struct {
	start time.Duration
	end   time.Duration
}

// Synthesize produces the events of the row at 0-based position index:
// one, or two when the class is split at lunch.
func (s *Synthesizer) Synthesize(index int, row model.Row) ([]model.CalendarEvent, error) {
	term, err := s.sched.Term(row.Term)
	if err != nil {
		return nil, appErrors.AtRow(err, index)
	}
	wd, err := schedule.ParseWeekday(row.Weekday)
	if err != nil {
		return nil, appErrors.AtRow(err, index)
	}
	first, err := s.sched.Period(row.Period)
	if err != nil {
		return nil, appErrors.AtRow(err, index)
	}
	last, err := s.sched.Period(row.LastPeriod())
	if err != nil {
		return nil, appErrors.AtRow(err, index)
	}
	boundary, err := s.sched.Boundary(row.Term + row.TermSpan)
	if err != nil {
		return nil, appErrors.AtRow(err, index)
	}

	day := schedule.FirstOnOrAfter(term.Start, wd)
	until := boundary.AddDate(0, 0, -1)
	skips := s.sched.SkipDatesOn(day.Weekday())

	spans := []span{{start: first.Start, end: last.End}}
	if s.SplitsAtLunch(row) {
		beforeLunch, err := s.sched.Period(s.sched.LunchBreakAfter)
		if err != nil {
			return nil, appErrors.AtRow(err, index)
		}
		afterLunch, err := s.sched.Period(s.sched.LunchBreakAfter + 1)
		if err != nil {
			return nil, appErrors.AtRow(err, index)
		}
		spans = []span{
			{start: first.Start, end: beforeLunch.End},
			{start: afterLunch.Start, end: last.End},
		}
	}

	location, description := s.describe(row)
	stamp := s.opts.Now()

	events := make([]model.CalendarEvent, 0, len(spans))
	for part, sp := range spans {
		exdates := make([]time.Time, 0, len(skips))
		for _, d := range skips {
			exdates = append(exdates, d.Add(sp.start))
		}

		events = append(events, model.CalendarEvent{
			UID:         s.uid(term, index, part),
			Stamp:       stamp,
			Summary:     "[" + row.Number + "] " + row.Name,
			Description: description,
			Location:    location,
			Start:       day.Add(sp.start),
			End:         day.Add(sp.end),
			Until:       until,
			ExDates:     exdates,
			Row:         index,
			Part:        part,
		})
	}

	appLog.Debug("row synthesized",
		"row", index,
		"class", row.Number,
		"first", day.Format("2006-01-02"),
		"until", until.Format("2006-01-02"),
		"parts", len(events),
		"exdates", len(skips),
	)

	return events, nil
}

func (s *Synthesizer) uid(term model.Term, index, part int) string {
	raw := s.opts.UIDPrefix + s.opts.Institution +
		"_" + term.Start.Format(uidTimeLayout) +
		"_" + strconv.Itoa(index) +
		"_" + strconv.Itoa(part)
	return escapeUID(raw) + "@" + s.opts.UIDDomain
}

const upperHex = "0123456789ABCDEF"

// escapeUID percent-encodes every byte of s except ASCII letters, digits,
// "_.-~" and "/".
func escapeUID(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if keepInUID(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0F])
	}
	return b.String()
}

func keepInUID(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '_', '.', '-', '~', '/':
		return true
	}
	return false
}

func (s *Synthesizer) describe(row model.Row) (location, description string) {
	description = "Teacher: " + row.Teacher

	switch v := row.Venue.(type) {
	case model.OnlineVenue:
		location = s.opts.OnlineLabel
		if s.opts.OnlineURL == URLInLocation || s.opts.OnlineURL == URLInBoth {
			location += ": " + v.URL
		}
		if s.opts.OnlineURL == URLInDescription || s.opts.OnlineURL == URLInBoth {
			description += "\n" + v.URL
		}
	case model.RoomVenue:
		location = s.opts.Institution + " " + v.Place
	}

	return location, description
}

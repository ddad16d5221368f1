package ics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "timetable2ics/internal/log"
	"timetable2ics/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// RangeStart / RangeEnd define the inclusive time window for
	// occurrences. Zero values leave that side open.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap to avoid extremely large
	// expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and information
// about truncation.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// Expand turns parsed events into concrete occurrences: the weekly RRULE
// minus EXDATE for recurring events, the event itself otherwise. The
// result is sorted by start time, then UID.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if !cfg.RangeStart.IsZero() && !cfg.RangeEnd.IsZero() && cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	all := make([]model.Occurrence, 0)
	for _, ev := range events {
		occ, hitCap, err := expandEvent(ev, cfg)
		if err != nil {
			return result, err
		}
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", ev.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
		all = append(all, occ...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Start.Equal(all[j].Start) {
			return all[i].Start.Before(all[j].Start)
		}
		return all[i].UID < all[j].UID
	})

	result.Occurrences = all
	return result, nil
}

func expandEvent(ev ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool, error) {
	if ev.RawRRule == "" {
		if !inRange(ev.Start, cfg) {
			return nil, false, nil
		}
		return []model.Occurrence{makeOccurrence(ev, ev.Start, ev.End)}, false, nil
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil, false, fmt.Errorf("expand %s: RRULE %q: %w", ev.UID, ev.RawRRule, err)
	}

	// Ensure Dtstart is set to the event's DTSTART.
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex)
	}

	// Walk the iterator so rules without UNTIL stay bounded by the cap.
	times := make([]time.Time, 0)
	hitCap := false
	next := set.Iterator()
	for {
		t, ok := next()
		if !ok {
			break
		}
		if !cfg.RangeEnd.IsZero() && t.After(cfg.RangeEnd) {
			break
		}
		if !inRange(t, cfg) {
			continue
		}
		if len(times) == cfg.MaxOccurrencesPerEvent {
			hitCap = true
			break
		}
		times = append(times, t)
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]model.Occurrence, 0, len(times))
	for _, start := range times {
		out = append(out, makeOccurrence(ev, start, start.Add(dur)))
	}
	return out, hitCap, nil
}

func makeOccurrence(ev ParsedEvent, start, end time.Time) model.Occurrence {
	return model.Occurrence{
		UID:         ev.UID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       start,
		End:         end,
	}
}

func inRange(t time.Time, cfg ExpandConfig) bool {
	if !cfg.RangeStart.IsZero() && t.Before(cfg.RangeStart) {
		return false
	}
	if !cfg.RangeEnd.IsZero() && t.After(cfg.RangeEnd) {
		return false
	}
	return true
}

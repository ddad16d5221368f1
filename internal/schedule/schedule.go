package schedule

import (
	"errors"
	"strconv"
	"strings"
	"time"

	appErrors "timetable2ics/internal/errors"
	"timetable2ics/internal/model"
)

// dateLayout accepts "2021/4/9" as well as "2021/04/09".
const dateLayout = "2006/1/2"

// PeriodInput is one raw period slot as configured ("9:00" / "10:40").
type PeriodInput struct {
	Start string
	End   string
}

// Input is the raw configuration the resolver normalizes.
type Input struct {
	Periods         []PeriodInput
	LunchBreakAfter int
	TermStarts      []string
	// SkipDates holds ranges of one date or an inclusive [start, end] pair.
	SkipDates [][]string
}

// Schedule is the resolved, read-only time and term data shared by every
// row of a run.
type Schedule struct {
	Periods []model.PeriodSlot
	Terms   []model.Term

	// AcademicYearEnd is the boundary that follows the final configured
	// term: the last day of the twelve-month window opening with the first
	// term's month.
	AcademicYearEnd time.Time

	// LunchBreakAfter is the 1-based slot after which lunch starts; 0
	// disables splitting.
	LunchBreakAfter int

	// SkipDates are individual holiday dates, deduplicated, in the order
	// they were first configured.
	SkipDates []time.Time
}

// Resolve parses and expands the raw configuration.
func Resolve(in Input) (*Schedule, error) {
	if len(in.Periods) == 0 {
		return nil, appErrors.New(appErrors.CodeFormat, "at least one period slot is required")
	}
	if len(in.TermStarts) == 0 {
		return nil, appErrors.New(appErrors.CodeFormat, "at least one term start date is required")
	}

	s := &Schedule{
		Periods: make([]model.PeriodSlot, 0, len(in.Periods)),
		Terms:   make([]model.Term, 0, len(in.TermStarts)),
	}

	for _, p := range in.Periods {
		start, err := ParseClock(p.Start)
		if err != nil {
			return nil, err
		}
		end, err := ParseClock(p.End)
		if err != nil {
			return nil, err
		}
		s.Periods = append(s.Periods, model.PeriodSlot{Start: start, End: end})
	}

	if in.LunchBreakAfter < 0 || in.LunchBreakAfter > len(s.Periods) {
		return nil, appErrors.Index("lunch break slot", in.LunchBreakAfter, len(s.Periods))
	}
	s.LunchBreakAfter = in.LunchBreakAfter

	for i, raw := range in.TermStarts {
		start, err := ParseDate(raw)
		if err != nil {
			return nil, err
		}
		s.Terms = append(s.Terms, model.Term{Index: i + 1, Start: start})
	}
	s.AcademicYearEnd = AcademicYearEnd(s.Terms[0].Start)

	skips, err := ExpandSkipDates(in.SkipDates)
	if err != nil {
		return nil, err
	}
	s.SkipDates = skips

	return s, nil
}

// ParseClock converts "H:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, appErrors.Format(s, errors.New("expected H:MM"))
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, appErrors.Format(s, err)
	}
	m, err := strconv.Atoi(ms)
	if err != nil {
		return 0, appErrors.Format(s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, appErrors.Format(s, errors.New("clock time out of range"))
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// ParseDate converts "YYYY/M/D" into a midnight date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, appErrors.Format(s, err)
	}
	return t, nil
}

// AcademicYearEnd returns the day before the first of first's month one
// year later, e.g. 2021-04-09 -> 2022-03-31.
func AcademicYearEnd(first time.Time) time.Time {
	return time.Date(first.Year()+1, first.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// ExpandSkipDates flattens configured ranges into single dates. A
// two-element range covers every day from start to end inclusive; a
// reversed range covers nothing.
func ExpandSkipDates(ranges [][]string) ([]time.Time, error) {
	out := make([]time.Time, 0)
	seen := make(map[int64]struct{})

	add := func(d time.Time) {
		key := d.Unix()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}

	for _, r := range ranges {
		switch len(r) {
		case 1:
			d, err := ParseDate(r[0])
			if err != nil {
				return nil, err
			}
			add(d)
		case 2:
			start, err := ParseDate(r[0])
			if err != nil {
				return nil, err
			}
			end, err := ParseDate(r[1])
			if err != nil {
				return nil, err
			}
			days := int(end.Sub(start).Hours()/24) + 1
			for i := 0; i < days; i++ {
				add(start.AddDate(0, 0, i))
			}
		default:
			return nil, appErrors.Format(strings.Join(r, ","), errors.New("skip range needs one or two dates"))
		}
	}

	return out, nil
}

// Period returns the 1-based period slot i.
func (s *Schedule) Period(i int) (model.PeriodSlot, error) {
	if i < 1 || i > len(s.Periods) {
		return model.PeriodSlot{}, appErrors.Index("period", i, len(s.Periods))
	}
	return s.Periods[i-1], nil
}

// Term returns the 1-based term i.
func (s *Schedule) Term(i int) (model.Term, error) {
	if i < 1 || i > len(s.Terms) {
		return model.Term{}, appErrors.Index("term", i, len(s.Terms))
	}
	return s.Terms[i-1], nil
}

// Boundary returns the date that opens term i. One past the final term,
// it returns AcademicYearEnd.
func (s *Schedule) Boundary(i int) (time.Time, error) {
	if i == len(s.Terms)+1 {
		return s.AcademicYearEnd, nil
	}
	if i < 1 || i > len(s.Terms) {
		return time.Time{}, appErrors.Index("term boundary", i, len(s.Terms)+1)
	}
	return s.Terms[i-1].Start, nil
}

// SkipDatesOn returns the skip dates falling on wd.
func (s *Schedule) SkipDatesOn(wd time.Weekday) []time.Time {
	out := make([]time.Time, 0)
	for _, d := range s.SkipDates {
		if d.Weekday() == wd {
			out = append(out, d)
		}
	}
	return out
}

package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "timetable2ics/internal/errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleInput() Input {
	return Input{
		Periods: []PeriodInput{
			{Start: "9:00", End: "10:40"},
			{Start: "10:50", End: "12:30"},
			{Start: "13:20", End: "15:00"},
			{Start: "15:10", End: "16:50"},
		},
		LunchBreakAfter: 2,
		TermStarts:      []string{"2021/4/9", "2021/5/31", "2021/9/24", "2021/11/19"},
		SkipDates: [][]string{
			{"2021/5/21"},
			{"2021/7/17", "2021/9/23"},
		},
	}
}

func TestResolve(t *testing.T) {
	s, err := Resolve(sampleInput())
	require.NoError(t, err)

	require.Len(t, s.Periods, 4)
	assert.Equal(t, 9*time.Hour, s.Periods[0].Start)
	assert.Equal(t, 10*time.Hour+40*time.Minute, s.Periods[0].End)
	assert.Equal(t, 13*time.Hour+20*time.Minute, s.Periods[2].Start)

	require.Len(t, s.Terms, 4)
	assert.Equal(t, 1, s.Terms[0].Index)
	assert.Equal(t, date(2021, time.April, 9), s.Terms[0].Start)
	assert.Equal(t, date(2021, time.November, 19), s.Terms[3].Start)
	assert.Equal(t, date(2022, time.March, 31), s.AcademicYearEnd)
	assert.Equal(t, 2, s.LunchBreakAfter)

	assert.Len(t, s.SkipDates, 1+69)
}

func TestResolveRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"clock without colon", func(in *Input) { in.Periods[0].Start = "900" }},
		{"clock letters", func(in *Input) { in.Periods[1].End = "12:3o" }},
		{"clock out of range", func(in *Input) { in.Periods[0].Start = "25:00" }},
		{"term date", func(in *Input) { in.TermStarts[1] = "2021-05-31" }},
		{"impossible term date", func(in *Input) { in.TermStarts[1] = "2021/2/30" }},
		{"skip date", func(in *Input) { in.SkipDates[0] = []string{"someday"} }},
		{"empty skip range", func(in *Input) { in.SkipDates[0] = []string{} }},
		{"no periods", func(in *Input) { in.Periods = nil }},
		{"no terms", func(in *Input) { in.TermStarts = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sampleInput()
			tt.mutate(&in)
			_, err := Resolve(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrFormat)
		})
	}
}

func TestResolveLunchBreakRange(t *testing.T) {
	in := sampleInput()
	in.LunchBreakAfter = 5
	_, err := Resolve(in)
	assert.ErrorIs(t, err, appErrors.ErrIndex)

	in.LunchBreakAfter = 0
	s, err := Resolve(in)
	require.NoError(t, err)
	assert.Equal(t, 0, s.LunchBreakAfter)
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("9:05")
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour+5*time.Minute, d)

	d, err = ParseClock(" 18:50 ")
	require.NoError(t, err)
	assert.Equal(t, 18*time.Hour+50*time.Minute, d)
}

func TestAcademicYearEnd(t *testing.T) {
	assert.Equal(t, date(2022, time.March, 31), AcademicYearEnd(date(2021, time.April, 9)))
	assert.Equal(t, date(2025, time.August, 31), AcademicYearEnd(date(2024, time.September, 2)))
	// January start wraps into the previous December.
	assert.Equal(t, date(2024, time.December, 31), AcademicYearEnd(date(2024, time.January, 15)))
}

func TestExpandSkipDatesSummerBreak(t *testing.T) {
	dates, err := ExpandSkipDates([][]string{{"2021/7/17", "2021/9/23"}})
	require.NoError(t, err)

	require.Len(t, dates, 69)
	assert.Equal(t, date(2021, time.July, 17), dates[0])
	assert.Equal(t, date(2021, time.September, 23), dates[len(dates)-1])
	for i := 1; i < len(dates); i++ {
		assert.Equal(t, dates[i-1].AddDate(0, 0, 1), dates[i])
	}
}

func TestExpandSkipDatesDeduplicates(t *testing.T) {
	dates, err := ExpandSkipDates([][]string{
		{"2021/11/16", "2021/11/18"},
		{"2021/11/18"},
		{"2021/11/17", "2021/11/19"},
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		date(2021, time.November, 16),
		date(2021, time.November, 17),
		date(2021, time.November, 18),
		date(2021, time.November, 19),
	}, dates)
}

func TestExpandSkipDatesReversedRangeIsEmpty(t *testing.T) {
	dates, err := ExpandSkipDates([][]string{{"2021/9/23", "2021/7/17"}})
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestExpandSkipDatesAcrossYear(t *testing.T) {
	dates, err := ExpandSkipDates([][]string{{"2021/12/28", "2022/1/10"}})
	require.NoError(t, err)
	assert.Len(t, dates, 14)
}

func TestLookups(t *testing.T) {
	s, err := Resolve(sampleInput())
	require.NoError(t, err)

	p, err := s.Period(4)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Hour+10*time.Minute, p.Start)

	_, err = s.Period(0)
	assert.ErrorIs(t, err, appErrors.ErrIndex)
	_, err = s.Period(5)
	assert.ErrorIs(t, err, appErrors.ErrIndex)

	term, err := s.Term(2)
	require.NoError(t, err)
	assert.Equal(t, date(2021, time.May, 31), term.Start)
	_, err = s.Term(5)
	assert.ErrorIs(t, err, appErrors.ErrIndex)

	b, err := s.Boundary(4)
	require.NoError(t, err)
	assert.Equal(t, date(2021, time.November, 19), b)

	b, err = s.Boundary(5)
	require.NoError(t, err)
	assert.Equal(t, s.AcademicYearEnd, b)

	_, err = s.Boundary(6)
	assert.ErrorIs(t, err, appErrors.ErrIndex)
}

func TestSkipDatesOn(t *testing.T) {
	s, err := Resolve(sampleInput())
	require.NoError(t, err)

	mondays := s.SkipDatesOn(time.Monday)
	require.NotEmpty(t, mondays)
	for _, d := range mondays {
		assert.Equal(t, time.Monday, d.Weekday())
	}
	// Nine summer Fridays plus 2021-05-21.
	assert.Len(t, s.SkipDatesOn(time.Friday), 10)
	assert.Len(t, mondays, 10)
}

package model

import "time"

// Venue is where a class takes place: exactly one of OnlineVenue or
// RoomVenue. The interface is sealed so a Row can never carry both.
type Venue interface {
	isVenue()
}

// OnlineVenue is a class held remotely at URL.
type OnlineVenue struct {
	URL string
}

// RoomVenue is a class held on campus in Place.
type RoomVenue struct {
	Place string
}

func (OnlineVenue) isVenue() {}
func (RoomVenue) isVenue()   {}

// Row is one validated line of the timetable.
type Row struct {
	Number string
	Name   string

	// Term is the 1-based term the class starts in; TermSpan is how many
	// consecutive terms it runs for.
	Term     int
	TermSpan int

	// Weekday is the English day name as written in the timetable. It is
	// resolved during synthesis.
	Weekday string

	// Period is the 1-based first period slot; PeriodSpan is how many
	// consecutive slots the class occupies.
	Period     int
	PeriodSpan int

	Teacher string
	Venue   Venue
}

// LastPeriod is the 1-based index of the final slot the row occupies.
func (r Row) LastPeriod() int {
	return r.Period + r.PeriodSpan - 1
}

// PeriodSlot is a fixed daily period, as offsets from midnight.
type PeriodSlot struct {
	Start time.Duration
	End   time.Duration
}

// Term is one academic term, identified by its 1-based index.
type Term struct {
	Index int
	Start time.Time
}

// CalendarEvent is one weekly recurring series ready for serialization.
// All times are floating local wall-clock times carried in time.UTC.
type CalendarEvent struct {
	UID   string
	Stamp time.Time

	Summary     string
	Description string
	Location    string

	Start time.Time
	End   time.Time

	// Until is the last instant (inclusive) the weekly rule may fire.
	Until   time.Time
	ExDates []time.Time

	// Row is the 0-based timetable row; Part is 0, or 1 for the
	// afternoon half of a lunch-split class.
	Row  int
	Part int
}

// Occurrence represents a single concrete instance of an event
// (after recurrence expansion).
type Occurrence struct {
	UID string

	Summary     string
	Description string
	Location    string

	Start time.Time
	End   time.Time
}

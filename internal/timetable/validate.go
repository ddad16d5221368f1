package timetable

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "timetable2ics/internal/errors"
	"timetable2ics/internal/model"
)

// Columns lists the timetable header in order.
var Columns = []string{
	"classNumber",
	"className",
	"classTerm",
	"classTermDuration",
	"classWeekday",
	"classTime",
	"classTimeDuration",
	"classTeacher",
	"onlineURL",
	"classPlace",
}

// rawRow is one data line as read from the file, before validation.
type rawRow struct {
	ClassNumber       string `csv:"classNumber" validate:"required"`
	ClassName         string `csv:"className" validate:"required"`
	ClassTerm         string `csv:"classTerm" validate:"required,positive_int"`
	ClassTermDuration string `csv:"classTermDuration" validate:"required,positive_int"`
	ClassWeekday      string `csv:"classWeekday" validate:"required"`
	ClassTime         string `csv:"classTime" validate:"required,positive_int"`
	ClassTimeDuration string `csv:"classTimeDuration" validate:"required,positive_int"`
	ClassTeacher      string `csv:"classTeacher" validate:"required"`
	OnlineURL         string `csv:"onlineURL"`
	ClassPlace        string `csv:"classPlace"`
}

// trim treats whitespace-only cells as missing.
func (r *rawRow) trim() {
	for _, f := range []*string{
		&r.ClassNumber, &r.ClassName, &r.ClassTerm, &r.ClassTermDuration,
		&r.ClassWeekday, &r.ClassTime, &r.ClassTimeDuration, &r.ClassTeacher,
		&r.OnlineURL, &r.ClassPlace,
	} {
		*f = strings.TrimSpace(*f)
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := f.Tag.Get("csv")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("positive_int", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Field().String())
		return err == nil && n > 0
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		r := sl.Current().Interface().(rawRow)
		if (r.OnlineURL == "") == (r.ClassPlace == "") {
			sl.ReportError(r.OnlineURL, "onlineURL", "OnlineURL", "venue", "")
		}
	}, rawRow{})
	return v
}

// validateRows checks every row and reports every problem; it never
// stops at the first bad row.
func validateRows(v *validator.Validate, raws []rawRow) ([]model.Row, error) {
	var errs []error

	for i := range raws {
		raws[i].trim()
		err := v.Struct(raws[i])
		if err == nil {
			continue
		}
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, err
		}
		for _, fe := range fieldErrs {
			errs = append(errs, appErrors.Validation(i, fe.Field(), message(fe)))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	rows := make([]model.Row, 0, len(raws))
	for _, r := range raws {
		rows = append(rows, r.toRow())
	}
	return rows, nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "value is required"
	case "positive_int":
		return "must be a positive integer, got " + strconv.Quote(fe.Value().(string))
	case "venue":
		return "exactly one of onlineURL and classPlace must be set"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// toRow converts a row that already passed validation.
func (r rawRow) toRow() model.Row {
	row := model.Row{
		Number:     r.ClassNumber,
		Name:       r.ClassName,
		Term:       atoi(r.ClassTerm),
		TermSpan:   atoi(r.ClassTermDuration),
		Weekday:    r.ClassWeekday,
		Period:     atoi(r.ClassTime),
		PeriodSpan: atoi(r.ClassTimeDuration),
		Teacher:    r.ClassTeacher,
	}
	if r.OnlineURL != "" {
		row.Venue = model.OnlineVenue{URL: r.OnlineURL}
	} else {
		row.Venue = model.RoomVenue{Place: r.ClassPlace}
	}
	return row
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

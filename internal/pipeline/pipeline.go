package pipeline

import (
	"context"
	"fmt"
	"time"

	"timetable2ics/internal/config"
	"timetable2ics/internal/ics"
	appLog "timetable2ics/internal/log"
	"timetable2ics/internal/model"
	"timetable2ics/internal/schedule"
	"timetable2ics/internal/source"
	"timetable2ics/internal/synth"
	"timetable2ics/internal/timetable"
)

// Result summarizes one batch run.
type Result struct {
	Rows   int
	Events int
	Output string

	// Preview holds the expanded occurrences when Options.Preview is set.
	Preview []model.Occurrence
}

// Options tweak a single run.
type Options struct {
	// Preview parses the written calendar back and expands it.
	Preview bool
	// Now overrides the DTSTAMP clock.
	Now func() time.Time
}

// Run performs one full batch: load the timetable, validate it, resolve
// the schedule, synthesize events and write the calendar to cfg.Output.
// Nothing is written unless every step succeeds.
func Run(ctx context.Context, cfg *config.Config, opts Options) (Result, error) {
	started := time.Now()

	src, err := source.NewLoader(cfg.CacheDir).Load(ctx, cfg.Input)
	if err != nil {
		return Result{}, fmt.Errorf("load timetable: %w", err)
	}

	rows, err := timetable.NewReader(cfg.Sheet).Read(src.Name, src.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read timetable: %w", err)
	}

	sched, err := schedule.Resolve(cfg.ScheduleInput())
	if err != nil {
		return Result{}, fmt.Errorf("resolve schedule: %w", err)
	}

	synthOpts := cfg.SynthOptions()
	synthOpts.Now = opts.Now
	events, err := synth.New(sched, synthOpts).SynthesizeAll(rows)
	if err != nil {
		return Result{}, fmt.Errorf("synthesize events: %w", err)
	}

	cal := ics.Build(events, cfg.CalendarMeta())
	if err := ics.WriteFile(cal, cfg.Output); err != nil {
		return Result{}, fmt.Errorf("write calendar: %w", err)
	}

	res := Result{Rows: len(rows), Events: len(events), Output: cfg.Output}

	if opts.Preview {
		parsed, err := ics.Parse([]byte(ics.Serialize(cal)))
		if err != nil {
			return res, fmt.Errorf("preview: %w", err)
		}
		expanded, err := ics.Expand(parsed, ics.ExpandConfig{})
		if err != nil {
			return res, fmt.Errorf("preview: %w", err)
		}
		res.Preview = expanded.Occurrences
	}

	appLog.Info("generation completed",
		"rows", res.Rows,
		"events", res.Events,
		"output", res.Output,
		"from_cache", src.FromCache,
		"class_count", cfg.ClassCount,
		"elapsed", time.Since(started).String(),
	)
	return res, nil
}

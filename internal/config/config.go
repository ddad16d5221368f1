package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	appErrors "timetable2ics/internal/errors"
	"timetable2ics/internal/ics"
	appLog "timetable2ics/internal/log"
	"timetable2ics/internal/schedule"
	"timetable2ics/internal/synth"
)

const (
	defaultInput    = "./timetable.csv"
	defaultOutput   = "export.ics"
	defaultCacheDir = "./var/source-cache"
	defaultLogLevel = "info"
)

// PeriodConfig is one daily period slot ("9:00" to "10:40").
type PeriodConfig struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// CalendarConfig controls identity and text of the generated calendar.
type CalendarConfig struct {
	ProductID   string `yaml:"product_id" json:"product_id"`
	UIDPrefix   string `yaml:"uid_prefix" json:"uid_prefix"`
	UIDDomain   string `yaml:"uid_domain" json:"uid_domain"`
	OnlineLabel string `yaml:"online_label" json:"online_label"`
	// OnlineURL places the URL of online classes. Supported values:
	//   - "location" (default): "Online: <url>"
	//   - "description"
	//   - "both"
	//   - "none"
	OnlineURL string `yaml:"online_url" json:"online_url"`
}

// Config is the top-level application configuration.
type Config struct {
	// Institution prefixes room locations and UIDs.
	Institution string `yaml:"institution" json:"institution"`

	// Input is a local path or an http(s) URL to a CSV or XLSX timetable.
	Input string `yaml:"input" json:"input"`
	// Output is where the iCalendar file is written.
	Output string `yaml:"output" json:"output"`
	// Sheet selects the XLSX worksheet; empty means the first.
	Sheet string `yaml:"sheet" json:"sheet"`
	// CacheDir stores HTTP cache entries for remote inputs.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// RefreshCron is a cron-style schedule string (e.g. "0 6 * * *") used
	// to regenerate periodically. Empty means a single run.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Periods []PeriodConfig `yaml:"periods" json:"periods"`
	// LunchBreakAfter is the 1-based period after which lunch starts; 0
	// disables lunch splitting.
	LunchBreakAfter int `yaml:"lunch_break_after" json:"lunch_break_after"`
	// TermStarts are "YYYY/M/D" dates, one per term, in order.
	TermStarts []string `yaml:"term_starts" json:"term_starts"`
	// ClassCount is the number of classes per term. Kept for reference;
	// generation does not use it.
	ClassCount int `yaml:"class_count" json:"class_count"`
	// SkipDates are holidays: ["2021/5/21"] or an inclusive
	// ["2021/7/17", "2021/9/23"] range.
	SkipDates [][]string `yaml:"skip_dates" json:"skip_dates"`

	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
}

// DefaultConfig returns an in-memory default configuration: Musashino
// University's 2021 academic year.
func DefaultConfig() *Config {
	return &Config{
		Institution: "武蔵野大学",
		Input:       defaultInput,
		Output:      defaultOutput,
		CacheDir:    defaultCacheDir,
		LogLevel:    defaultLogLevel,
		Periods: []PeriodConfig{
			{Start: "9:00", End: "10:40"},
			{Start: "10:50", End: "12:30"},
			{Start: "13:20", End: "15:00"},
			{Start: "15:10", End: "16:50"},
			{Start: "17:00", End: "18:40"},
			{Start: "18:50", End: "20:30"},
		},
		LunchBreakAfter: 2,
		TermStarts:      []string{"2021/4/9", "2021/5/31", "2021/9/24", "2021/11/19"},
		ClassCount:      7,
		SkipDates: [][]string{
			{"2021/5/21"},
			{"2021/7/17", "2021/9/23"},
			{"2021/10/8", "2021/10/11"},
			{"2021/11/16", "2021/11/18"},
			{"2021/11/23"},
			{"2021/11/26", "2021/11/29"},
			{"2021/12/28", "2022/1/10"},
			{"2022/1/14", "2022/1/16"},
			{"2022/1/26", "2022/1/27"},
			{"2022/1/30", "2022/3/31"},
		},
		Calendar: CalendarConfig{
			ProductID:   ics.DefaultProductID,
			UIDPrefix:   "mu-timetable-",
			UIDDomain:   "dev.386.jp",
			OnlineLabel: "Online",
			OnlineURL:   string(synth.URLInLocation),
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly. Periods and term
// dates are never invented.
func (c *Config) Normalize() {
	if c.Input == "" {
		c.Input = defaultInput
	}
	if c.Output == "" {
		c.Output = defaultOutput
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.SkipDates == nil {
		c.SkipDates = [][]string{}
	}

	def := DefaultConfig().Calendar
	if c.Calendar.ProductID == "" {
		c.Calendar.ProductID = def.ProductID
	}
	if c.Calendar.UIDPrefix == "" {
		c.Calendar.UIDPrefix = def.UIDPrefix
	}
	if c.Calendar.UIDDomain == "" {
		c.Calendar.UIDDomain = def.UIDDomain
	}
	if c.Calendar.OnlineLabel == "" {
		c.Calendar.OnlineLabel = def.OnlineLabel
	}
	switch synth.URLPlacement(c.Calendar.OnlineURL) {
	case synth.URLInLocation, synth.URLInDescription, synth.URLInBoth, synth.URLNowhere:
		// ok
	default:
		// Unknown value; fall back to the location form.
		c.Calendar.OnlineURL = def.OnlineURL
	}
}

// ScheduleInput maps the config onto the resolver's raw input.
func (c *Config) ScheduleInput() schedule.Input {
	periods := make([]schedule.PeriodInput, 0, len(c.Periods))
	for _, p := range c.Periods {
		periods = append(periods, schedule.PeriodInput{Start: p.Start, End: p.End})
	}
	return schedule.Input{
		Periods:         periods,
		LunchBreakAfter: c.LunchBreakAfter,
		TermStarts:      c.TermStarts,
		SkipDates:       c.SkipDates,
	}
}

// SynthOptions maps the config onto the synthesizer options.
func (c *Config) SynthOptions() synth.Options {
	return synth.Options{
		Institution: c.Institution,
		UIDPrefix:   c.Calendar.UIDPrefix,
		UIDDomain:   c.Calendar.UIDDomain,
		OnlineLabel: c.Calendar.OnlineLabel,
		OnlineURL:   synth.URLPlacement(c.Calendar.OnlineURL),
	}
}

// CalendarMeta maps the config onto calendar-level properties.
func (c *Config) CalendarMeta() ics.Meta {
	return ics.Meta{ProductID: c.Calendar.ProductID}
}

// Load reads the timetable config at path. A missing file is a first
// run: DefaultConfig is written there (mode 0600) and returned, together
// with any error from writing it. An existing file is decoded and passed
// through Normalize.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg := DefaultConfig()
		appLog.Info("config not found, writing defaults", "path", path)
		return cfg, Save(path, cfg)
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeFormat, "config "+path+" is not valid YAML")
	}
	cfg.Normalize()
	return cfg, nil
}

// Save normalizes cfg and replaces the file at path with it. The config
// may hold a private input URL, so the file is owner-only.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := replaceFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Save writes c to path.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// replaceFile writes data beside path and renames it into place.
func replaceFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp.Name(), perm)
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

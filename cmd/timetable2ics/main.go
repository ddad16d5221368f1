package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"timetable2ics/internal/config"
	appLog "timetable2ics/internal/log"
	"timetable2ics/internal/model"
	"timetable2ics/internal/pipeline"
)

const envPrefix = "TT2ICS"

// flagConfig holds CLI flag values, merged with TT2ICS_* environment
// variables for flags not given on the command line.
type flagConfig struct {
	configPath string
	input      string
	output     string
	logLevel   string
	once       bool
	preview    bool
}

func main() {
	flags := parseFlags()
	os.Exit(run(flags))
}

func run(flags flagConfig) int {
	defer appLog.Sync()

	if flags.logLevel != "" {
		appLog.SetLevel(appLog.ParseLevel(flags.logLevel))
	}
	appLog.Info("timetable2ics starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return 1
	}
	applyOverrides(conf, flags)
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"config_path", flags.configPath,
		"institution", conf.Institution,
		"input", conf.Input,
		"output", conf.Output,
		"refresh", conf.RefreshCron,
		"periods", len(conf.Periods),
		"terms", len(conf.TermStarts),
		"once", flags.once,
		"preview", flags.preview,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	generate := func() error {
		res, err := pipeline.Run(ctx, conf, pipeline.Options{Preview: flags.preview})
		if err != nil {
			appLog.Error("generation failed", err, "input", conf.Input)
			return err
		}
		if flags.preview {
			printPreview(os.Stdout, res.Preview)
		}
		return nil
	}

	if flags.once || conf.RefreshCron == "" {
		if err := generate(); err != nil {
			return 1
		}
		return 0
	}

	// Scheduled mode: generate now, then on every tick until signalled.
	_ = generate()

	c := newScheduler()
	if _, err := c.AddFunc(conf.RefreshCron, func() { _ = generate() }); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		return 1
	}
	c.Start()
	appLog.Info("scheduler started", "refresh", conf.RefreshCron)

	<-ctx.Done()

	// Wait for a running generation to finish.
	<-c.Stop().Done()
	appLog.Info("timetable2ics exiting")
	return 0
}

// newScheduler drops a tick while the previous generation is still
// running, so two runs never share the cache or the output file.
func newScheduler() *cron.Cron {
	logger := cronLogger{}
	return cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.SkipIfStillRunning(logger)),
	)
}

// cronLogger routes cron's own messages through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "timetable.yaml", "Path to config file")
	flag.StringVar(&cfg.input, "input", "", "Timetable path or URL (overrides config if set)")
	flag.StringVar(&cfg.output, "output", "", "Output .ics path (overrides config if set)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, error (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Generate once and exit even if refresh is configured")
	flag.BoolVar(&cfg.preview, "preview", false, "Print every expanded occurrence after generating")

	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	applyEnv(&cfg, set, v)

	return cfg
}

// applyEnv fills flags not given on the command line from the
// environment, e.g. TT2ICS_INPUT or TT2ICS_LOG_LEVEL.
func applyEnv(cfg *flagConfig, set map[string]bool, v *viper.Viper) {
	str := func(name, key string, dst *string) {
		if !set[name] && v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	boolean := func(name, key string, dst *bool) {
		if !set[name] && v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	str("config", "config", &cfg.configPath)
	str("input", "input", &cfg.input)
	str("output", "output", &cfg.output)
	str("log-level", "log_level", &cfg.logLevel)
	boolean("once", "once", &cfg.once)
	boolean("preview", "preview", &cfg.preview)
}

// applyOverrides lets CLI/env values win over the config file.
func applyOverrides(conf *config.Config, flags flagConfig) {
	if flags.input != "" {
		conf.Input = flags.input
	}
	if flags.output != "" {
		conf.Output = flags.output
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
}

func printPreview(w io.Writer, occs []model.Occurrence) {
	for _, o := range occs {
		fmt.Fprintf(w, "%s %s-%s  %s  @ %s\n",
			o.Start.Format("2006-01-02 Mon"),
			o.Start.Format("15:04"),
			o.End.Format("15:04"),
			o.Summary,
			o.Location,
		)
	}
	fmt.Fprintf(w, "%d occurrences\n", len(occs))
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/RobDeGeorge/fathertime/internal/config"
	"github.com/RobDeGeorge/fathertime/internal/daemon"
	"github.com/RobDeGeorge/fathertime/internal/errors"
	"github.com/RobDeGeorge/fathertime/internal/events"
	"github.com/RobDeGeorge/fathertime/internal/report"
	"github.com/RobDeGeorge/fathertime/internal/session"
	"github.com/RobDeGeorge/fathertime/internal/store"
	"github.com/RobDeGeorge/fathertime/internal/timer"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"fathertime.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Daemon struct{} `cmd:"" help:"Run the tick daemon with the HTTP command API"`

	Add struct {
		Name string `arg:"" help:"Timer name"`
		Kind string `default:"stopwatch" enum:"stopwatch,countdown" help:"Timer kind"`
	} `cmd:"" help:"Create a new timer"`

	Ls struct{} `cmd:"" help:"List timers"`

	Start struct {
		Timer string `arg:"" help:"Timer id or name"`
	} `cmd:"" help:"Start a timer (requires the running daemon)"`

	Stop struct {
		Timer string `arg:"" help:"Timer id or name"`
	} `cmd:"" help:"Stop a timer (requires the running daemon)"`

	Reset struct {
		Timer string `arg:"" help:"Timer id or name"`
	} `cmd:"" help:"Reset a timer's accounting"`

	Adjust struct {
		Timer string `arg:"" help:"Timer id or name"`
		Delta int64  `arg:"" help:"Seconds to add (negative subtracts)"`
	} `cmd:"" help:"Manually correct a timer's time"`

	Set struct {
		Timer   string `arg:"" help:"Timer id or name"`
		Seconds int64  `arg:"" help:"Countdown total in seconds"`
	} `cmd:"" help:"Configure a countdown's total time"`

	Rename struct {
		Timer string `arg:"" help:"Timer id or name"`
		Name  string `arg:"" help:"New name"`
	} `cmd:"" help:"Rename a timer"`

	Fav struct {
		Timer string `arg:"" help:"Timer id or name"`
	} `cmd:"" help:"Toggle a timer's favorite flag"`

	Rm struct {
		Timer string `arg:"" help:"Timer id or name"`
	} `cmd:"" help:"Delete a timer (sessions remain as history)"`

	Report struct{} `cmd:"" help:"Show the daily breakdown window"`

	Timesheet struct{} `cmd:"" help:"Print the weekly timesheet"`

	ResetAll struct {
		Yes bool `help:"Confirm destroying all timers and history"`
	} `cmd:"" name:"reset-all" help:"Destroy all timers and session history"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := new(slog.LevelVar)
	if CLI.Verbose {
		logLevel.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(exitCodeFor(err))
	}
	if !CLI.Verbose {
		logLevel.Set(parseLevel(cfg.Logging.Level))
	}

	if ctx.Command() == "daemon" {
		runDaemon(cfg, logLevel)
		return
	}

	if err := runCommand(ctx.Command(), cfg); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(exitCodeFor(err))
	}
}

func runDaemon(cfg *config.Config, logLevel *slog.LevelVar) {
	d, err := daemon.New(cfg, CLI.Config, logLevel)
	if err != nil {
		slog.Error("failed to initialize daemon", "error", err)
		os.Exit(exitCodeFor(err))
	}
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := d.Run(runCtx); err != nil {
		slog.Error("daemon failed", "error", err)
		os.Exit(exitCodeFor(err))
	}
}

// runCommand dispatches a one-shot command. With a daemon listening, the
// command goes through its HTTP API so the daemon stays the single
// writer of the data directory; without one, the data files are opened
// directly.
func runCommand(command string, cfg *config.Config) error {
	if client := daemon.Dial(cfg.Daemon.ListenAddr); client != nil {
		return runRemote(command, client)
	}
	return runLocal(command, cfg)
}

func runRemote(command string, client *daemon.Client) error {
	resolve := func(ref string) (string, error) {
		views, err := client.ListTimers()
		if err != nil {
			return "", err
		}
		return resolveRef(ref, func(yield func(id, name string) bool) {
			for _, v := range views {
				if !yield(v.ID, v.Name) {
					return
				}
			}
		})
	}

	switch command {
	case "add <name>":
		view, err := client.CreateTimer(CLI.Add.Name, CLI.Add.Kind)
		if err != nil {
			return err
		}
		fmt.Printf("created %s %q (%s)\n", view.Kind, view.Name, view.ID)
		return nil
	case "ls":
		views, err := client.ListTimers()
		if err != nil {
			return err
		}
		printTimerList(views)
		return nil
	case "start <timer>":
		id, err := resolve(CLI.Start.Timer)
		if err != nil {
			return err
		}
		return client.StartTimer(id)
	case "stop <timer>":
		id, err := resolve(CLI.Stop.Timer)
		if err != nil {
			return err
		}
		return client.StopTimer(id)
	case "reset <timer>":
		id, err := resolve(CLI.Reset.Timer)
		if err != nil {
			return err
		}
		return client.ResetTimer(id)
	case "adjust <timer> <delta>":
		id, err := resolve(CLI.Adjust.Timer)
		if err != nil {
			return err
		}
		return client.AdjustTimer(id, CLI.Adjust.Delta)
	case "set <timer> <seconds>":
		id, err := resolve(CLI.Set.Timer)
		if err != nil {
			return err
		}
		return client.SetCountdown(id, CLI.Set.Seconds)
	case "rename <timer> <name>":
		id, err := resolve(CLI.Rename.Timer)
		if err != nil {
			return err
		}
		return client.RenameTimer(id, CLI.Rename.Name)
	case "fav <timer>":
		id, err := resolve(CLI.Fav.Timer)
		if err != nil {
			return err
		}
		return client.ToggleFavorite(id)
	case "rm <timer>":
		id, err := resolve(CLI.Rm.Timer)
		if err != nil {
			return err
		}
		return client.DeleteTimer(id)
	case "report":
		days, err := client.Daily()
		if err != nil {
			return err
		}
		printReport(days)
		return nil
	case "timesheet":
		sheet, err := client.Timesheet()
		if err != nil {
			return err
		}
		fmt.Print(sheet)
		return nil
	case "reset-all":
		if !CLI.ResetAll.Yes {
			return errors.ValidationError("refusing to destroy all data without --yes")
		}
		return client.ResetAll()
	default:
		return errors.InternalError("unknown command").WithContext("command", command)
	}
}

// services opens the data directory for a one-shot command when no
// daemon is running.
type services struct {
	registry   *timer.Registry
	aggregator *report.Aggregator
	reportCfg  config.ReportConfig
}

func openServices(cfg *config.Config) (*services, error) {
	st, err := store.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	log, err := session.Open(st, cfg.Report.WindowDays, time.Now())
	if err != nil {
		return nil, err
	}
	registry, err := timer.NewRegistry(st, log, events.NewNotifier(), cfg.Tick.FlushEveryTicks)
	if err != nil {
		return nil, err
	}
	return &services{
		registry:   registry,
		aggregator: report.NewAggregator(log, st, cfg.Report.WindowDays),
		reportCfg:  cfg.Report,
	}, nil
}

func runLocal(command string, cfg *config.Config) error {
	// Without the daemon nothing ticks, and a persisted running state
	// would only be reconciled away as a zero-duration session on the
	// next load. Refuse rather than silently lose time.
	switch command {
	case "start <timer>", "stop <timer>":
		return errors.ValidationError("start and stop need the running daemon; launch it with 'fathertime daemon'")
	}

	svc, err := openServices(cfg)
	if err != nil {
		return err
	}

	switch command {
	case "add <name>":
		t, err := svc.registry.Add(CLI.Add.Name, timer.Kind(CLI.Add.Kind))
		if err != nil {
			return err
		}
		fmt.Printf("created %s %q (%s)\n", t.Kind, t.Name, t.ID)
		return nil
	case "ls":
		printTimerList(svc.views())
		return nil
	case "reset <timer>":
		id, err := svc.resolve(CLI.Reset.Timer)
		if err != nil {
			return err
		}
		return svc.registry.Reset(id)
	case "adjust <timer> <delta>":
		id, err := svc.resolve(CLI.Adjust.Timer)
		if err != nil {
			return err
		}
		return svc.registry.AdjustTime(id, CLI.Adjust.Delta)
	case "set <timer> <seconds>":
		id, err := svc.resolve(CLI.Set.Timer)
		if err != nil {
			return err
		}
		return svc.registry.SetCountdownTime(id, CLI.Set.Seconds)
	case "rename <timer> <name>":
		id, err := svc.resolve(CLI.Rename.Timer)
		if err != nil {
			return err
		}
		return svc.registry.Rename(id, CLI.Rename.Name)
	case "fav <timer>":
		id, err := svc.resolve(CLI.Fav.Timer)
		if err != nil {
			return err
		}
		return svc.registry.ToggleFavorite(id)
	case "rm <timer>":
		id, err := svc.resolve(CLI.Rm.Timer)
		if err != nil {
			return err
		}
		return svc.registry.Delete(id)
	case "report":
		printReport(svc.aggregator.Breakdown(time.Now()))
		return nil
	case "timesheet":
		fmt.Print(svc.aggregator.Timesheet(time.Now()))
		return nil
	case "reset-all":
		if !CLI.ResetAll.Yes {
			return errors.ValidationError("refusing to destroy all data without --yes")
		}
		return svc.registry.ResetAllData()
	default:
		return errors.InternalError("unknown command").WithContext("command", command)
	}
}

// resolveRef accepts a timer id or a (case-insensitive) timer name.
func resolveRef(ref string, each func(yield func(id, name string) bool)) (string, error) {
	found := ""
	each(func(id, name string) bool {
		if id == ref {
			found = id
			return false
		}
		if found == "" && strings.EqualFold(name, ref) {
			found = id
		}
		return true
	})
	if found == "" {
		return "", errors.NotFoundError(ref)
	}
	return found, nil
}

func (s *services) resolve(ref string) (string, error) {
	timers := s.registry.Timers()
	return resolveRef(ref, func(yield func(id, name string) bool) {
		for _, t := range timers {
			if !yield(t.ID, t.Name) {
				return
			}
		}
	})
}

func (s *services) views() []daemon.TimerView {
	timers := s.registry.Timers()
	views := make([]daemon.TimerView, len(timers))
	for i, t := range timers {
		var display string
		switch {
		case t.Kind == timer.KindCountdown:
			display = report.FormatClock(t.RemainingSeconds)
		case t.IsRunning:
			display = report.FormatClock(t.ElapsedSeconds)
		default:
			display = report.DecimalHours(t.ElapsedSeconds, s.reportCfg.RoundingEnabled, s.reportCfg.RoundingMinutes)
		}
		views[i] = daemon.TimerView{Timer: t, DisplayTime: display}
	}
	return views
}

func printTimerList(views []daemon.TimerView) {
	if len(views) == 0 {
		fmt.Println("no timers")
		return
	}
	for _, v := range views {
		state := "stopped"
		if v.IsRunning {
			state = "running"
		}
		fav := " "
		if v.IsFavorite {
			fav = "*"
		}
		fmt.Printf("%s %-10s %-9s %9s  %s  %s\n", fav, v.Kind, state, v.DisplayTime, v.ID, v.Name)
	}
}

func printReport(days []report.DailyBreakdown) {
	for _, day := range days {
		if day.TotalSeconds == 0 {
			continue
		}
		fmt.Printf("%s  total %s\n", day.Date, report.FormatLiteral(day.TotalSeconds))
		for id, secs := range day.PerTimerSeconds {
			fmt.Printf("  - %s: %s\n", day.TimerNames[id], report.FormatLiteral(secs))
		}
	}
}

// exitCodeFor maps error categories to exit codes.
func exitCodeFor(err error) int {
	switch errors.GetCategory(err) {
	case errors.CategoryValidation, errors.CategoryDuplicateName:
		return 2
	case errors.CategoryNotFound:
		return 3
	case errors.CategoryConfig:
		return 7
	case errors.CategoryDaemon:
		return 9
	case errors.CategoryPersistence:
		return 11
	default:
		return 1
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sarchlab/procsim/config"
	"github.com/sarchlab/procsim/datarecording"
	"github.com/sarchlab/procsim/logging"
	"github.com/sarchlab/procsim/manager"
	"github.com/sarchlab/procsim/memory"
	"github.com/sarchlab/procsim/monitoring"
	"github.com/sarchlab/procsim/process"
	"github.com/sarchlab/procsim/scheduling"
	"github.com/sarchlab/procsim/surrogate"
	"github.com/sarchlab/procsim/timing"
	"github.com/sarchlab/procsim/tracing"
	"github.com/sarchlab/procsim/transcript"
)

func newRootCmd(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Simulate memory admission and CPU scheduling of processes",
		Long: "allocate reads a process list, admits processes to memory, " +
			"schedules them with the chosen policy, and prints what happens " +
			"at every simulated time unit.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := run(cfg, cmd.OutOrStdout())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "allocate: %s\n", err)
			}

			return err
		},
	}

	registerFlags(cmd, &cfg)

	return cmd
}

func registerFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()

	f.StringVarP(&cfg.InputFile, "file", "f", cfg.InputFile,
		"process list, one 'arrival name service memory' record per line")
	f.StringVarP(&cfg.Scheduler, "scheduler", "s", cfg.Scheduler,
		"scheduling policy (SJF or RR)")
	f.StringVarP(&cfg.MemoryStrategy, "memory", "m", cfg.MemoryStrategy,
		"memory strategy (infinite or best-fit)")
	f.Uint64VarP(&cfg.Quantum, "quantum", "q", cfg.Quantum,
		"length of a scheduling quantum")
	f.StringVar(&cfg.SurrogatePath, "surrogate", cfg.SurrogatePath,
		"path of the surrogate executable")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel,
		"log level (debug, info, warn, error)")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat,
		"log format (console or json)")
	f.StringVar(&cfg.RecordPath, "record", cfg.RecordPath,
		"record the run into NAME.sqlite3; without a value the name is generated")
	f.Lookup("record").NoOptDefVal = config.RecordAuto
	f.IntVar(&cfg.MonitorPort, "monitor-port", cfg.MonitorPort,
		"serve the web monitor on this port (0 picks a free port, negative disables)")
	f.BoolVar(&cfg.OpenBrowser, "open-browser", cfg.OpenBrowser,
		"open the web monitor in a browser")

	_ = cmd.MarkFlagFilename("file")
}

func run(cfg config.Config, stdout io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	procs, err := loadProcesses(cfg.InputFile, logger)
	if err != nil {
		return err
	}

	m, err := buildManager(cfg, procs, logger)
	if err != nil {
		return err
	}

	printer := transcript.NewPrinter(stdout)
	m.AcceptHook(printer)

	finish, err := attachRecorder(cfg, m)
	if err != nil {
		return err
	}
	defer finish()

	stopMonitor, err := attachMonitor(cfg, m, len(procs), logger)
	if err != nil {
		return err
	}
	defer stopMonitor()

	if err := m.Run(); err != nil {
		return fmt.Errorf("simulation stopped at time %d: %w",
			m.Engine().CurrentTime(), err)
	}

	return printer.Err()
}

func loadProcesses(path string, logger *zap.Logger) ([]*process.Process, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return process.Load(f, logger)
}

func buildManager(
	cfg config.Config,
	procs []*process.Process,
	logger *zap.Logger,
) (*manager.Manager, error) {
	sched, err := scheduling.ByName(cfg.Scheduler)
	if err != nil {
		return nil, err
	}

	mem, err := memory.NewStrategy(cfg.MemoryStrategy, memory.DefaultCapacity)
	if err != nil {
		return nil, err
	}

	return manager.MakeBuilder().
		WithEngine(timing.NewSerialEngine()).
		WithQuantum(timing.VTimeInCycle(cfg.Quantum)).
		WithScheduler(sched).
		WithMemoryStrategy(mem).
		WithLauncher(&surrogate.OSLauncher{
			Path:   cfg.SurrogatePath,
			Logger: logger,
		}).
		WithLogger(logger).
		Build(procs)
}

// attachRecorder records the transcript into a SQLite file when a record
// path is set. The returned function finalizes the file.
func attachRecorder(cfg config.Config, m *manager.Manager) (func(), error) {
	file, enabled := cfg.Recording()
	if !enabled {
		return func() {}, nil
	}

	recorder, err := datarecording.New(file)
	if err != nil {
		return nil, err
	}

	tracer := tracing.NewDBTracer(recorder)
	m.AcceptHook(tracer)

	exec := datarecording.NewExecRecorder(recorder)
	exec.Start(
		datarecording.ExecInfo{Property: "Run ID", Value: tracer.RunID()},
		datarecording.ExecInfo{Property: "Scheduler", Value: cfg.Scheduler},
		datarecording.ExecInfo{Property: "Memory", Value: cfg.MemoryStrategy},
		datarecording.ExecInfo{
			Property: "Quantum",
			Value:    strconv.FormatUint(cfg.Quantum, 10),
		},
	)

	return func() {
		exec.End()

		if err := recorder.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "allocate: closing record: %s\n", err)
		}
	}, nil
}

func attachMonitor(
	cfg config.Config,
	m *manager.Manager,
	numProcs int,
	logger *zap.Logger,
) (func(), error) {
	if !cfg.MonitorEnabled() {
		return func() {}, nil
	}

	monitor := monitoring.NewMonitor().
		WithLogger(logger).
		WithPortNumber(cfg.MonitorPort)
	monitor.RegisterEngine(m.Engine())
	monitor.RegisterStateSource(m)

	bar := monitor.CreateProgressBar("Processes", uint64(numProcs))
	m.AcceptHook(monitoring.NewProgressHook(bar))

	url, err := monitor.StartServer()
	if err != nil {
		return nil, err
	}

	if cfg.OpenBrowser {
		if err := browser.OpenURL(url); err != nil {
			logger.Warn("cannot open browser", zap.Error(err))
		}
	}

	return func() {
		monitor.CompleteProgressBar(bar)

		if err := monitor.StopServer(); err != nil {
			logger.Warn("cannot stop monitor", zap.Error(err))
		}
	}, nil
}

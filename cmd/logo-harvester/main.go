package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/WangYihang/Logo-Harvester/pkg/application"
	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	"github.com/WangYihang/Logo-Harvester/pkg/interface/cli"
	"github.com/WangYihang/Logo-Harvester/pkg/interface/presenter"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line flags
	config, err := cli.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if config.Version {
		fmt.Println(cli.CurrentVersion().String())
		return 0
	}

	logger, closeLog, err := newLogger(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	runID := uuid.NewString()
	logger.WithFields(logrus.Fields{
		"run_id":  runID,
		"version": cli.CurrentVersion().Short(),
	}).Info("starting logo harvester")

	// Assemble use case with all dependencies
	assembler := cli.NewAssembler(config, runID, logger)
	useCase, targets, err := assembler.AssembleUseCase()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() {
		if err := useCase.Close(); err != nil {
			logger.WithError(err).Warn("failed to close state files")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if exporter := assembler.Exporter(); exporter != nil {
		go func() {
			if err := exporter.Serve(ctx, config.MetricsAddr); err != nil {
				logger.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	var report entity.Report
	switch {
	case config.ShowDashboard:
		report, err = runWithDashboard(ctx, useCase, targets)
	case config.ShowProgress:
		console := presenter.NewConsole(os.Stderr)
		useCase.RegisterMetricsObserver(console)
		report, err = useCase.Execute(ctx, targets)
		console.Wait()
	default:
		report, err = useCase.Execute(ctx, targets)
	}

	printSummary(os.Stderr, report, len(targets))
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "Interrupted, unfinished domains were left pending")
		return 130
	case err != nil:
		fmt.Fprintf(os.Stderr, "Acquisition error: %v\n", err)
		return 1
	}
	return 0
}

// runWithDashboard runs the batch behind the TUI. Quitting the TUI cancels
// the batch, and the TUI closes once the batch returns.
func runWithDashboard(ctx context.Context, useCase *application.AcquireUseCase, targets []entity.Target) (entity.Report, error) {
	dashboard := presenter.NewDashboard()
	useCase.RegisterMetricsObserver(dashboard)

	batchCtx, cancelBatch := context.WithCancel(ctx)
	defer cancelBatch()
	uiCtx, closeUI := context.WithCancel(ctx)

	uiDone := make(chan error, 1)
	go func() {
		err := dashboard.Run(uiCtx)
		cancelBatch()
		uiDone <- err
	}()

	report, err := useCase.Execute(batchCtx, targets)
	closeUI()
	if uiErr := <-uiDone; uiErr != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", uiErr)
	}
	return report, err
}

// newLogger configures logrus from the flags. The dashboard owns the
// terminal, so its logs go to a file in the state directory.
func newLogger(config *cli.Config) (*logrus.Logger, func(), error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger.SetLevel(level)

	if config.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if !config.ShowDashboard && !config.ShowProgress {
		logger.SetOutput(os.Stderr)
		return logger, func() {}, nil
	}

	if err := os.MkdirAll(config.StateDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(config.StateDir, "harvester.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger.SetOutput(f)
	return logger, func() { f.Close() }, nil
}

func printSummary(w io.Writer, report entity.Report, inputs int) {
	reused := 0
	for _, result := range report {
		if result.Reused {
			reused++
		}
	}
	fmt.Fprintf(w, "Inputs: %d  Domains: %d\n", inputs, len(report))
	fmt.Fprintf(w, "Acquired: %d (reused %d)  No asset found: %d  Pending: %d\n",
		report.Count(entity.StateAcquired), reused,
		report.Count(entity.StateNoAssetFound), report.Count(entity.StatePending))
}

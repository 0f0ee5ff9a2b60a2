package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rivo/tview"
	"tinygo.org/x/bluetooth"

	"github.com/impact-insoles/insole-app/internal/app"
	"github.com/impact-insoles/insole-app/internal/bt"
	"github.com/impact-insoles/insole-app/internal/config"
	"github.com/impact-insoles/insole-app/internal/connection"
	"github.com/impact-insoles/insole-app/internal/dashboard"
	"github.com/impact-insoles/insole-app/internal/feed"
	"github.com/impact-insoles/insole-app/internal/logging"
	"github.com/impact-insoles/insole-app/internal/recording"
	"github.com/impact-insoles/insole-app/internal/sched"
	"github.com/impact-insoles/insole-app/internal/telemetry"
)

const uiLogBuffer = 256

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logConfig := logging.Config{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}

	// the dashboard owns the terminal, headless mode owns stdout
	var uiLog *logging.UILogWriter
	var logger *log.Logger
	var logCloser io.Closer
	if cfg.Headless {
		logger, logCloser = logging.New(logConfig, os.Stderr)
	} else {
		uiLog = logging.NewUILogWriter(uiLogBuffer)
		logger, logCloser = logging.New(logConfig, uiLog)
	}
	defer logCloser.Close()

	logger.Printf("Starting (mock=%v headless=%v)", cfg.Mock, cfg.Headless)

	loop := sched.NewLoopScheduler(logger)
	defer loop.Close()

	transport, shutdownTransport, err := newTransport(cfg, logger, loop)
	if err != nil {
		return err
	}
	defer shutdownTransport()

	machine := connection.NewMachine(logger, loop, transport, connection.MachineConfig{
		ScanTimeout:    cfg.ScanTimeout,
		ConnectTimeout: cfg.ConnectTimeout,
	})
	aggregator := recording.NewAggregator(logger, loop, recording.AggregatorConfig{
		CadenceWindow: cfg.CadenceWindow,
		StreamTimeout: cfg.StreamTimeout,
	})

	var uiLogChan <-chan string
	if uiLog != nil {
		uiLogChan = uiLog.Lines()
	}
	model := app.NewModel(logger, uiLogChan)
	defer model.Shutdown()

	controller := app.NewController(logger, loop, model, machine, aggregator)
	defer controller.Shutdown()

	if cfg.Feed.Addr != "" {
		server := feed.NewServer(logger, model, cfg.Feed.Throttle)
		addr, err := server.Start(cfg.Feed.Addr)
		if err != nil {
			return fmt.Errorf("start feed: %w", err)
		}
		logger.Printf("Feed listening on %s", addr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				logger.Printf("Feed shutdown: %v", err)
			}
		}()
	}

	if cfg.Headless {
		return runHeadless(cfg, controller)
	}

	view := dashboard.NewView(logger, tview.NewApplication(), model, controller)
	defer view.Shutdown()
	if err := view.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	logger.Println("Dashboard closed")
	return nil
}

func runHeadless(cfg *config.Config, controller *app.Controller) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := app.RunHeadless(ctx, controller, cfg.RecordFor)
	if err != nil {
		return err
	}
	return report.Write(os.Stdout, cfg.Output)
}

func newTransport(cfg *config.Config, logger *log.Logger, loop sched.Scheduler) (connection.Transport, func(), error) {
	if cfg.Mock {
		var noise telemetry.NoiseFunc
		if cfg.Noise {
			seed := cfg.Seed
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			noise = telemetry.UniformNoise(rand.New(rand.NewSource(seed)))
		}
		transport := connection.NewSimulatedTransport(logger, loop, connection.SimulatedTransportConfig{
			ScanDelay:    cfg.ScanDelay,
			ConnectDelay: cfg.ConnectDelay,
			Source: telemetry.SimulatedSourceConfig{
				TickInterval: cfg.TickInterval,
				Noise:        noise,
			},
		})
		return transport, func() {}, nil
	}

	transport, err := bt.NewTransport(bluetooth.DefaultAdapter, logger, loop, bt.TransportConfig{
		DeviceName:         cfg.DeviceName,
		ServiceUUID:        cfg.ServiceUUID,
		CharacteristicUUID: cfg.CharacteristicUUID,
		Preferred:          bt.NewPreferredDevice(logger, cfg.PreferredDevice),
	})
	if err != nil {
		return nil, nil, err
	}
	if err := transport.Enable(); err != nil {
		return nil, nil, fmt.Errorf("enable BLE stack: %w", err)
	}
	return transport, transport.Shutdown, nil
}

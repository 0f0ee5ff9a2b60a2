// Package app ties the connection machine and the recording aggregator
// together and exposes them to presentation layers through a Model.
package app

import (
	"errors"
	"fmt"
	"log"

	"github.com/impact-insoles/insole-app/internal/connection"
	"github.com/impact-insoles/insole-app/internal/recording"
	"github.com/impact-insoles/insole-app/internal/sched"
)

// ErrNotConnected is returned when a recording is requested without a connected insole
var ErrNotConnected = errors.New("no insole connected")

// Controller turns user intents into machine and aggregator operations.
// Its methods are safe from any goroutine except the scheduler's dispatch
// context; the work itself always runs on the dispatch context.
type Controller struct {
	logger     *log.Logger
	scheduler  sched.Scheduler
	model      *Model
	machine    *connection.Machine
	aggregator *recording.Aggregator

	unregister []func()
}

// NewController creates a controller and starts mirroring state into model
func NewController(logger *log.Logger, scheduler sched.Scheduler, model *Model, machine *connection.Machine, aggregator *recording.Aggregator) *Controller {
	if logger == nil {
		panic("Controller: logger cannot be nil")
	}
	if scheduler == nil {
		panic("Controller: scheduler cannot be nil")
	}
	if model == nil {
		panic("Controller: model cannot be nil")
	}
	if machine == nil {
		panic("Controller: machine cannot be nil")
	}
	if aggregator == nil {
		panic("Controller: aggregator cannot be nil")
	}
	c := &Controller{
		logger:     logger,
		scheduler:  scheduler,
		model:      model,
		machine:    machine,
		aggregator: aggregator,
	}
	scheduler.Do(func() {
		c.unregister = append(c.unregister,
			machine.Listen(c.onConnectionChange),
			aggregator.Listen(model.SetSession),
		)
	})
	return c
}

// onConnectionChange runs on the dispatch context
func (c *Controller) onConnectionChange(state connection.State) {
	c.model.SetConnection(state)
	if state.Phase == connection.ConnectionFailed && c.aggregator.Phase() == recording.Recording {
		// the source being recorded is gone; end the run with what was collected
		if err := c.aggregator.Interrupt(state.Err); err != nil {
			c.logger.Printf("Controller: %v", err)
		}
	}
}

func (c *Controller) run(fn func() error) error {
	var err error
	c.scheduler.Do(func() { err = fn() })
	if err != nil {
		c.logger.Printf("Controller: %v", err)
	}
	return err
}

// StartScan looks for an insole
func (c *Controller) StartScan() error {
	return c.run(c.machine.StartScan)
}

// Connect connects to the insole found by the scan
func (c *Controller) Connect() error {
	return c.run(c.machine.Connect)
}

// Reset drops the connection. A recording in progress is discarded; results
// of a finished one are kept.
func (c *Controller) Reset() error {
	return c.run(func() error {
		if c.aggregator.Phase() == recording.Recording {
			c.aggregator.Close()
		}
		return c.machine.Reset()
	})
}

// StartRecording starts a recording from the connected insole
func (c *Controller) StartRecording() error {
	return c.run(func() error {
		source, ok := c.machine.Source()
		if !ok {
			return fmt.Errorf("start recording in state %s: %w", c.machine.Phase(), ErrNotConnected)
		}
		return c.aggregator.Start(source)
	})
}

// StopRecording ends the recording and produces results
func (c *Controller) StopRecording() error {
	return c.run(c.aggregator.Stop)
}

// NewRun discards the results and gets ready for another recording
func (c *Controller) NewRun() error {
	return c.run(c.aggregator.NewRun)
}

// ToggleRecording starts a recording when ready and stops it when recording
func (c *Controller) ToggleRecording() error {
	switch c.aggregator.Phase() {
	case recording.Recording:
		return c.StopRecording()
	default:
		return c.StartRecording()
	}
}

// Primary performs the next step of the happy path: scan, connect, record, stop
func (c *Controller) Primary() error {
	switch c.machine.Phase() {
	case connection.Idle:
		return c.StartScan()
	case connection.Found:
		return c.Connect()
	case connection.Connected:
		return c.ToggleRecording()
	case connection.ScanFailed, connection.ConnectionFailed:
		return c.Reset()
	default:
		return nil
	}
}

// OnEscapeKey asks the application to close
func (c *Controller) OnEscapeKey() {
	c.model.RequestCloseApplication()
}

// Shutdown tears down the recording and the connection
func (c *Controller) Shutdown() {
	c.logger.Println("Controller: Shutting down")
	c.scheduler.Do(func() {
		c.aggregator.Close()
		c.machine.Close()
		for _, unregister := range c.unregister {
			unregister()
		}
		c.unregister = nil
	})
}

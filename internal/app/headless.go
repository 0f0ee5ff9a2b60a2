package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/impact-insoles/insole-app/internal/connection"
	"github.com/impact-insoles/insole-app/internal/recording"
)

// pollInterval backs up snapshot notifications, which are dropped on a full channel
const pollInterval = 50 * time.Millisecond

// RunHeadless scans, connects, records for recordFor and returns the report of
// the finished session. A session that ends early (stream interrupted, link
// lost or ctx cancelled) is reported as it stands.
func RunHeadless(ctx context.Context, c *Controller, recordFor time.Duration) (Report, error) {
	if err := c.StartScan(); err != nil {
		return Report{}, err
	}
	s, err := waitFor(ctx, c.model, func(s Snapshot) bool {
		p := s.Connection.Phase
		return p == connection.Found || p == connection.ScanFailed
	})
	if err != nil {
		return Report{}, err
	}
	if s.Connection.Phase == connection.ScanFailed {
		return Report{}, fmt.Errorf("scan: %w", s.Connection.Err)
	}

	if err := c.Connect(); err != nil {
		return Report{}, err
	}
	s, err = waitFor(ctx, c.model, func(s Snapshot) bool {
		p := s.Connection.Phase
		return p == connection.Connected || p == connection.ConnectionFailed
	})
	if err != nil {
		return Report{}, err
	}
	if s.Connection.Phase == connection.ConnectionFailed {
		return Report{}, fmt.Errorf("connect: %w", s.Connection.Err)
	}

	if err := c.StartRecording(); err != nil {
		return Report{}, err
	}
	// cancelling ctx while recording ends the run early; the report still covers it
	recordCtx, cancel := context.WithTimeout(ctx, recordFor)
	defer cancel()
	_, _ = waitFor(recordCtx, c.model, func(s Snapshot) bool {
		return s.Session.Phase == recording.Results
	})
	if c.model.GetSnapshot().Session.Phase == recording.Recording {
		// the watchdog may have ended the session in the meantime
		if err := c.StopRecording(); err != nil && !errors.Is(err, recording.ErrInvalidTransition) {
			return Report{}, err
		}
	}
	return NewReport(c.model.GetSnapshot())
}

// waitFor blocks until done holds for the model's snapshot or ctx ends
func waitFor(ctx context.Context, model *Model, done func(Snapshot) bool) (Snapshot, error) {
	ch := make(chan Snapshot, 16)
	unregister := model.ListenToSnapshot(ch)
	defer unregister()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		s := model.GetSnapshot()
		if done(s) {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-ch:
		case <-ticker.C:
		}
	}
}

// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/muralhq/mural/canvas"
	"github.com/muralhq/mural/structs"
	"oss.indeed.com/go/libtime"
)

// snapshotPollInterval is how often the validator re-checks the store while
// waiting for the refresh loop to commit the snapshot it needs.
const snapshotPollInterval = 25 * time.Millisecond

// PixelReader is the slice of the canvas client the validator needs.
type PixelReader interface {
	GetPixel(ctx context.Context, x, y int) (structs.RGB, error)
	HeadPixel(ctx context.Context, x, y int) error
	PixelWaitTime() time.Duration
}

// CompletionRecorder bumps a user's verified submission counter. Optional.
type CompletionRecorder interface {
	IncrementProjectsComplete(ctx context.Context, userID int64) error
}

// ValidatorConfig configures a Validator.
type ValidatorConfig struct {
	// Logger is the parent logger; the validator logs under "validator".
	Logger hclog.Logger

	// Clock overrides wall time, mainly for tests.
	Clock libtime.Clock

	// Store holds the leases and the snapshot.
	Store *TaskStore

	// Canvas reads single pixels and reports its rate window.
	Canvas PixelReader

	// Completions records verified submissions; may be nil.
	Completions CompletionRecorder

	// RefreshInterval must match the refresh loop's interval; it is how the
	// validator predicts when the next snapshot lands.
	RefreshInterval time.Duration
}

// Validator confirms submitted tasks against the canvas. For each submission
// it chooses the cheaper of two freshness sources: the next scheduled full
// snapshot, or a rate-limited single pixel read.
type Validator struct {
	log         hclog.Logger
	clock       libtime.Clock
	store       *TaskStore
	canvas      PixelReader
	completions CompletionRecorder
	refresh     time.Duration
}

// NewValidator creates a validator.
func NewValidator(config *ValidatorConfig) *Validator {
	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	clock := config.Clock
	if clock == nil {
		clock = libtime.SystemClock()
	}
	refresh := config.RefreshInterval
	if refresh == 0 {
		refresh = DefaultRefreshInterval
	}
	return &Validator{
		log:         logger.Named("validator"),
		clock:       clock,
		store:       config.Store,
		canvas:      config.Canvas,
		completions: config.Completions,
		refresh:     refresh,
	}
}

// SubmitTask verifies that the canvas shows the task's target color and, if
// so, completes the user's assignment. On a mismatch the lease is retained
// so the user may retry until it expires. The whole attempt is bounded by
// one lease duration from the submission time.
func (v *Validator) SubmitTask(ctx context.Context, userID int64, task structs.Task) error {
	submitTime := v.clock.Now()

	if err := v.store.CheckSubmittable(userID, task); err != nil {
		return err
	}

	ctx, cancel := context.WithDeadline(ctx, submitTime.Add(v.store.LeaseDuration()))
	defer cancel()

	actual, err := v.freshestPixel(ctx, task.X, task.Y, submitTime)
	if err != nil {
		if ctx.Err() != nil {
			return structs.ErrVerifyTimeout
		}
		return err
	}

	if actual != task.RGB {
		v.log.Debug("submission unverified", "user_id", userID, "task", task.ID(), "canvas", actual)
		return structs.ErrTaskUnverified
	}

	// The lease may have expired or been dropped while we waited; Submit
	// re-checks atomically.
	if err := v.store.Submit(userID, task); err != nil {
		return err
	}

	if v.completions != nil {
		if err := v.completions.IncrementProjectsComplete(ctx, userID); err != nil {
			v.log.Warn("failed to record completion", "user_id", userID, "error", err)
		}
	}
	return nil
}

// freshestPixel returns the canvas value at (x, y) as of no earlier than
// submitTime, choosing whichever of the next snapshot or a single pixel read
// is available sooner. Ties prefer the snapshot, which costs no API call.
func (v *Validator) freshestPixel(ctx context.Context, x, y int, submitTime time.Time) (structs.RGB, error) {
	snap, at := v.store.Snapshot()
	if snap == nil {
		return structs.RGB{}, fmt.Errorf("%w: no canvas snapshot yet", structs.ErrCanvasUnavailable)
	}

	// A snapshot fetched after the submission already reflects it.
	if !at.Before(submitTime) {
		return v.pixelFromSnapshot(snap, x, y)
	}

	// Refresh the advertised pixel window before comparing waits. Best
	// effort; a failed preflight leaves the last known window in place.
	if err := v.canvas.HeadPixel(ctx, x, y); err != nil {
		v.log.Debug("pixel preflight failed", "error", err)
	}

	now := v.clock.Now()
	tSnapshot := at.Add(v.refresh).Sub(now)
	if tSnapshot < 0 {
		tSnapshot = 0
	}
	tPixel := v.canvas.PixelWaitTime()

	if tPixel < tSnapshot {
		if err := sleepCtx(ctx, tPixel); err != nil {
			return structs.RGB{}, err
		}
		rgb, err := v.canvas.GetPixel(ctx, x, y)
		if err == nil {
			return rgb, nil
		}
		v.log.Warn("pixel fetch failed, falling back to next snapshot", "error", err)
	}

	return v.awaitSnapshot(ctx, x, y, submitTime, tSnapshot)
}

// awaitSnapshot sleeps until the next refresh is due, then polls the store
// until a snapshot at least as fresh as submitTime is committed.
func (v *Validator) awaitSnapshot(ctx context.Context, x, y int, submitTime time.Time, wait time.Duration) (structs.RGB, error) {
	if err := sleepCtx(ctx, wait); err != nil {
		return structs.RGB{}, err
	}
	for {
		snap, at := v.store.Snapshot()
		if snap != nil && !at.Before(submitTime) {
			return v.pixelFromSnapshot(snap, x, y)
		}
		if err := sleepCtx(ctx, snapshotPollInterval); err != nil {
			return structs.RGB{}, err
		}
	}
}

func (v *Validator) pixelFromSnapshot(snap *canvas.Canvas, x, y int) (structs.RGB, error) {
	if !snap.InBounds(x, y) {
		return structs.RGB{}, structs.ErrUnknownTask
	}
	return snap.At(x, y), nil
}

// sleepCtx sleeps for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsTransient reports whether a validation error should surface as a
// temporary upstream failure rather than a scheduling conflict.
func IsTransient(err error) bool {
	return errors.Is(err, structs.ErrCanvasUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

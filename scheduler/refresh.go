// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package scheduler

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-hclog"
	"github.com/muralhq/mural/canvas"
	"github.com/muralhq/mural/structs"
	"golang.org/x/sync/errgroup"
	"oss.indeed.com/go/libtime"
)

// DefaultRefreshInterval is how long the refresh loop sleeps between ticks.
const DefaultRefreshInterval = 2 * time.Second

// ProjectLister is the slice of the state store the refresh loop needs.
type ProjectLister interface {
	Projects(ctx context.Context) ([]*structs.ProjectDetails, error)
}

// SnapshotFetcher is the slice of the canvas client the refresh loop needs.
type SnapshotFetcher interface {
	GetCanvas(ctx context.Context) (*canvas.Canvas, error)
}

// RefreshConfig configures a RefreshLoop.
type RefreshConfig struct {
	// Logger is the parent logger; the loop logs under "refresh".
	Logger hclog.Logger

	// Clock overrides wall time, mainly for tests.
	Clock libtime.Clock

	// Projects supplies the current project list each tick.
	Projects ProjectLister

	// Canvas fetches full snapshots.
	Canvas SnapshotFetcher

	// Store receives the committed snapshot and reconciled units.
	Store *TaskStore

	// Interval is the sleep between ticks. Defaults to
	// DefaultRefreshInterval when zero.
	Interval time.Duration
}

// RefreshLoop periodically reloads projects, refreshes the canvas snapshot,
// recomputes the needed units, and reconciles the task store. It is the sole
// writer of the store's snapshot.
type RefreshLoop struct {
	log      hclog.Logger
	clock    libtime.Clock
	projects ProjectLister
	canvas   SnapshotFetcher
	store    *TaskStore
	interval time.Duration
	cache    *ImageCache

	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}
}

// NewRefreshLoop creates a loop; Start launches it.
func NewRefreshLoop(config *RefreshConfig) *RefreshLoop {
	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	clock := config.Clock
	if clock == nil {
		clock = libtime.SystemClock()
	}
	interval := config.Interval
	if interval == 0 {
		interval = DefaultRefreshInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RefreshLoop{
		log:      logger.Named("refresh"),
		clock:    clock,
		projects: config.Projects,
		canvas:   config.Canvas,
		store:    config.Store,
		interval: interval,
		cache:    NewImageCache(),
		ctx:      ctx,
		cancel:   cancel,
		doneCh:   make(chan struct{}),
	}
}

// Interval returns the configured refresh interval.
func (l *RefreshLoop) Interval() time.Duration {
	return l.interval
}

// Start launches the background goroutine.
func (l *RefreshLoop) Start() {
	go l.run()
}

// Stop cancels the loop and blocks until the goroutine exits.
func (l *RefreshLoop) Stop() {
	l.cancel()
	<-l.doneCh
}

func (l *RefreshLoop) run() {
	defer close(l.doneCh)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-timer.C:
		}

		l.tick(l.ctx)
		timer.Reset(l.interval)
	}
}

// tick runs one refresh iteration. Failures keep the previous snapshot and
// unit set; the scheduler keeps handing out already computed work.
func (l *RefreshLoop) tick(ctx context.Context) {
	var projects []*structs.ProjectDetails
	var snap *canvas.Canvas

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		projects, err = l.projects.Projects(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap, err = l.canvas.GetCanvas(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		l.log.Error("refresh failed, keeping previous snapshot", "error", err)
		return
	}
	fetchedAt := l.clock.Now()

	units := ComputeUnits(l.log, projects, snap, l.cache)
	l.store.Commit(snap, fetchedAt, units)

	l.log.Trace("refreshed",
		"projects", len(projects),
		"units", humanize.Comma(int64(len(units))),
		"canvas", humanize.SI(float64(snap.Width*snap.Height), "px"))
}

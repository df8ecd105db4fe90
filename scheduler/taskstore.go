// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

// Package scheduler hands out pixel tasks. It tracks which pixels still
// disagree with project targets, leases each to at most one user at a time,
// reclaims expired leases, and verifies submissions against the freshest
// canvas value available.
package scheduler

import (
	"math/rand"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	metrics "github.com/hashicorp/go-metrics"
	"github.com/hashicorp/go-set/v3"
	"github.com/muralhq/mural/canvas"
	"github.com/muralhq/mural/structs"
	"oss.indeed.com/go/libtime"
)

const (
	// DefaultLeaseDuration reserves an assigned task for its user before the
	// unit is reclaimed into the open pool.
	DefaultLeaseDuration = 5 * time.Second
)

// StoreConfig configures a TaskStore.
type StoreConfig struct {
	// Logger is the parent logger; the store logs under "task_store".
	Logger hclog.Logger

	// Clock overrides wall time, mainly for tests.
	Clock libtime.Clock

	// LeaseDuration bounds how long an assignment is reserved. Defaults to
	// DefaultLeaseDuration when zero.
	LeaseDuration time.Duration
}

// TaskStore is the in-memory scheduling state: the open pool, the per-user
// leases, and the latest canvas snapshot. Every task is either open or
// assigned, never both, and each user holds at most one lease. All mutation
// happens synchronously under one mutex; nothing sleeps or does I/O while
// holding it.
type TaskStore struct {
	log   hclog.Logger
	clock libtime.Clock
	lease time.Duration

	l sync.Mutex

	// open is the set of task IDs available for assignment.
	open *set.Set[structs.TaskID]

	// tasks maps every tracked ID, open or assigned, to its full task. The
	// task carries the informational project name.
	tasks map[structs.TaskID]structs.Task

	// assigned maps a user to their leased task.
	assigned map[int64]structs.Task

	// reverse maps a leased task ID back to its user. Kept strictly inverse
	// to assigned.
	reverse map[structs.TaskID]int64

	// snapshot is the latest committed canvas; nil until the first refresh
	// succeeds. snapshotAt is when its fetch completed.
	snapshot   *canvas.Canvas
	snapshotAt time.Time
}

// NewTaskStore creates an empty task store.
func NewTaskStore(config *StoreConfig) *TaskStore {
	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	clock := config.Clock
	if clock == nil {
		clock = libtime.SystemClock()
	}
	lease := config.LeaseDuration
	if lease == 0 {
		lease = DefaultLeaseDuration
	}
	return &TaskStore{
		log:      logger.Named("task_store"),
		clock:    clock,
		lease:    lease,
		open:     set.New[structs.TaskID](64),
		tasks:    make(map[structs.TaskID]structs.Task),
		assigned: make(map[int64]structs.Task),
		reverse:  make(map[structs.TaskID]int64),
	}
}

// LeaseDuration returns the configured lease duration.
func (s *TaskStore) LeaseDuration() time.Duration {
	return s.lease
}

// Assign leases a uniformly random open task to the user and arms its
// reclaim timer. Fails if the user already holds a lease or the pool is
// empty.
func (s *TaskStore) Assign(userID int64) (structs.Task, error) {
	s.l.Lock()
	defer s.l.Unlock()

	if _, ok := s.assigned[userID]; ok {
		return structs.Task{}, structs.ErrTaskAlreadyAssigned
	}
	if s.open.Empty() {
		return structs.Task{}, structs.ErrNoTasksAvailable
	}

	ids := s.open.Slice()
	id := ids[rand.Intn(len(ids))]
	task := s.tasks[id]

	s.open.Remove(id)
	s.assigned[userID] = task
	s.reverse[id] = userID

	time.AfterFunc(s.lease, func() { s.reclaim(userID, id) })

	s.log.Debug("assigned task", "user_id", userID, "task", id)
	return task, nil
}

// Lookup returns the user's current lease, if any.
func (s *TaskStore) Lookup(userID int64) (structs.Task, bool) {
	s.l.Lock()
	defer s.l.Unlock()
	task, ok := s.assigned[userID]
	return task, ok
}

// CheckSubmittable verifies that the task is leased to the user without
// mutating anything. A task tracked by nobody is unknown; a tracked task not
// leased to this user is not theirs.
func (s *TaskStore) CheckSubmittable(userID int64, task structs.Task) error {
	s.l.Lock()
	defer s.l.Unlock()
	return s.checkSubmittableLocked(userID, task.ID())
}

func (s *TaskStore) checkSubmittableLocked(userID int64, id structs.TaskID) error {
	if _, ok := s.tasks[id]; !ok {
		return structs.ErrUnknownTask
	}
	if owner, ok := s.reverse[id]; !ok || owner != userID {
		return structs.ErrNotYourTask
	}
	return nil
}

// Submit removes a verified assignment. The task does not return to the open
// pool; if the canvas regresses the next reconcile rediscovers it.
func (s *TaskStore) Submit(userID int64, task structs.Task) error {
	s.l.Lock()
	defer s.l.Unlock()

	id := task.ID()
	if err := s.checkSubmittableLocked(userID, id); err != nil {
		return err
	}

	delete(s.assigned, userID)
	delete(s.reverse, id)
	delete(s.tasks, id)

	s.log.Debug("task submitted", "user_id", userID, "task", id)
	return nil
}

// reclaim is the lease timer callback, armed with the user and task it was
// scheduled for. If the user submitted, was dropped by a reconcile, or holds
// a different lease by now, the timer is stale and does nothing.
func (s *TaskStore) reclaim(userID int64, id structs.TaskID) {
	s.l.Lock()
	defer s.l.Unlock()

	current, ok := s.assigned[userID]
	if !ok || current.ID() != id {
		return
	}

	delete(s.assigned, userID)
	delete(s.reverse, id)
	s.open.Insert(id)

	s.log.Debug("lease expired, task reclaimed", "user_id", userID, "task", id)
}

// Commit atomically installs a fresh snapshot and reconciles the tracked
// tasks against the units derived from it. Assignments whose unit survives
// are preserved; the rest are dropped and their users learn at submit time.
func (s *TaskStore) Commit(snapshot *canvas.Canvas, at time.Time, units []structs.Task) {
	s.l.Lock()
	defer s.l.Unlock()

	s.snapshot = snapshot
	s.snapshotAt = at
	s.reconcileLocked(units)
}

// Reconcile applies a freshly computed unit set without touching the
// snapshot. Idempotent.
func (s *TaskStore) Reconcile(units []structs.Task) {
	s.l.Lock()
	defer s.l.Unlock()
	s.reconcileLocked(units)
}

func (s *TaskStore) reconcileLocked(units []structs.Task) {
	fresh := make(map[structs.TaskID]structs.Task, len(units))
	for _, task := range units {
		fresh[task.ID()] = task
	}

	var dropped, added int

	// Drop tracked units no longer needed. Assigned units are detached from
	// their user; the armed reclaim timer then fires as a no-op.
	for id := range s.tasks {
		if _, still := fresh[id]; still {
			continue
		}
		if owner, ok := s.reverse[id]; ok {
			delete(s.assigned, owner)
			delete(s.reverse, id)
		} else {
			s.open.Remove(id)
		}
		delete(s.tasks, id)
		dropped++
	}

	// Add newly needed units to the open pool.
	for id, task := range fresh {
		if _, tracked := s.tasks[id]; tracked {
			continue
		}
		s.tasks[id] = task
		s.open.Insert(id)
		added++
	}

	if dropped > 0 || added > 0 {
		s.log.Debug("reconciled tasks", "added", added, "dropped", dropped,
			"open", s.open.Size(), "assigned", len(s.assigned))
	}
}

// Snapshot returns the latest committed canvas and its fetch time. The
// canvas is nil before the first successful refresh.
func (s *TaskStore) Snapshot() (*canvas.Canvas, time.Time) {
	s.l.Lock()
	defer s.l.Unlock()
	return s.snapshot, s.snapshotAt
}

// TaskStats describes the store for gauges and endpoints.
type TaskStats struct {
	// NumOpen is the number of tasks available for assignment.
	NumOpen int

	// NumAssigned is the number of outstanding leases.
	NumAssigned int

	// SnapshotAge is the time since the last committed snapshot; zero before
	// the first one.
	SnapshotAge time.Duration
}

// Stats returns a copy of the store's counters.
func (s *TaskStore) Stats() *TaskStats {
	s.l.Lock()
	defer s.l.Unlock()

	stats := &TaskStats{
		NumOpen:     s.open.Size(),
		NumAssigned: len(s.assigned),
	}
	if s.snapshot != nil {
		stats.SnapshotAge = s.clock.Since(s.snapshotAt)
	}
	return stats
}

// EmitStats exports gauges about the task store until stopCh closes.
func (s *TaskStore) EmitStats(period time.Duration, stopCh <-chan struct{}) {
	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			stats := s.Stats()
			metrics.SetGauge([]string{"mural", "tasks", "open"}, float32(stats.NumOpen))
			metrics.SetGauge([]string{"mural", "tasks", "assigned"}, float32(stats.NumAssigned))
			metrics.SetGauge([]string{"mural", "canvas", "snapshot_age_ms"}, float32(stats.SnapshotAge.Milliseconds()))
			timer.Reset(period)
		case <-stopCh:
			return
		}
	}
}

// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package state

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/muralhq/mural/ci"
	"github.com/muralhq/mural/helper/testlog"
	"github.com/muralhq/mural/structs"
	"github.com/shoenig/test/must"
)

// testStore connects to the database named by MURAL_TEST_POSTGRES, skipping
// the test when it is unset. Each test works in uniquely named rows so tests
// can share one database.
func testStore(t *testing.T) *StateStore {
	t.Helper()

	url := ci.SkipTestWithoutPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewStateStore(ctx, &Config{
		DatabaseURL: url,
		MinPoolSize: 1,
		MaxPoolSize: 2,
		Logger:      testlog.HCLogger(t),
	})
	must.NoError(t, err)
	t.Cleanup(store.Close)

	must.NoError(t, store.Setup(ctx))
	return store
}

func uniqueName(t *testing.T) string {
	return fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
}

func TestStateStore_ProjectCRUD(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	name := uniqueName(t)

	// absent
	p, err := store.ProjectByName(ctx, name)
	must.NoError(t, err)
	must.Nil(t, p)

	// insert and read back
	want := &structs.ProjectDetails{Name: name, X: 3, Y: 7, Priority: 2, Image: "aGk="}
	must.NoError(t, store.InsertProject(ctx, want))
	t.Cleanup(func() { _ = store.DeleteProject(ctx, name) })

	p, err = store.ProjectByName(ctx, name)
	must.NoError(t, err)
	must.Eq(t, want, p)

	// update
	want.X, want.Priority = 5, 9
	must.NoError(t, store.UpdateProject(ctx, want))
	p, err = store.ProjectByName(ctx, name)
	must.NoError(t, err)
	must.Eq(t, 5, p.X)
	must.Eq(t, 9, p.Priority)

	// appears in the listing
	projects, err := store.Projects(ctx)
	must.NoError(t, err)
	found := false
	for _, got := range projects {
		if got.Name == name {
			found = true
		}
	}
	must.True(t, found)

	// delete, then delete again
	must.NoError(t, store.DeleteProject(ctx, name))
	must.ErrorIs(t, store.DeleteProject(ctx, name), structs.ErrUnknownProject)
	must.ErrorIs(t, store.UpdateProject(ctx, want), structs.ErrUnknownProject)
}

func TestStateStore_Users(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	id := time.Now().UnixNano()

	u, err := store.UserByID(ctx, id)
	must.NoError(t, err)
	must.Nil(t, u)

	must.NoError(t, store.InsertUser(ctx, id, "gazer", "salt-1"))

	u, err = store.UserByID(ctx, id)
	must.NoError(t, err)
	must.Eq(t, "gazer", u.UserName)
	must.Eq(t, "salt-1", u.KeySalt)
	must.False(t, u.IsMod)
	must.False(t, u.IsBanned)
	must.Zero(t, u.ProjectsComplete)

	must.NoError(t, store.UpdateUserSalt(ctx, id, "salt-2"))
	must.NoError(t, store.SetUserMod(ctx, id, true))
	must.NoError(t, store.SetUserBanned(ctx, id))
	must.NoError(t, store.IncrementProjectsComplete(ctx, id))

	u, err = store.UserByID(ctx, id)
	must.NoError(t, err)
	must.Eq(t, "salt-2", u.KeySalt)
	must.True(t, u.IsMod)
	must.True(t, u.IsBanned)
	must.Eq(t, 1, u.ProjectsComplete)

	// flags on unknown users
	must.ErrorIs(t, store.SetUserMod(ctx, id+1, true), structs.ErrUnknownUser)
	must.ErrorIs(t, store.SetUserBanned(ctx, id+1), structs.ErrUnknownUser)
	must.ErrorIs(t, store.UpdateUserSalt(ctx, id+1, "x"), structs.ErrUnknownUser)
}

func TestStateStore_SeedModerators(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	id := time.Now().UnixNano()

	must.NoError(t, store.InsertUser(ctx, id, "seeded", "s"))

	// one real user, one unknown: unknown is skipped without error
	must.NoError(t, store.SeedModerators(ctx, []int64{id, id + 1}))

	u, err := store.UserByID(ctx, id)
	must.NoError(t, err)
	must.True(t, u.IsMod)
}

// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"context"
	"sync"

	"github.com/muralhq/mural/structs"
)

// mockState is an in-memory StateBackend for endpoint tests.
type mockState struct {
	mu       sync.Mutex
	users    map[int64]*structs.UserRecord
	projects map[string]*structs.ProjectDetails
}

func newMockState() *mockState {
	return &mockState{
		users:    make(map[int64]*structs.UserRecord),
		projects: make(map[string]*structs.ProjectDetails),
	}
}

func (m *mockState) Projects(context.Context) ([]*structs.ProjectDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*structs.ProjectDetails
	for _, p := range m.projects {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockState) ProjectByName(_ context.Context, name string) (*structs.ProjectDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[name]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockState) InsertProject(_ context.Context, p *structs.ProjectDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.projects[p.Name] = &cp
	return nil
}

func (m *mockState) UpdateProject(_ context.Context, p *structs.ProjectDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.Name]; !ok {
		return structs.ErrUnknownProject
	}
	cp := *p
	m.projects[p.Name] = &cp
	return nil
}

func (m *mockState) DeleteProject(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[name]; !ok {
		return structs.ErrUnknownProject
	}
	delete(m.projects, name)
	return nil
}

func (m *mockState) UserByID(_ context.Context, id int64) (*structs.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockState) InsertUser(_ context.Context, id int64, name, salt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = &structs.UserRecord{UserID: id, UserName: name, KeySalt: salt}
	return nil
}

func (m *mockState) UpdateUserSalt(_ context.Context, id int64, salt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return structs.ErrUnknownUser
	}
	u.KeySalt = salt
	return nil
}

func (m *mockState) SetUserMod(_ context.Context, id int64, mod bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return structs.ErrUnknownUser
	}
	u.IsMod = mod
	return nil
}

func (m *mockState) SetUserBanned(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return structs.ErrUnknownUser
	}
	u.IsBanned = true
	return nil
}

func (m *mockState) SeedModerators(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			u.IsMod = true
		}
	}
	return nil
}

func (m *mockState) IncrementProjectsComplete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.ProjectsComplete++
	}
	return nil
}

// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

// Package state persists users and projects in Postgres. The scheduler only
// ever reads projects; all writes come from the moderation and OAuth
// endpoints, so the database serializes them.
package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/muralhq/mural/structs"
)

// Config configures a StateStore.
type Config struct {
	// DatabaseURL is a Postgres connection string.
	DatabaseURL string

	// MinPoolSize and MaxPoolSize bound the connection pool.
	MinPoolSize int
	MaxPoolSize int

	// Logger is the parent logger; the store logs under "state".
	Logger hclog.Logger
}

// StateStore wraps the connection pool. Safe for concurrent use.
type StateStore struct {
	log  hclog.Logger
	pool *pgxpool.Pool
}

// NewStateStore connects the pool and pings the database.
func NewStateStore(ctx context.Context, config *Config) (*StateStore, error) {
	poolConfig, err := pgxpool.ParseConfig(config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	poolConfig.MinConns = int32(config.MinPoolSize)
	poolConfig.MaxConns = int32(config.MaxPoolSize)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &StateStore{
		log:  logger.Named("state"),
		pool: pool,
	}, nil
}

// Close drains the pool.
func (s *StateStore) Close() {
	s.pool.Close()
}

// Projects returns every project, unordered. The diff engine sorts by
// priority itself.
func (s *StateStore) Projects(ctx context.Context) ([]*structs.ProjectDetails, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT project_name, position_x, position_y, project_priority, base64_image FROM projects`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*structs.ProjectDetails
	for rows.Next() {
		p := new(structs.ProjectDetails)
		if err := rows.Scan(&p.Name, &p.X, &p.Y, &p.Priority, &p.Image); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ProjectByName returns one project, or nil if it does not exist.
func (s *StateStore) ProjectByName(ctx context.Context, name string) (*structs.ProjectDetails, error) {
	p := new(structs.ProjectDetails)
	err := s.pool.QueryRow(ctx,
		`SELECT project_name, position_x, position_y, project_priority, base64_image
		 FROM projects WHERE project_name = $1`, name,
	).Scan(&p.Name, &p.X, &p.Y, &p.Priority, &p.Image)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return p, nil
}

// InsertProject adds a new project. The caller checks for duplicates first.
func (s *StateStore) InsertProject(ctx context.Context, p *structs.ProjectDetails) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (project_name, position_x, position_y, project_priority, base64_image)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.Name, p.X, p.Y, p.Priority, p.Image)
	return err
}

// UpdateProject overwrites an existing project's anchor, priority and image.
func (s *StateStore) UpdateProject(ctx context.Context, p *structs.ProjectDetails) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET position_x = $2, position_y = $3, project_priority = $4, base64_image = $5
		 WHERE project_name = $1`,
		p.Name, p.X, p.Y, p.Priority, p.Image)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return structs.ErrUnknownProject
	}
	return nil
}

// DeleteProject removes a project by name.
func (s *StateStore) DeleteProject(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE project_name = $1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return structs.ErrUnknownProject
	}
	return nil
}

// UserByID returns one user, or nil if they do not exist.
func (s *StateStore) UserByID(ctx context.Context, id int64) (*structs.UserRecord, error) {
	u := new(structs.UserRecord)
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, user_name, key_salt, is_mod, is_banned, projects_complete
		 FROM users WHERE user_id = $1`, id,
	).Scan(&u.UserID, &u.UserName, &u.KeySalt, &u.IsMod, &u.IsBanned, &u.ProjectsComplete)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return u, nil
}

// InsertUser creates a fresh user row: not a mod, not banned, zero projects.
func (s *StateStore) InsertUser(ctx context.Context, id int64, name, salt string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (user_id, user_name, key_salt) VALUES ($1, $2, $3)`,
		id, name, salt)
	return err
}

// UpdateUserSalt rotates a user's token salt, invalidating previously issued
// tokens.
func (s *StateStore) UpdateUserSalt(ctx context.Context, id int64, salt string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET key_salt = $2 WHERE user_id = $1`, id, salt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return structs.ErrUnknownUser
	}
	return nil
}

// SetUserMod flips a user's moderator flag.
func (s *StateStore) SetUserMod(ctx context.Context, id int64, mod bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET is_mod = $2 WHERE user_id = $1`, id, mod)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return structs.ErrUnknownUser
	}
	return nil
}

// SetUserBanned bans a user. There is no unban; moderators edit the database
// directly for that.
func (s *StateStore) SetUserBanned(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET is_banned = TRUE WHERE user_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return structs.ErrUnknownUser
	}
	return nil
}

// SeedModerators promotes the startup seed list. IDs without a user row yet
// are logged and skipped; they gain the flag by being re-seeded after their
// first sign-in.
func (s *StateStore) SeedModerators(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		tag, err := s.pool.Exec(ctx, `UPDATE users SET is_mod = TRUE WHERE user_id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			s.log.Warn("seed moderator has no user row yet; skipping", "user_id", id)
		}
	}
	return nil
}

// IncrementProjectsComplete bumps a user's verified submission counter.
func (s *StateStore) IncrementProjectsComplete(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET projects_complete = projects_complete + 1 WHERE user_id = $1`, id)
	return err
}

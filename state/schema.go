// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package state

import (
	"context"
)

// schema is applied at startup. Statements are idempotent so repeated starts
// against the same database are safe.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id           BIGINT PRIMARY KEY,
		user_name         TEXT NOT NULL,
		key_salt          TEXT NOT NULL,
		is_mod            BOOLEAN NOT NULL DEFAULT FALSE,
		is_banned         BOOLEAN NOT NULL DEFAULT FALSE,
		projects_complete INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		project_name     TEXT PRIMARY KEY,
		position_x       INTEGER NOT NULL,
		position_y       INTEGER NOT NULL,
		project_priority INTEGER NOT NULL,
		base64_image     TEXT NOT NULL
	)`,
}

// Setup creates any missing tables.
func (s *StateStore) Setup(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

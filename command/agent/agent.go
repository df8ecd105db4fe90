// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

// Package agent wires the mural subsystems together and exposes them over
// HTTP.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/muralhq/mural/auth"
	"github.com/muralhq/mural/canvas"
	"github.com/muralhq/mural/scheduler"
	"github.com/muralhq/mural/state"
	"github.com/muralhq/mural/structs"
)

// setupTimeout bounds database connection and schema setup at startup.
const setupTimeout = 30 * time.Second

// StateBackend is everything the HTTP layer needs from the state store.
// *state.StateStore implements it; endpoint tests substitute an in-memory
// fake.
type StateBackend interface {
	Projects(ctx context.Context) ([]*structs.ProjectDetails, error)
	ProjectByName(ctx context.Context, name string) (*structs.ProjectDetails, error)
	InsertProject(ctx context.Context, p *structs.ProjectDetails) error
	UpdateProject(ctx context.Context, p *structs.ProjectDetails) error
	DeleteProject(ctx context.Context, name string) error

	UserByID(ctx context.Context, id int64) (*structs.UserRecord, error)
	InsertUser(ctx context.Context, id int64, name, salt string) error
	UpdateUserSalt(ctx context.Context, id int64, salt string) error
	SetUserMod(ctx context.Context, id int64, mod bool) error
	SetUserBanned(ctx context.Context, id int64) error
	SeedModerators(ctx context.Context, ids []int64) error
	IncrementProjectsComplete(ctx context.Context, id int64) error
}

// Agent owns every long-lived subsystem: the state store, the canvas
// client, the task store with its refresh loop, the validator, and auth.
type Agent struct {
	config *Config
	logger hclog.Logger

	state         StateBackend
	stateStore    *state.StateStore
	canvasClient  *canvas.Client
	taskStore     *scheduler.TaskStore
	refreshLoop   *scheduler.RefreshLoop
	validator     *scheduler.Validator
	authenticator *auth.Authenticator
	oauthClient   *auth.OAuthClient

	shutdownCh chan struct{}
}

// NewAgent connects every subsystem and starts the refresh loop and stats
// emitter.
func NewAgent(config *Config, logger hclog.Logger) (*Agent, error) {
	a := &Agent{
		config:     config,
		logger:     logger.Named("agent"),
		shutdownCh: make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	stateStore, err := state.NewStateStore(ctx, &state.Config{
		DatabaseURL: config.DatabaseURL,
		MinPoolSize: config.MinPoolSize,
		MaxPoolSize: config.MaxPoolSize,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up state store: %w", err)
	}
	a.stateStore = stateStore
	a.state = stateStore

	if err := stateStore.Setup(ctx); err != nil {
		stateStore.Close()
		return nil, fmt.Errorf("failed to apply database schema: %w", err)
	}
	if err := stateStore.SeedModerators(ctx, config.Moderators); err != nil {
		stateStore.Close()
		return nil, fmt.Errorf("failed to seed moderators: %w", err)
	}

	canvasClient, err := canvas.NewClient(&canvas.Config{
		BaseURL: config.CanvasURL,
		Token:   config.CanvasToken,
		Logger:  logger,
	})
	if err != nil {
		stateStore.Close()
		return nil, fmt.Errorf("failed to set up canvas client: %w", err)
	}
	a.canvasClient = canvasClient

	a.taskStore = scheduler.NewTaskStore(&scheduler.StoreConfig{
		Logger:        logger,
		LeaseDuration: config.TaskPendingDelay,
	})
	a.refreshLoop = scheduler.NewRefreshLoop(&scheduler.RefreshConfig{
		Logger:   logger,
		Projects: stateStore,
		Canvas:   canvasClient,
		Store:    a.taskStore,
		Interval: config.TaskRefreshTime,
	})
	a.validator = scheduler.NewValidator(&scheduler.ValidatorConfig{
		Logger:          logger,
		Store:           a.taskStore,
		Canvas:          canvasClient,
		Completions:     stateStore,
		RefreshInterval: config.TaskRefreshTime,
	})

	a.authenticator = auth.NewAuthenticator(logger, []byte(config.JWTSecret), stateStore)
	a.oauthClient = auth.NewOAuthClient(auth.OAuthConfig{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.OAuthRedirectURL,
		AuthorizeURL: config.AuthorizeURL,
		TokenURL:     config.TokenURL,
		UserURL:      config.UserURL,
		Logger:       logger,
	})

	a.refreshLoop.Start()
	go a.taskStore.EmitStats(10*time.Second, a.shutdownCh)

	return a, nil
}

// Shutdown stops the refresh loop and closes the database pool.
func (a *Agent) Shutdown() {
	a.logger.Info("shutting down")
	close(a.shutdownCh)
	if a.refreshLoop != nil {
		a.refreshLoop.Stop()
	}
	if a.stateStore != nil {
		a.stateStore.Close()
	}
}

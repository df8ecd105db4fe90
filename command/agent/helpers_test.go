// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/muralhq/mural/auth"
	"github.com/muralhq/mural/helper/testlog"
	"github.com/muralhq/mural/scheduler"
	"github.com/muralhq/mural/structs"
	"github.com/shoenig/test/must"
)

const testJWTSecret = "test-jwt-secret"

// nopPixels is a PixelReader whose rate window never opens, forcing the
// validator onto the snapshot path.
type nopPixels struct{}

func (nopPixels) GetPixel(context.Context, int, int) (structs.RGB, error) {
	return structs.RGB{}, structs.ErrCanvasUnavailable
}
func (nopPixels) HeadPixel(context.Context, int, int) error { return nil }
func (nopPixels) PixelWaitTime() time.Duration              { return time.Hour }

// testServer stands up an HTTPServer over an in-memory state backend, a
// real task store, and no external canvas.
func testServer(t *testing.T) (*HTTPServer, *Agent, *mockState) {
	t.Helper()

	logger := testlog.HCLogger(t)
	config := DefaultConfig()
	config.JWTSecret = testJWTSecret
	config.HTTPAddr = "127.0.0.1:0"

	st := newMockState()
	taskStore := scheduler.NewTaskStore(&scheduler.StoreConfig{
		Logger:        logger,
		LeaseDuration: time.Minute,
	})
	a := &Agent{
		config:     config,
		logger:     logger,
		state:      st,
		taskStore:  taskStore,
		shutdownCh: make(chan struct{}),
	}
	a.validator = scheduler.NewValidator(&scheduler.ValidatorConfig{
		Logger:          logger,
		Store:           taskStore,
		Canvas:          nopPixels{},
		Completions:     st,
		RefreshInterval: config.TaskRefreshTime,
	})
	a.authenticator = auth.NewAuthenticator(logger, []byte(config.JWTSecret), st)
	a.oauthClient = auth.NewOAuthClient(auth.OAuthConfig{
		ClientID:     "cid",
		ClientSecret: "csecret",
		RedirectURL:  "https://mural.example/oauth_callback",
		AuthorizeURL: config.AuthorizeURL,
		TokenURL:     config.TokenURL,
		UserURL:      config.UserURL,
		Logger:       logger,
	})

	srv, err := NewHTTPServer(a, config)
	must.NoError(t, err)
	t.Cleanup(srv.Shutdown)
	return srv, a, st
}

// seedUser creates a user row and returns a valid bearer header for them.
func seedUser(t *testing.T, st *mockState, id int64, name string, mod bool) string {
	t.Helper()

	salt, err := auth.NewSalt()
	must.NoError(t, err)
	must.NoError(t, st.InsertUser(context.Background(), id, name, salt))
	if mod {
		must.NoError(t, st.SetUserMod(context.Background(), id, true))
	}

	token, err := auth.MintToken([]byte(testJWTSecret), id, salt)
	must.NoError(t, err)
	return "Bearer " + token
}

// httpReq performs a request against the test server and returns the
// response with its decoded body.
func httpReq(t *testing.T, srv *HTTPServer, method, path, authHeader string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		must.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, "http://"+srv.Addr+path, reader)
	must.NoError(t, err)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	must.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	out, err := io.ReadAll(resp.Body)
	must.NoError(t, err)
	return resp, out
}

func decodeMessage(t *testing.T, body []byte) string {
	t.Helper()
	var msg structs.Message
	must.NoError(t, json.Unmarshal(body, &msg))
	return msg.Message
}

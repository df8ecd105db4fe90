// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/muralhq/mural/ci"
	"github.com/muralhq/mural/helper/testlog"
	"github.com/shoenig/test/must"
)

// testProvider fakes the OAuth provider: one valid code, one valid access
// token.
func testProvider(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		must.NoError(t, r.ParseForm())
		must.Eq(t, "client-id", r.PostForm.Get("client_id"))
		must.Eq(t, "client-secret", r.PostForm.Get("client_secret"))
		must.Eq(t, "authorization_code", r.PostForm.Get("grant_type"))
		must.Eq(t, "https://mural.example/oauth_callback", r.PostForm.Get("redirect_uri"))

		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		must.NoError(t, json.NewEncoder(w).Encode(map[string]string{
			"access_token": "access-123",
			"token_type":   "Bearer",
		}))
	})
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		must.NoError(t, json.NewEncoder(w).Encode(map[string]string{
			"id":            "123456789012345678",
			"username":      "painter",
			"discriminator": "0042",
		}))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func testOAuthClient(t *testing.T, providerURL string) *OAuthClient {
	t.Helper()
	return NewOAuthClient(OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://mural.example/oauth_callback",
		AuthorizeURL: providerURL + "/oauth/authorize",
		TokenURL:     providerURL + "/oauth/token",
		UserURL:      providerURL + "/users/@me",
		Logger:       testlog.HCLogger(t),
	})
}

func TestOAuth_AuthorizeURL(t *testing.T) {
	ci.Parallel(t)

	c := testOAuthClient(t, "https://provider.example")
	u := c.AuthorizeURL()
	must.StrContains(t, u, "https://provider.example/oauth/authorize?")
	must.StrContains(t, u, "client_id=client-id")
	must.StrContains(t, u, "response_type=code")
	must.StrContains(t, u, "scope=identify")
}

func TestOAuth_ExchangeAndIdentity(t *testing.T) {
	ci.Parallel(t)

	ts := testProvider(t)
	c := testOAuthClient(t, ts.URL)
	ctx := context.Background()

	token, err := c.Exchange(ctx, "good-code")
	must.NoError(t, err)
	must.Eq(t, "access-123", token)

	user, err := c.FetchIdentity(ctx, token)
	must.NoError(t, err)
	must.Eq(t, int64(123456789012345678), user.ID)
	must.Eq(t, "painter#0042", user.DisplayName())
}

func TestOAuth_BadCode(t *testing.T) {
	ci.Parallel(t)

	ts := testProvider(t)
	c := testOAuthClient(t, ts.URL)

	_, err := c.Exchange(context.Background(), "bad-code")
	must.Error(t, err)
}

func TestOAuth_BadAccessToken(t *testing.T) {
	ci.Parallel(t)

	ts := testProvider(t)
	c := testOAuthClient(t, ts.URL)

	_, err := c.FetchIdentity(context.Background(), "forged")
	must.Error(t, err)
}

func TestRemoteUser_DisplayName(t *testing.T) {
	ci.Parallel(t)

	// the provider retired discriminators; "0" means none
	u := &RemoteUser{ID: 1, Username: "painter", Discriminator: "0"}
	must.Eq(t, "painter", u.DisplayName())
}

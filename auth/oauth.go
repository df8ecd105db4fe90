// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/muralhq/mural/helper/useragent"
)

// oauthTimeout bounds each call to the provider.
const oauthTimeout = 15 * time.Second

// OAuthConfig configures an OAuthClient.
type OAuthConfig struct {
	// ClientID and ClientSecret identify this application to the provider.
	ClientID     string
	ClientSecret string

	// RedirectURL is where the provider sends users back with a code.
	RedirectURL string

	// AuthorizeURL, TokenURL and UserURL are the provider endpoints.
	AuthorizeURL string
	TokenURL     string
	UserURL      string

	// Logger is the parent logger; the client logs under "oauth".
	Logger hclog.Logger

	// HTTPClient overrides the pooled default, mainly for tests.
	HTTPClient *http.Client
}

// OAuthClient drives the provider side of the authorization code flow:
// building the authorize redirect, exchanging codes for access tokens, and
// fetching the signed-in user's identity.
type OAuthClient struct {
	log        hclog.Logger
	config     OAuthConfig
	httpClient *http.Client
}

// RemoteUser is the provider's view of a signed-in user.
type RemoteUser struct {
	ID            int64
	Username      string
	Discriminator string
}

// DisplayName is the name stored on the user row.
func (u *RemoteUser) DisplayName() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

// NewOAuthClient creates a provider client.
func NewOAuthClient(config OAuthConfig) *OAuthClient {
	logger := config.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		httpClient.Timeout = oauthTimeout
	}
	return &OAuthClient{
		log:        logger.Named("oauth"),
		config:     config,
		httpClient: httpClient,
	}
}

// AuthorizeURL builds the provider URL users are redirected to when they
// start signing in.
func (c *OAuthClient) AuthorizeURL() string {
	q := url.Values{
		"client_id":     []string{c.config.ClientID},
		"redirect_uri":  []string{c.config.RedirectURL},
		"response_type": []string{"code"},
		"scope":         []string{"identify"},
	}
	return c.config.AuthorizeURL + "?" + q.Encode()
}

// tokenResponse is the provider's code exchange reply.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Exchange trades an authorization code for an access token.
func (c *OAuthClient) Exchange(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"client_id":     []string{c.config.ClientID},
		"client_secret": []string{c.config.ClientSecret},
		"grant_type":    []string{"authorization_code"},
		"code":          []string{code},
		"redirect_uri":  []string{c.config.RedirectURL},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(useragent.Header, useragent.String())

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("code exchange failed: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("malformed token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("provider returned no access token")
	}
	return tr.AccessToken, nil
}

// userResponse is the provider's identity reply. The ID is a decimal string
// snowflake.
type userResponse struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
}

// FetchIdentity resolves an access token to the user it belongs to.
func (c *OAuthClient) FetchIdentity(ctx context.Context, accessToken string) (*RemoteUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.UserURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set(useragent.Header, useragent.String())

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("identity fetch failed: %w", err)
	}

	var ur userResponse
	if err := json.Unmarshal(body, &ur); err != nil {
		return nil, fmt.Errorf("malformed user response: %w", err)
	}
	id, err := strconv.ParseInt(ur.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("provider user id %q is not a 64-bit integer: %w", ur.ID, err)
	}
	return &RemoteUser{
		ID:            id,
		Username:      ur.Username,
		Discriminator: ur.Discriminator,
	}, nil
}

func (c *OAuthClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error("provider request failed", "url", req.URL.Path, "status", resp.StatusCode)
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return body, nil
}

// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"net/http"

	"github.com/muralhq/mural/auth"
	"github.com/muralhq/mural/structs"
)

// tokenResponse carries a freshly minted bearer token back to the user.
type tokenResponse struct {
	Token string `json:"token"`
}

// AuthorizeRequest bounces the user to the OAuth provider.
func (s *HTTPServer) AuthorizeRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodGet {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
	http.Redirect(resp, req, s.agent.oauthClient.AuthorizeURL(), http.StatusTemporaryRedirect)
	return nil, nil
}

// OAuthCallbackRequest completes sign-in: the provider code is exchanged for
// the user's identity, the user row is created or its salt rotated, and a
// bearer token is returned. Banned users get a 401 and no token.
func (s *HTTPServer) OAuthCallbackRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodGet {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
	code := req.URL.Query().Get("code")
	if code == "" {
		return nil, CodedError(http.StatusUnprocessableEntity, "missing oauth code")
	}

	ctx := req.Context()
	accessToken, err := s.agent.oauthClient.Exchange(ctx, code)
	if err != nil {
		return nil, CodedError(http.StatusForbidden, "oauth code exchange failed")
	}
	remote, err := s.agent.oauthClient.FetchIdentity(ctx, accessToken)
	if err != nil {
		return nil, CodedError(http.StatusForbidden, "failed to fetch user identity")
	}

	user, err := s.agent.state.UserByID(ctx, remote.ID)
	if err != nil {
		return nil, err
	}
	if user != nil && user.IsBanned {
		return nil, CodedError(http.StatusUnauthorized, structs.ErrUserBanned.Error())
	}

	salt, err := auth.NewSalt()
	if err != nil {
		return nil, err
	}
	if user == nil {
		err = s.agent.state.InsertUser(ctx, remote.ID, remote.DisplayName(), salt)
	} else {
		err = s.agent.state.UpdateUserSalt(ctx, remote.ID, salt)
	}
	if err != nil {
		return nil, err
	}

	token, err := auth.MintToken([]byte(s.agent.config.JWTSecret), remote.ID, salt)
	if err != nil {
		return nil, err
	}
	return tokenResponse{Token: token}, nil
}

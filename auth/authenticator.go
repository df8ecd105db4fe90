// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package auth

import (
	"context"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/muralhq/mural/structs"
)

// UserGetter is the slice of the state store the authenticator needs.
type UserGetter interface {
	UserByID(ctx context.Context, id int64) (*structs.UserRecord, error)
}

// Identity is an authenticated caller.
type Identity struct {
	UserID   int64
	UserName string
	Mod      bool
}

// Authenticator resolves Authorization headers to identities. A token is
// valid only while its salt matches the user row and the user is not banned.
type Authenticator struct {
	log    hclog.Logger
	secret []byte
	users  UserGetter
}

// NewAuthenticator creates an authenticator backed by the user store.
func NewAuthenticator(logger hclog.Logger, secret []byte, users UserGetter) *Authenticator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Authenticator{
		log:    logger.Named("auth"),
		secret: secret,
		users:  users,
	}
}

// Authenticate parses an Authorization header of the form "Bearer <token>"
// and resolves it to a live user.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*Identity, error) {
	if header == "" {
		return nil, structs.ErrNoToken
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, structs.ErrBadHeader
	}

	claims, err := ParseToken(a.secret, token)
	if err != nil {
		return nil, err
	}

	user, err := a.users.UserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.KeySalt != claims.Salt {
		return nil, structs.ErrInvalidToken
	}
	if user.IsBanned {
		return nil, structs.ErrUserBanned
	}

	return &Identity{
		UserID:   user.UserID,
		UserName: user.UserName,
		Mod:      user.IsMod,
	}, nil
}

// RequireMod rejects identities without the moderator flag.
func (a *Authenticator) RequireMod(identity *Identity) error {
	if !identity.Mod {
		a.log.Warn("non-moderator called a moderator endpoint", "user_id", identity.UserID)
		return structs.ErrNotModerator
	}
	return nil
}

// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

// Package auth issues and verifies the bearer tokens users authenticate
// with, and talks to the external OAuth provider during sign-in.
package auth

import (
	"encoding/base64"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/hashicorp/go-uuid"
	"github.com/muralhq/mural/structs"
)

// saltBytes is the entropy of a token salt. The salt is stored on the user
// row; rotating it invalidates every previously issued token.
const saltBytes = 16

// TokenClaims is the JWT payload: the user and the salt the token was
// minted against.
type TokenClaims struct {
	UserID int64  `json:"id"`
	Salt   string `json:"salt"`
	jwt.RegisteredClaims
}

// NewSalt generates a fresh URL-safe token salt.
func NewSalt() (string, error) {
	raw, err := uuid.GenerateRandomBytes(saltBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate token salt: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// MintToken signs an HS256 token for the user against the given salt.
// Tokens do not expire on their own; they die when the salt rotates or the
// user is banned.
func MintToken(secret []byte, userID int64, salt string) (string, error) {
	claims := &TokenClaims{
		UserID: userID,
		Salt:   salt,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies the signature and returns the claims. Any defect,
// including a non-HS256 signing method, yields ErrInvalidToken.
func ParseToken(secret []byte, tokenString string) (*TokenClaims, error) {
	claims := new(TokenClaims)
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, structs.ErrInvalidToken
	}
	return claims, nil
}

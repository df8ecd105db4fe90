// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package structs

import (
	"errors"
	"strings"
)

const (
	errTaskAlreadyAssigned = "user already has an assigned task"
	errNoTasksAvailable    = "no tasks available"
	errUnknownTask         = "task is not tracked; it was likely completed by someone else or its project was removed"
	errNotYourTask         = "task is not assigned to this user; the assignment likely expired"
	errTaskUnverified      = "canvas does not show the submitted color at the task coordinates"
	errVerifyTimeout       = "task verification timed out"
	errBadImage            = "image must be a base64-encoded PNG"
	errCanvasUnavailable   = "canvas is temporarily unavailable"

	errNoToken      = "no token provided; pass an Authorization header of the form 'Bearer <token>'"
	errBadHeader    = "authorization header does not use the Bearer scheme"
	errInvalidToken = "token is invalid or has expired"
	errUserBanned   = "user is banned"
	errNotModerator = "endpoint is restricted to moderators"

	errUnknownUser    = "user does not exist"
	errUnknownProject = "project does not exist"
)

var (
	// Scheduling conflicts. These surface as 409s.
	ErrTaskAlreadyAssigned = errors.New(errTaskAlreadyAssigned)
	ErrNoTasksAvailable    = errors.New(errNoTasksAvailable)
	ErrUnknownTask         = errors.New(errUnknownTask)
	ErrNotYourTask         = errors.New(errNotYourTask)
	ErrTaskUnverified      = errors.New(errTaskUnverified)
	ErrVerifyTimeout       = errors.New(errVerifyTimeout)

	// ErrBadImage rejects project images that are not decodable PNGs.
	ErrBadImage = errors.New(errBadImage)

	// ErrCanvasUnavailable marks transient upstream failures during
	// verification so they surface as 503s rather than rejections.
	ErrCanvasUnavailable = errors.New(errCanvasUnavailable)

	// Authentication and authorization.
	ErrNoToken      = errors.New(errNoToken)
	ErrBadHeader    = errors.New(errBadHeader)
	ErrInvalidToken = errors.New(errInvalidToken)
	ErrUserBanned   = errors.New(errUserBanned)
	ErrNotModerator = errors.New(errNotModerator)

	// Lookups.
	ErrUnknownUser    = errors.New(errUnknownUser)
	ErrUnknownProject = errors.New(errUnknownProject)
)

// IsSchedulingConflict returns true for errors that describe a legal request
// the scheduler cannot honor right now.
func IsSchedulingConflict(err error) bool {
	switch {
	case errors.Is(err, ErrTaskAlreadyAssigned),
		errors.Is(err, ErrNoTasksAvailable),
		errors.Is(err, ErrUnknownTask),
		errors.Is(err, ErrNotYourTask),
		errors.Is(err, ErrTaskUnverified),
		errors.Is(err, ErrVerifyTimeout):
		return true
	}
	return false
}

// IsAuthErr returns true for errors raised while authenticating a request.
func IsAuthErr(err error) bool {
	switch {
	case errors.Is(err, ErrNoToken),
		errors.Is(err, ErrBadHeader),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrUserBanned),
		errors.Is(err, ErrNotModerator):
		return true
	}
	return false
}

// IsErrUnknownTask checks both the sentinel and wrapped RPC-style strings.
func IsErrUnknownTask(err error) bool {
	return err != nil && (errors.Is(err, ErrUnknownTask) || strings.Contains(err.Error(), errUnknownTask))
}

// IsErrNoTasksAvailable checks both the sentinel and wrapped strings.
func IsErrNoTasksAvailable(err error) bool {
	return err != nil && (errors.Is(err, ErrNoTasksAvailable) || strings.Contains(err.Error(), errNoTasksAvailable))
}

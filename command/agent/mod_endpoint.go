// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"fmt"
	"net/http"

	"github.com/muralhq/mural/structs"
)

// ModCheckRequest confirms the caller holds the moderator flag.
func (s *HTTPServer) ModCheckRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodGet {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
	identity, err := s.authenticateMod(req)
	if err != nil {
		return nil, err
	}
	return structs.Message{Message: fmt.Sprintf("%s is a moderator", identity.UserName)}, nil
}

// ModPromoteRequest grants a user the moderator flag.
func (s *HTTPServer) ModPromoteRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	return s.modFlagRequest(req, true)
}

// ModDemoteRequest removes a user's moderator flag.
func (s *HTTPServer) ModDemoteRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	return s.modFlagRequest(req, false)
}

func (s *HTTPServer) modFlagRequest(req *http.Request, promote bool) (interface{}, error) {
	if req.Method != http.MethodPost {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
	if _, err := s.authenticateMod(req); err != nil {
		return nil, err
	}

	var user structs.User
	if err := decodeBody(req, &user); err != nil {
		return nil, err
	}

	target, err := s.agent.state.UserByID(req.Context(), user.UserID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, structs.ErrUnknownUser
	}
	if target.IsMod == promote {
		verb := "already"
		if !promote {
			verb = "not"
		}
		return nil, CodedError(http.StatusConflict, fmt.Sprintf("user %d is %s a moderator", user.UserID, verb))
	}

	if err := s.agent.state.SetUserMod(req.Context(), user.UserID, promote); err != nil {
		return nil, err
	}

	action := "promoted"
	if !promote {
		action = "demoted"
	}
	return structs.Message{Message: fmt.Sprintf("%s user %d", action, user.UserID)}, nil
}

// ModBanRequest bans a user. Their outstanding token stops working on the
// next request; any leased task simply expires.
func (s *HTTPServer) ModBanRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodPost {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
	if _, err := s.authenticateMod(req); err != nil {
		return nil, err
	}

	var user structs.User
	if err := decodeBody(req, &user); err != nil {
		return nil, err
	}
	if err := s.agent.state.SetUserBanned(req.Context(), user.UserID); err != nil {
		return nil, err
	}
	return structs.Message{Message: fmt.Sprintf("banned user %d", user.UserID)}, nil
}

// ModProjectRequest is the moderator project CRUD: POST adds, PUT edits,
// DELETE removes. Changes take effect at the next refresh tick.
func (s *HTTPServer) ModProjectRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if _, err := s.authenticateMod(req); err != nil {
		return nil, err
	}

	switch req.Method {
	case http.MethodPost:
		return s.projectAdd(req)
	case http.MethodPut:
		return s.projectEdit(req)
	case http.MethodDelete:
		return s.projectDelete(req)
	default:
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
}

func (s *HTTPServer) projectAdd(req *http.Request) (interface{}, error) {
	var project structs.ProjectDetails
	if err := decodeBody(req, &project); err != nil {
		return nil, err
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.agent.state.ProjectByName(req.Context(), project.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, CodedError(http.StatusConflict, fmt.Sprintf("project %q already exists", project.Name))
	}

	if err := s.agent.state.InsertProject(req.Context(), &project); err != nil {
		return nil, err
	}
	return structs.Message{Message: fmt.Sprintf("added project %q", project.Name)}, nil
}

func (s *HTTPServer) projectEdit(req *http.Request) (interface{}, error) {
	var project structs.ProjectDetails
	if err := decodeBody(req, &project); err != nil {
		return nil, err
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}

	if err := s.agent.state.UpdateProject(req.Context(), &project); err != nil {
		return nil, err
	}
	return structs.Message{Message: fmt.Sprintf("updated project %q", project.Name)}, nil
}

func (s *HTTPServer) projectDelete(req *http.Request) (interface{}, error) {
	var project structs.Project
	if err := decodeBody(req, &project); err != nil {
		return nil, err
	}

	if err := s.agent.state.DeleteProject(req.Context(), project.Name); err != nil {
		return nil, err
	}
	return structs.Message{Message: fmt.Sprintf("removed project %q", project.Name)}, nil
}

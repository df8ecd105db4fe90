// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"net/http"

	"github.com/muralhq/mural/structs"
)

// TaskRequest routes the member task surface: GET asks for an assignment,
// POST submits one.
func (s *HTTPServer) TaskRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	identity, err := s.authenticate(req)
	if err != nil {
		return nil, err
	}

	switch req.Method {
	case http.MethodGet:
		return s.taskGet(identity.UserID)
	case http.MethodPost:
		return s.taskSubmit(req, identity.UserID)
	default:
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
}

func (s *HTTPServer) taskGet(userID int64) (interface{}, error) {
	task, err := s.agent.taskStore.Assign(userID)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *HTTPServer) taskSubmit(req *http.Request, userID int64) (interface{}, error) {
	var task structs.Task
	if err := decodeBody(req, &task); err != nil {
		return nil, err
	}
	if err := task.Validate(); err != nil {
		return nil, CodedError(http.StatusUnprocessableEntity, err.Error())
	}

	if err := s.agent.validator.SubmitTask(req.Context(), userID, task); err != nil {
		return nil, err
	}
	return structs.Message{Message: "task completed, thanks for painting"}, nil
}

// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"net/http"

	"github.com/muralhq/mural/structs"
)

// ProjectsRequest lists every registered project, target images included, so
// clients can render previews.
func (s *HTTPServer) ProjectsRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.Method != http.MethodGet {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
	if _, err := s.authenticate(req); err != nil {
		return nil, err
	}

	projects, err := s.agent.state.Projects(req.Context())
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []*structs.ProjectDetails{}
	}
	return projects, nil
}

// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	connlimit "github.com/hashicorp/go-connlimit"
	"github.com/hashicorp/go-hclog"
	"github.com/muralhq/mural/auth"
	"github.com/muralhq/mural/scheduler"
	"github.com/muralhq/mural/structs"
	"github.com/rs/cors"
)

const (
	// ErrInvalidMethod is used if the HTTP method is not supported
	ErrInvalidMethod = "Invalid method"

	// maxConnsPerClient bounds open connections from one IP.
	maxConnsPerClient = 100
)

// allowCORS sets permissive CORS headers for the read-only surface.
var allowCORS = cors.New(cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{"HEAD", "GET"},
	AllowedHeaders: []string{"*"},
})

// HTTPServer wraps an Agent and exposes it over HTTP.
type HTTPServer struct {
	agent      *Agent
	mux        *http.ServeMux
	listener   net.Listener
	listenerCh chan struct{}
	logger     hclog.Logger
	Addr       string
}

// NewHTTPServer binds the listener and starts serving.
func NewHTTPServer(agent *Agent, config *Config) (*HTTPServer, error) {
	ln, err := net.Listen("tcp", config.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to start HTTP listener: %w", err)
	}

	srv := &HTTPServer{
		agent:      agent,
		mux:        http.NewServeMux(),
		listener:   ln,
		listenerCh: make(chan struct{}),
		logger:     agent.logger.Named("http"),
		Addr:       ln.Addr().String(),
	}
	srv.registerHandlers()

	limiter := connlimit.NewLimiter(connlimit.Config{
		MaxConnsPerClientIP: maxConnsPerClient,
	})
	httpServer := &http.Server{
		Addr:      srv.Addr,
		Handler:   handlers.CompressHandler(srv.mux),
		ConnState: limiter.HTTPConnStateFunc(),
	}

	go func() {
		defer close(srv.listenerCh)
		_ = httpServer.Serve(ln)
	}()

	return srv, nil
}

// Shutdown closes the listener and waits for the serve goroutine.
func (s *HTTPServer) Shutdown() {
	if s != nil {
		s.logger.Debug("shutting down http server")
		_ = s.listener.Close()
		<-s.listenerCh
	}
}

// registerHandlers attaches every endpoint to the mux.
func (s *HTTPServer) registerHandlers() {
	s.mux.HandleFunc("/", s.wrap(s.IndexRequest))
	s.mux.HandleFunc("/authorize", s.wrap(s.AuthorizeRequest))
	s.mux.HandleFunc("/oauth_callback", s.wrap(s.OAuthCallbackRequest))

	s.mux.Handle("/projects", allowCORS.Handler(http.HandlerFunc(s.wrap(s.ProjectsRequest))))
	s.mux.HandleFunc("/task", s.wrap(s.TaskRequest))

	s.mux.HandleFunc("/mods/check", s.wrap(s.ModCheckRequest))
	s.mux.HandleFunc("/mods/promote", s.wrap(s.ModPromoteRequest))
	s.mux.HandleFunc("/mods/demote", s.wrap(s.ModDemoteRequest))
	s.mux.HandleFunc("/mods/ban", s.wrap(s.ModBanRequest))
	s.mux.HandleFunc("/mods/project", s.wrap(s.ModProjectRequest))
}

// HTTPCodedError is used to provide the HTTP error code
type HTTPCodedError interface {
	error
	Code() int
}

// CodedError builds an HTTPCodedError.
func CodedError(c int, s string) HTTPCodedError {
	return &codedError{s, c}
}

type codedError struct {
	s    string
	code int
}

func (e *codedError) Error() string { return e.s }
func (e *codedError) Code() int     { return e.code }

// errToCode maps domain errors onto status codes. Anything unrecognized is
// a 500.
func errToCode(err error) int {
	switch {
	case errors.Is(err, structs.ErrUserBanned),
		errors.Is(err, structs.ErrNoToken),
		errors.Is(err, structs.ErrBadHeader),
		errors.Is(err, structs.ErrInvalidToken),
		errors.Is(err, structs.ErrNotModerator):
		return http.StatusForbidden
	case structs.IsSchedulingConflict(err):
		return http.StatusConflict
	case errors.Is(err, structs.ErrUnknownUser),
		errors.Is(err, structs.ErrUnknownProject):
		return http.StatusNotFound
	case errors.Is(err, structs.ErrBadImage):
		return http.StatusUnprocessableEntity
	case scheduler.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// wrap adapts an endpoint returning (interface{}, error) into a JSON
// handler with request logging.
func (s *HTTPServer) wrap(handler func(resp http.ResponseWriter, req *http.Request) (interface{}, error)) func(resp http.ResponseWriter, req *http.Request) {
	return func(resp http.ResponseWriter, req *http.Request) {
		reqURL := req.URL.String()
		start := time.Now()
		defer func() {
			s.logger.Debug("request complete", "method", req.Method, "path", reqURL, "duration", time.Since(start))
		}()

		obj, err := handler(resp, req)
		if err != nil {
			code := errToCode(err)
			if coded, ok := err.(HTTPCodedError); ok {
				code = coded.Code()
			}
			s.logger.Debug("request failed", "method", req.Method, "path", reqURL, "error", err, "code", code)
			resp.Header().Set("Content-Type", "application/json")
			resp.WriteHeader(code)
			_ = json.NewEncoder(resp).Encode(structs.Message{Message: err.Error()})
			return
		}

		if obj != nil {
			resp.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(resp).Encode(obj); err != nil {
				s.logger.Error("failed to encode response", "path", reqURL, "error", err)
			}
		}
	}
}

// decodeBody is used to decode a JSON request body
func decodeBody(req *http.Request, out interface{}) error {
	dec := json.NewDecoder(req.Body)
	if err := dec.Decode(out); err != nil {
		return CodedError(http.StatusUnprocessableEntity, fmt.Sprintf("failed to decode request: %v", err))
	}
	return nil
}

// authenticate resolves the caller from the Authorization header.
func (s *HTTPServer) authenticate(req *http.Request) (*auth.Identity, error) {
	return s.agent.authenticator.Authenticate(req.Context(), req.Header.Get("Authorization"))
}

// authenticateMod additionally requires the moderator flag.
func (s *HTTPServer) authenticateMod(req *http.Request) (*auth.Identity, error) {
	identity, err := s.authenticate(req)
	if err != nil {
		return nil, err
	}
	if err := s.agent.authenticator.RequireMod(identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// IndexRequest serves a small identification message at the root. Unknown
// paths fall through to it and 404.
func (s *HTTPServer) IndexRequest(resp http.ResponseWriter, req *http.Request) (interface{}, error) {
	if req.URL.Path != "/" {
		return nil, CodedError(http.StatusNotFound, "not found")
	}
	if req.Method != http.MethodGet {
		return nil, CodedError(http.StatusMethodNotAllowed, ErrInvalidMethod)
	}
	return structs.Message{Message: "mural: the collaborative canvas coordinator"}, nil
}

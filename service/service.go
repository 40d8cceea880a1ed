//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package service implements the notary's network service. Provers
// reserve a session with an HTTP request and then connect the
// prover-notary link over a websocket.
package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/markkurossi/mpctls/session"
	"go.uber.org/zap"
)

// Default timeouts.
const (
	DefaultExpiry  = 30 * time.Second
	DefaultTimeout = 5 * time.Minute
)

// SessionRequest is the body of the session reservation request.
type SessionRequest struct {
	MaxSent uint32 `json:"max_sent"`
	MaxRecv uint32 `json:"max_recv"`
}

// SessionResponse is the body of the session reservation response.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// ErrorResponse is the body of error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Config defines the service parameters.
type Config struct {
	// Expiry is the time a reservation waits for the websocket
	// connection.
	Expiry time.Duration

	// Timeout bounds the duration of a session.
	Timeout time.Duration

	// Time returns the current time. If nil, time.Now is used.
	Time func() time.Time

	Log *zap.Logger
}

type reservation struct {
	limits  session.Limits
	expires time.Time
}

// Server implements the notary HTTP service.
type Server struct {
	notary   *session.Notary
	cfg      Config
	log      *zap.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader

	mu           sync.Mutex
	reservations map[uuid.UUID]*reservation
}

// NewServer creates a notary service.
func NewServer(notary *session.Notary, cfg *Config) *Server {
	srv := &Server{
		notary:       notary,
		reservations: make(map[uuid.UUID]*reservation),
		mux:          http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	if cfg != nil {
		srv.cfg = *cfg
	}
	if srv.cfg.Expiry == 0 {
		srv.cfg.Expiry = DefaultExpiry
	}
	if srv.cfg.Timeout == 0 {
		srv.cfg.Timeout = DefaultTimeout
	}
	srv.log = srv.cfg.Log
	if srv.log == nil {
		srv.log = zap.NewNop()
	}

	srv.mux.HandleFunc("POST /session", srv.handleSession)
	srv.mux.HandleFunc("GET /notarize", srv.handleNotarize)

	return srv
}

func (srv *Server) now() time.Time {
	if srv.cfg.Time == nil {
		return time.Now()
	}
	return srv.cfg.Time()
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	srv.mux.ServeHTTP(w, r)
}

// Reservations returns the number of pending reservations.
func (srv *Server) Reservations() int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.expire()
	return len(srv.reservations)
}

// expire removes expired reservations. The caller must hold srv.mu.
func (srv *Server) expire() {
	now := srv.now()
	for id, r := range srv.reservations {
		if now.After(r.expires) {
			srv.log.Debug("reservation expired", zap.Stringer("session_id", id))
			delete(srv.reservations, id)
		}
	}
}

func (srv *Server) reserve(limits session.Limits) uuid.UUID {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.expire()
	id := uuid.New()
	srv.reservations[id] = &reservation{
		limits:  limits,
		expires: srv.now().Add(srv.cfg.Expiry),
	}
	return id
}

func (srv *Server) take(id uuid.UUID) (*reservation, bool) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.expire()
	r, ok := srv.reservations[id]
	if ok {
		delete(srv.reservations, id)
	}
	return r, ok
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, &ErrorResponse{
		Error: msg,
	})
}

func (srv *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limits := session.Limits{
		MaxSent: req.MaxSent,
		MaxRecv: req.MaxRecv,
	}
	if !limits.Allows(srv.notary.Policy()) {
		srv.log.Info("reservation rejected", zap.Stringer("limits", limits),
			zap.Stringer("policy", srv.notary.Policy()))
		writeError(w, http.StatusForbidden, session.LimitsExceeded.Error())
		return
	}
	id := srv.reserve(limits)
	srv.log.Debug("session reserved", zap.Stringer("session_id", id),
		zap.Stringer("limits", limits))

	writeJSON(w, http.StatusOK, &SessionResponse{
		SessionID: id.String(),
	})
}

func (srv *Server) handleNotarize(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session_id")
		return
	}
	res, ok := srv.take(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	ws, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := NewConn(ws)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.Timeout)
	defer cancel()

	att, err := srv.notary.ServeSession(ctx, conn, id, res.limits)
	if err != nil {
		srv.log.Info("session failed", zap.Stringer("session_id", id),
			zap.Error(err))
		return
	}
	if att != nil {
		srv.log.Info("session notarized", zap.Stringer("attestation", att))
	}
}

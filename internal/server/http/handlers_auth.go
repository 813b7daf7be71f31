package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/model"
)

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errs.ErrValidation, err))
		return
	}
	if err := validateStruct(&req); err != nil {
		s.respondError(w, r, err)
		return
	}
	u, tok, err := s.auth.Register(r.Context(), req.Email, req.Username, req.Password)
	if errors.Is(err, errs.ErrAlreadyExists) {
		// One message for both email and username collisions.
		respondMessage(w, http.StatusConflict, "email or username already registered")
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.startSession(w, http.StatusCreated, tok, u)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errs.ErrValidation, err))
		return
	}
	if err := validateStruct(&req); err != nil {
		s.respondError(w, r, err)
		return
	}
	tok, u, err := s.auth.Login(r.Context(), req.Email, req.Password, r.RemoteAddr)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.startSession(w, http.StatusOK, tok, u)
}

func (s *Server) startSession(w http.ResponseWriter, status int, tok model.Tokens, u model.User) {
	http.SetCookie(w, s.cookie.session(tok.AccessToken))
	respondJSON(w, status, sessionResponse{
		Token:     tok.AccessToken,
		ExpiresAt: tok.ExpiresAt,
		User:      toUserResponse(u),
	})
}

func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, s.cookie.cleared())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.auth.Me(r.Context(), identity(r).UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(u))
}

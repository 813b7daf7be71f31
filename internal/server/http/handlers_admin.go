package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/ctfarena/internal/errs"
	"github.com/and161185/ctfarena/internal/model"
	"github.com/and161185/ctfarena/internal/service"
)

func (s *Server) decodeValid(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := decodeJSON(w, r, dest); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errs.ErrValidation, err))
		return false
	}
	if err := validateStruct(dest); err != nil {
		s.respondError(w, r, err)
		return false
	}
	return true
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.admin.ListUsers(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) toggleBlock(w http.ResponseWriter, r *http.Request) {
	target, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	u, err := s.admin.ToggleBlock(r.Context(), identity(r).UserID, target)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) setRole(w http.ResponseWriter, r *http.Request) {
	target, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req roleRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	u, err := s.admin.SetRole(r.Context(), identity(r).UserID, target, model.Role(req.Role))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) sendNotification(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	target, err := parseID(req.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	n, err := s.admin.SendNotification(r.Context(), target, req.Message)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, n)
}

func (s *Server) announce(w http.ResponseWriter, r *http.Request) {
	var req announceRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	created, delivered, err := s.admin.Announce(r.Context(), req.Message)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, announceResponse{Created: created, Delivered: delivered})
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	c, err := s.challenges.CreateCategory(r.Context(), req.Name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (s *Server) createChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	catID, err := uuid.FromString(req.CategoryID)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: invalid categoryId", errs.ErrValidation))
		return
	}
	c, err := s.challenges.CreateChallenge(r.Context(), service.NewChallenge{
		CategoryID:  catID,
		Title:       req.Title,
		Description: req.Description,
		Points:      req.Points,
		Flag:        req.Flag,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, challengeResponse{
		ID:          c.ID,
		CategoryID:  c.CategoryID,
		Title:       c.Title,
		Description: c.Description,
		Points:      c.Points,
		CreatedAt:   c.CreatedAt,
	})
}

func (s *Server) deleteChallenge(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.challenges.DeleteChallenge(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
